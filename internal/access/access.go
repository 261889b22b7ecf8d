// Package access decides whether the current request may perform staff
// operations. The decision depends only on the linked user's email and an
// allowlist fixed at startup.
package access

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"landtrust/internal/identity/models"
	id "landtrust/pkg/domain"
	dErrors "landtrust/pkg/domain-errors"
	"landtrust/pkg/email"
	pstrings "landtrust/pkg/platform/strings"
)

// Decision reasons.
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonUserNotFound    = "user_not_found"
	ReasonNotAllowlisted  = "not_allowlisted"
)

// Decision is the outcome of a staff check. Reason is empty when Authorized.
type Decision struct {
	SignedIn   bool   `json:"signed_in"`
	Authorized bool   `json:"authorized"`
	Reason     string `json:"reason,omitempty"`
}

// Allowlist is an immutable set of normalized staff emails.
type Allowlist struct {
	emails []string
}

// NewAllowlist normalizes (trim, lower-case) and deduplicates entries.
func NewAllowlist(entries []string) Allowlist {
	return Allowlist{emails: pstrings.DedupeAndTrimLower(entries)}
}

// ParseAllowlist builds an allowlist from a comma-separated value.
func ParseAllowlist(csv string) Allowlist {
	return Allowlist{emails: pstrings.SplitCSVLower(csv)}
}

func (a Allowlist) Contains(addr string) bool {
	addr = email.Normalize(addr)
	return addr != "" && slices.Contains(a.emails, addr)
}

func (a Allowlist) Len() int {
	return len(a.emails)
}

// UserLookup finds the user linked to an external subject without writing.
type UserLookup interface {
	LookupByExternalID(ctx context.Context, subject string) (*models.User, error)
}

// Gate evaluates staff access for a request identity.
type Gate struct {
	users     UserLookup
	allowlist Allowlist
	logger    *slog.Logger
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func NewGate(users UserLookup, allowlist Allowlist, opts ...Option) (*Gate, error) {
	if users == nil {
		return nil, errors.New("user lookup is required")
	}
	g := &Gate{users: users, allowlist: allowlist, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	if allowlist.Len() == 0 {
		g.logger.Warn("staff allowlist is empty; all staff operations will be denied")
	}
	return g, nil
}

// CheckAdmin reports whether ident belongs to an allowlisted staff member.
// The allowlist is matched against the stored user's email, not the email
// claimed in the token.
func (g *Gate) CheckAdmin(ctx context.Context, ident *id.ExternalIdentity) (Decision, error) {
	_, decision, err := g.check(ctx, ident)
	return decision, err
}

// RequireAdmin is CheckAdmin as a typed rejection: CodeUnauthorized when
// nobody is signed in, CodeForbidden otherwise.
func (g *Gate) RequireAdmin(ctx context.Context, ident *id.ExternalIdentity) (*models.User, error) {
	user, decision, err := g.check(ctx, ident)
	if err != nil {
		return nil, err
	}
	if !decision.SignedIn {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "sign in required")
	}
	if !decision.Authorized {
		return nil, dErrors.New(dErrors.CodeForbidden, "staff access required")
	}
	return user, nil
}

func (g *Gate) check(ctx context.Context, ident *id.ExternalIdentity) (*models.User, Decision, error) {
	if ident == nil || ident.Subject == "" {
		return nil, Decision{Reason: ReasonUnauthenticated}, nil
	}
	user, err := g.users.LookupByExternalID(ctx, ident.Subject)
	if err != nil {
		return nil, Decision{}, err
	}
	if user == nil {
		return nil, Decision{SignedIn: true, Reason: ReasonUserNotFound}, nil
	}
	if !g.allowlist.Contains(user.Email) {
		return user, Decision{SignedIn: true, Reason: ReasonNotAllowlisted}, nil
	}
	return user, Decision{SignedIn: true, Authorized: true}, nil
}
