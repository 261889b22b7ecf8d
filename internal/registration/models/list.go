package models

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	id "landtrust/pkg/domain"
	dErrors "landtrust/pkg/domain-errors"
)

const (
	DefaultListLimit = 25
	MaxListLimit     = 100
)

// ListFilter selects registrations for the staff review list. Results are
// ordered newest first.
type ListFilter struct {
	Query  string
	Status Status
	Limit  int
	After  *Cursor
}

// Cursor is a keyset position over (created_at desc, id desc).
type Cursor struct {
	CreatedAt time.Time
	ID        id.RegistrationID
}

// ListPage is one page of results; NextCursor is empty on the last page.
type ListPage struct {
	Items      []*Registration
	NextCursor string
}

// ParseListFilter validates raw query parameters.
func ParseListFilter(q, status, limit, cursor string) (ListFilter, error) {
	f := ListFilter{Query: strings.TrimSpace(q), Limit: DefaultListLimit}
	if status != "" {
		s, err := ParseStatus(strings.ToUpper(strings.TrimSpace(status)))
		if err != nil {
			return ListFilter{}, err
		}
		f.Status = s
	}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			return ListFilter{}, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer")
		}
		f.Limit = min(n, MaxListLimit)
	}
	if cursor != "" {
		c, err := DecodeCursor(cursor)
		if err != nil {
			return ListFilter{}, err
		}
		f.After = c
	}
	return f, nil
}

// Normalized clamps Limit into range.
func (f ListFilter) Normalized() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	f.Limit = min(f.Limit, MaxListLimit)
	return f
}

// Matches applies the filter to one registration; memory stores use it.
func (f ListFilter) Matches(reg *Registration) bool {
	if f.Status != "" && reg.Status != f.Status {
		return false
	}
	if f.After != nil && !Before(reg, *f.After) {
		return false
	}
	if f.Query == "" {
		return true
	}
	q := strings.ToLower(f.Query)
	for _, field := range []string{reg.FirstName, reg.LastName, reg.Email, reg.FirstName + " " + reg.LastName} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// Before reports whether reg sorts strictly after c in newest-first order.
func Before(reg *Registration, c Cursor) bool {
	if !reg.CreatedAt.Equal(c.CreatedAt) {
		return reg.CreatedAt.Before(c.CreatedAt)
	}
	return strings.Compare(reg.ID.String(), c.ID.String()) < 0
}

func CursorFor(reg *Registration) Cursor {
	return Cursor{CreatedAt: reg.CreatedAt, ID: reg.ID}
}

func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(s string) (*Cursor, error) {
	invalid := dErrors.New(dErrors.CodeValidation, "invalid cursor")
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, invalid
	}
	nanos, idPart, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil, invalid
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, invalid
	}
	u, err := uuid.Parse(idPart)
	if err != nil {
		return nil, invalid
	}
	return &Cursor{CreatedAt: time.Unix(0, n).UTC(), ID: id.RegistrationID(u)}, nil
}
