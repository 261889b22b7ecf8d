package access

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landtrust/internal/identity/models"
	id "landtrust/pkg/domain"
	dErrors "landtrust/pkg/domain-errors"
	"landtrust/pkg/testutil"
)

type fakeLookup struct {
	users map[string]*models.User
	err   error
}

func (f *fakeLookup) LookupByExternalID(_ context.Context, subject string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[subject], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGate(t *testing.T, lookup UserLookup) *Gate {
	t.Helper()
	gate, err := NewGate(lookup, ParseAllowlist(" Staff@Trust.org, ops@trust.org ,staff@trust.org"), WithLogger(discardLogger()))
	require.NoError(t, err)
	return gate
}

func TestAllowlist(t *testing.T) {
	list := ParseAllowlist(" Staff@Trust.org, ops@trust.org ,staff@trust.org,,")
	assert.Equal(t, 2, list.Len())
	assert.True(t, list.Contains("STAFF@trust.org "))
	assert.False(t, list.Contains(""))
	assert.False(t, list.Contains("someone@trust.org"))

	assert.True(t, NewAllowlist([]string{" OPS@trust.org"}).Contains("ops@trust.org"))
}

func TestCheckAdmin(t *testing.T) {
	lookup := &fakeLookup{users: map[string]*models.User{
		"staff-sub":     {ID: id.NewUserID(), ExternalID: "staff-sub", Email: "staff@trust.org"},
		"applicant-sub": {ID: id.NewUserID(), ExternalID: "applicant-sub", Email: "ada@trust.org"},
	}}
	gate := newTestGate(t, lookup)
	ctx := context.Background()

	testutil.Given(t, "no identity", func(t *testing.T) {
		d, err := gate.CheckAdmin(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, Decision{Reason: ReasonUnauthenticated}, d)
	})

	testutil.Given(t, "an identity without a linked user", func(t *testing.T) {
		d, err := gate.CheckAdmin(ctx, &id.ExternalIdentity{Subject: "unknown", Email: "staff@trust.org"})
		require.NoError(t, err)
		assert.Equal(t, Decision{SignedIn: true, Reason: ReasonUserNotFound}, d)
	})

	testutil.Given(t, "a linked user outside the allowlist", func(t *testing.T) {
		d, err := gate.CheckAdmin(ctx, &id.ExternalIdentity{Subject: "applicant-sub"})
		require.NoError(t, err)
		assert.Equal(t, Decision{SignedIn: true, Reason: ReasonNotAllowlisted}, d)
	})

	testutil.Given(t, "a token claiming a staff email for a non-staff user", func(t *testing.T) {
		d, err := gate.CheckAdmin(ctx, &id.ExternalIdentity{Subject: "applicant-sub", Email: "staff@trust.org"})
		require.NoError(t, err)
		assert.False(t, d.Authorized)
	})

	testutil.Given(t, "an allowlisted user", func(t *testing.T) {
		d, err := gate.CheckAdmin(ctx, &id.ExternalIdentity{Subject: "staff-sub"})
		require.NoError(t, err)
		assert.Equal(t, Decision{SignedIn: true, Authorized: true}, d)
	})
}

func TestRequireAdmin(t *testing.T) {
	lookup := &fakeLookup{users: map[string]*models.User{
		"staff-sub":     {ID: id.NewUserID(), Email: "staff@trust.org"},
		"applicant-sub": {ID: id.NewUserID(), Email: "ada@trust.org"},
	}}
	gate := newTestGate(t, lookup)
	ctx := context.Background()

	_, err := gate.RequireAdmin(ctx, nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = gate.RequireAdmin(ctx, &id.ExternalIdentity{Subject: "applicant-sub"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = gate.RequireAdmin(ctx, &id.ExternalIdentity{Subject: "nobody"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	user, err := gate.RequireAdmin(ctx, &id.ExternalIdentity{Subject: "staff-sub"})
	require.NoError(t, err)
	assert.Equal(t, "staff@trust.org", user.Email)
}

func TestLookupFailurePropagates(t *testing.T) {
	gate := newTestGate(t, &fakeLookup{err: dErrors.Wrap(errors.New("db down"), dErrors.CodeUnavailable, "failed to look up user")})

	_, err := gate.CheckAdmin(context.Background(), &id.ExternalIdentity{Subject: "x"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func TestEmptyAllowlistDeniesEveryone(t *testing.T) {
	lookup := &fakeLookup{users: map[string]*models.User{"s": {Email: "staff@trust.org"}}}
	gate, err := NewGate(lookup, ParseAllowlist(""), WithLogger(discardLogger()))
	require.NoError(t, err)

	d, err := gate.CheckAdmin(context.Background(), &id.ExternalIdentity{Subject: "s"})
	require.NoError(t, err)
	assert.False(t, d.Authorized)
}

func TestNewGateRequiresLookup(t *testing.T) {
	_, err := NewGate(nil, Allowlist{})
	assert.ErrorContains(t, err, "user lookup is required")
}
