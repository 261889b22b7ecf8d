package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "landtrust/pkg/domain"
	audit "landtrust/pkg/platform/audit"
	"landtrust/pkg/platform/audit/store/memory"
	"landtrust/pkg/requestcontext"
)

func TestPublisher_Emit(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)
	regID := id.NewRegistrationID()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	err := pub.Emit(ctx, audit.AdminEvent{
		Subject: audit.CommonerSubject(regID),
		Type:    audit.EventRegistrationStatusChanged,
		Message: "approved",
	})
	require.NoError(t, err)

	events, err := pub.History(ctx, audit.CommonerSubject(regID))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].ID.IsNil(), "id assigned on emit")
	assert.Equal(t, now, events[0].CreatedAt)
	assert.Equal(t, "COMMONER:"+regID.String(), events[0].Subject)
}

func TestPublisher_FailClosed(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)

	t.Run("store failure surfaces", func(t *testing.T) {
		store.FailNextAppend(errors.New("disk full"))
		err := pub.Emit(context.Background(), audit.AdminEvent{
			Subject: "COMMONER:x",
			Type:    audit.EventRegistrationStatusChanged,
		})
		require.Error(t, err)
		assert.Empty(t, store.All())
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		err := pub.Emit(context.Background(), audit.AdminEvent{Subject: "COMMONER:x", Type: "DELETED"})
		require.Error(t, err)
	})

	t.Run("rejects missing subject", func(t *testing.T) {
		err := pub.Emit(context.Background(), audit.AdminEvent{Type: audit.EventSettingUpdated})
		require.Error(t, err)
	})
}

func TestSplitSubject(t *testing.T) {
	domain, identifier := audit.SplitSubject("SETTING:land_applications_open")
	assert.Equal(t, audit.SubjectDomainSetting, domain)
	assert.Equal(t, "land_applications_open", identifier)
}
