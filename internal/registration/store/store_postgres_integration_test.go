//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	identitymodels "landtrust/internal/identity/models"
	identitystore "landtrust/internal/identity/store"
	"landtrust/internal/registration/models"
	"landtrust/internal/registration/store"
	id "landtrust/pkg/domain"
	"landtrust/pkg/platform/sentinel"
	"landtrust/pkg/testutil/containers"
)

type PostgresRegistrationStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	users *identitystore.PostgresUserStore
	store *store.PostgresStore
	ctx   context.Context
	now   time.Time
}

func TestPostgresRegistrationStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresRegistrationStoreSuite))
}

func (s *PostgresRegistrationStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.users = identitystore.NewPostgres(s.pg.DB)
	s.store = store.NewPostgres(s.pg.DB)
	s.ctx = context.Background()
}

func (s *PostgresRegistrationStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.ctx))
	s.now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
}

func (s *PostgresRegistrationStoreSuite) createRegistration(first, email string) *models.Registration {
	user := &identitymodels.User{ID: id.NewUserID(), Email: email, CreatedAt: s.now, UpdatedAt: s.now}
	s.Require().NoError(s.users.Create(s.ctx, user))

	s.now = s.now.Add(time.Minute)
	reg := &models.Registration{
		ID:        id.NewRegistrationID(),
		UserID:    user.ID,
		Status:    models.StatusPending,
		FirstName: first,
		LastName:  "Commoner",
		Email:     email,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	s.Require().NoError(s.store.Create(s.ctx, reg))
	return reg
}

func (s *PostgresRegistrationStoreSuite) TestOnePerUser() {
	reg := s.createRegistration("Ada", "ada@trust.org")

	dup := *reg
	dup.ID = id.NewRegistrationID()
	err := s.store.Create(s.ctx, &dup)
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	found, err := s.store.FindByUserID(s.ctx, reg.UserID)
	s.Require().NoError(err)
	s.Equal(reg.ID, found.ID)
	s.Equal(models.StatusPending, found.Status)
}

func (s *PostgresRegistrationStoreSuite) TestUpdateStatusIf() {
	reg := s.createRegistration("Ada", "ada@trust.org")

	s.Require().NoError(s.store.UpdateStatusIf(s.ctx, reg.ID, models.StatusPending, models.StatusApproved, s.now, "staff@trust.org"))

	err := s.store.UpdateStatusIf(s.ctx, reg.ID, models.StatusPending, models.StatusRejected, s.now, "staff@trust.org")
	s.ErrorIs(err, sentinel.ErrInvalidState)

	err = s.store.UpdateStatusIf(s.ctx, id.NewRegistrationID(), models.StatusPending, models.StatusApproved, s.now, "x")
	s.ErrorIs(err, sentinel.ErrNotFound)

	found, err := s.store.FindByID(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, found.Status)
	s.Equal("staff@trust.org", found.DecidedBy)
	s.NotNil(found.DecidedAt)
}

func (s *PostgresRegistrationStoreSuite) TestAttachmentsAndKinds() {
	reg := s.createRegistration("Ada", "ada@trust.org")
	for i, kind := range []models.Kind{models.KindIDProof, models.KindIDProof, models.KindOther, models.KindPaymentProof} {
		s.Require().NoError(s.store.AddAttachment(s.ctx, &models.Attachment{
			ID:             id.NewAttachmentID(),
			RegistrationID: reg.ID,
			Kind:           kind,
			URL:            "mem://doc",
			ContentType:    "application/pdf",
			SizeBytes:      10,
			CreatedAt:      s.now.Add(time.Duration(i) * time.Second),
		}))
	}

	atts, err := s.store.ListAttachments(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Require().Len(atts, 4)
	s.Equal(models.KindPaymentProof, atts[0].Kind, "newest first")

	kinds, err := s.store.ListPresentKinds(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.ElementsMatch([]models.Kind{models.KindIDProof, models.KindPaymentProof}, kinds)

	err = s.store.AddAttachment(s.ctx, &models.Attachment{
		ID:             id.NewAttachmentID(),
		RegistrationID: id.NewRegistrationID(),
		Kind:           models.KindOther,
		CreatedAt:      s.now,
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresRegistrationStoreSuite) TestListKeysetPagination() {
	ada := s.createRegistration("Ada", "ada@trust.org")
	grace := s.createRegistration("Grace", "grace@trust.org")
	s.createRegistration("Percent_50%", "pct@trust.org")

	first, err := s.store.List(s.ctx, models.ListFilter{Limit: 2})
	s.Require().NoError(err)
	s.Require().Len(first, 2)
	s.Equal(grace.ID, first[1].ID)

	cursor := models.CursorFor(first[1])
	rest, err := s.store.List(s.ctx, models.ListFilter{Limit: 2, After: &cursor})
	s.Require().NoError(err)
	s.Require().Len(rest, 1)
	s.Equal(ada.ID, rest[0].ID)

	s.Run("query matches name or email case-insensitively", func() {
		found, err := s.store.List(s.ctx, models.ListFilter{Query: "GRACE", Limit: 10})
		s.Require().NoError(err)
		s.Require().Len(found, 1)
		s.Equal(grace.ID, found[0].ID)
	})

	s.Run("wildcards in the query are literal", func() {
		found, err := s.store.List(s.ctx, models.ListFilter{Query: "_50%", Limit: 10})
		s.Require().NoError(err)
		s.Len(found, 1)

		none, err := s.store.List(s.ctx, models.ListFilter{Query: "%", Limit: 10})
		s.Require().NoError(err)
		s.Len(none, 1)
	})

	s.Run("status filter", func() {
		s.Require().NoError(s.store.UpdateStatusIf(s.ctx, ada.ID, models.StatusPending, models.StatusRejected, s.now, "staff"))
		found, err := s.store.List(s.ctx, models.ListFilter{Status: models.StatusRejected, Limit: 10})
		s.Require().NoError(err)
		s.Require().Len(found, 1)
		s.Equal(ada.ID, found[0].ID)
	})
}
