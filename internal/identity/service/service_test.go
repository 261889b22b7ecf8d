package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks UserStore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"landtrust/internal/identity/models"
	"landtrust/internal/identity/service/mocks"
	"landtrust/internal/identity/store"
	"landtrust/internal/platform/metrics"
	id "landtrust/pkg/domain"
	dErrors "landtrust/pkg/domain-errors"
	"landtrust/pkg/platform/sentinel"
	"landtrust/pkg/platform/tx"
	"landtrust/pkg/requestcontext"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// =============================================================================
// Resolve behaviour against the in-memory store
// =============================================================================

type ResolveSuite struct {
	suite.Suite
	users   *store.InMemoryUserStore
	service *Service
	ctx     context.Context
}

func TestResolveSuite(t *testing.T) {
	suite.Run(t, new(ResolveSuite))
}

func (s *ResolveSuite) SetupTest() {
	s.users = store.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := New(s.users, tx.NewMemoryRunner(s.users), WithLogger(logger), WithMetrics(metrics.New()))
	s.Require().NoError(err)
	s.service = svc
	s.ctx = requestcontext.WithTime(context.Background(), fixedNow)
}

func identity(subject, addr string) *id.ExternalIdentity {
	return &id.ExternalIdentity{Subject: subject, Email: addr, FirstName: "Ada", LastName: "Lovelace"}
}

func (s *ResolveSuite) TestAnonymous() {
	user, err := s.service.Resolve(s.ctx, nil)
	s.NoError(err)
	s.Nil(user)
	s.Zero(s.users.Count())
}

func (s *ResolveSuite) TestValidation() {
	s.Run("empty subject", func() {
		_, err := s.service.Resolve(s.ctx, identity("  ", "ada@trust.org"))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("empty email", func() {
		_, err := s.service.Resolve(s.ctx, identity("sub", " "))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("malformed email", func() {
		_, err := s.service.Resolve(s.ctx, identity("sub", "not-an-email"))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Zero(s.users.Count())
}

func (s *ResolveSuite) TestCreatesUserWithNormalizedEmail() {
	user, err := s.service.Resolve(s.ctx, identity("sub-1", "  Ada@Trust.ORG "))
	s.Require().NoError(err)
	s.Equal("ada@trust.org", user.Email)
	s.Equal("sub-1", user.ExternalID)
	s.Equal("Ada", user.FirstName)
	s.Equal(fixedNow, user.CreatedAt)
	s.Equal(1, s.users.Count())
}

func (s *ResolveSuite) TestDerivesNamesWhenIdentityHasNone() {
	user, err := s.service.Resolve(s.ctx, &id.ExternalIdentity{Subject: "sub-1", Email: "grace.hopper@trust.org"})
	s.Require().NoError(err)
	s.Equal("Grace", user.FirstName)
	s.Equal("Hopper", user.LastName)
}

func (s *ResolveSuite) TestIdempotent() {
	first, err := s.service.Resolve(s.ctx, identity("sub-1", "ada@trust.org"))
	s.Require().NoError(err)

	second, err := s.service.Resolve(s.ctx, identity("sub-1", "ada@trust.org"))
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
	s.Equal(1, s.users.Count())
}

func (s *ResolveSuite) TestAdoptsExistingUserByEmail() {
	existing := &models.User{ID: id.NewUserID(), Email: "ada@trust.org", CreatedAt: fixedNow, UpdatedAt: fixedNow}
	s.Require().NoError(s.users.Create(s.ctx, existing))

	user, err := s.service.Resolve(s.ctx, identity("sub-1", "ADA@trust.org"))
	s.Require().NoError(err)
	s.Equal(existing.ID, user.ID)
	s.Equal("sub-1", user.ExternalID)
	s.Equal("Lovelace", user.LastName)
	s.Equal(1, s.users.Count())
}

func (s *ResolveSuite) TestAdoptionOverwritesPreviousLink() {
	existing := &models.User{ID: id.NewUserID(), ExternalID: "old-sub", Email: "ada@trust.org"}
	s.Require().NoError(s.users.Create(s.ctx, existing))

	user, err := s.service.Resolve(s.ctx, identity("new-sub", "ada@trust.org"))
	s.Require().NoError(err)
	s.Equal(existing.ID, user.ID)
	s.Equal("new-sub", user.ExternalID)
}

func (s *ResolveSuite) TestRefreshesLinkedProfile() {
	_, err := s.service.Resolve(s.ctx, identity("sub-1", "ada@trust.org"))
	s.Require().NoError(err)

	user, err := s.service.Resolve(s.ctx, &id.ExternalIdentity{Subject: "sub-1", Email: "ada@new.org", FirstName: "Augusta"})
	s.Require().NoError(err)
	s.Equal("ada@new.org", user.Email)
	s.Equal("Augusta", user.FirstName)
	s.Equal("Lovelace", user.LastName)
}

func (s *ResolveSuite) TestEmailTakenByAnotherUserIsConflict() {
	_, err := s.service.Resolve(s.ctx, identity("sub-1", "ada@trust.org"))
	s.Require().NoError(err)
	_, err = s.service.Resolve(s.ctx, identity("sub-2", "grace@trust.org"))
	s.Require().NoError(err)

	_, err = s.service.Resolve(s.ctx, identity("sub-2", "ada@trust.org"))
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ResolveSuite) TestConcurrentResolveCreatesOneUser() {
	var wg sync.WaitGroup
	ids := make([]id.UserID, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, err := s.service.Resolve(s.ctx, identity("sub-1", "ada@trust.org"))
			s.NoError(err)
			if user != nil {
				ids[i] = user.ID
			}
		}(i)
	}
	wg.Wait()

	s.Equal(1, s.users.Count())
	for _, got := range ids {
		s.Equal(ids[0], got)
	}
}

func (s *ResolveSuite) TestLookupByExternalIDNeverWrites() {
	user, err := s.service.LookupByExternalID(s.ctx, "sub-1")
	s.NoError(err)
	s.Nil(user)
	s.Zero(s.users.Count())
}

func (s *ResolveSuite) TestRequestResolver() {
	r := NewRequestResolver(s.service)

	resolved, err := r.Resolve(s.ctx, nil)
	s.NoError(err)
	s.Nil(resolved)

	resolved, err = r.Resolve(s.ctx, identity("sub-1", "ada@trust.org"))
	s.Require().NoError(err)
	s.Equal("ada@trust.org", resolved.Email)
	s.False(resolved.ID.IsNil())
}

// =============================================================================
// Write counting and error propagation with a mocked store
// =============================================================================

type ResolveMockSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	users   *mocks.MockUserStore
	service *Service
	ctx     context.Context
}

func TestResolveMockSuite(t *testing.T) {
	suite.Run(t, new(ResolveMockSuite))
}

func (s *ResolveMockSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.users = mocks.NewMockUserStore(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := New(s.users, tx.NewMemoryRunner(), WithLogger(logger))
	s.Require().NoError(err)
	s.service = svc
	s.ctx = requestcontext.WithTime(context.Background(), fixedNow)
}

func (s *ResolveMockSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ResolveMockSuite) TestNew() {
	_, err := New(nil, tx.NewMemoryRunner())
	s.ErrorContains(err, "user store is required")
	_, err = New(s.users, nil)
	s.ErrorContains(err, "tx runner is required")
}

func (s *ResolveMockSuite) TestUnchangedProfileDoesNotWrite() {
	linked := &models.User{ID: id.NewUserID(), ExternalID: "sub-1", Email: "ada@trust.org", FirstName: "Ada", LastName: "Lovelace"}
	s.users.EXPECT().FindByExternalID(gomock.Any(), "sub-1").Return(linked, nil)

	user, err := s.service.Resolve(s.ctx, identity("sub-1", "ada@trust.org"))
	s.Require().NoError(err)
	s.Equal(linked.ID, user.ID)
}

func (s *ResolveMockSuite) TestCreatePerformsExactlyOneWrite() {
	s.users.EXPECT().FindByExternalID(gomock.Any(), "sub-1").Return(nil, sentinel.ErrNotFound)
	s.users.EXPECT().FindByEmail(gomock.Any(), "ada@trust.org").Return(nil, sentinel.ErrNotFound)
	s.users.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	_, err := s.service.Resolve(s.ctx, identity("sub-1", "ada@trust.org"))
	s.NoError(err)
}

func (s *ResolveMockSuite) TestLostCreateRaceReturnsWinner() {
	winner := &models.User{ID: id.NewUserID(), ExternalID: "sub-1", Email: "ada@trust.org", FirstName: "Ada", LastName: "Lovelace"}
	gomock.InOrder(
		s.users.EXPECT().FindByExternalID(gomock.Any(), "sub-1").Return(nil, sentinel.ErrNotFound),
		s.users.EXPECT().FindByEmail(gomock.Any(), "ada@trust.org").Return(nil, sentinel.ErrNotFound),
		s.users.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrAlreadyUsed),
		s.users.EXPECT().FindByExternalID(gomock.Any(), "sub-1").Return(winner, nil),
	)

	user, err := s.service.Resolve(s.ctx, identity("sub-1", "ada@trust.org"))
	s.Require().NoError(err)
	s.Equal(winner.ID, user.ID)
}

func (s *ResolveMockSuite) TestStoreFailureIsUnavailable() {
	s.users.EXPECT().FindByExternalID(gomock.Any(), "sub-1").Return(nil, errors.New("connection reset"))

	_, err := s.service.Resolve(s.ctx, identity("sub-1", "ada@trust.org"))
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ResolveMockSuite) TestGetUser() {
	userID := id.NewUserID()
	s.users.EXPECT().FindByID(gomock.Any(), userID).Return(nil, sentinel.ErrNotFound)

	_, err := s.service.GetUser(s.ctx, userID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
