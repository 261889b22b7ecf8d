package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"landtrust/internal/access"
	"landtrust/internal/registration/handler/mocks"
	"landtrust/internal/registration/models"
	"landtrust/internal/registration/service"
	id "landtrust/pkg/domain"
	dErrors "landtrust/pkg/domain-errors"
	"landtrust/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service,StaffChecker
type RegistrationHandlerSuite struct {
	suite.Suite
	userID id.UserID
	regID  id.RegistrationID
}

func TestRegistrationHandlerSuite(t *testing.T) {
	suite.Run(t, new(RegistrationHandlerSuite))
}

func (s *RegistrationHandlerSuite) SetupTest() {
	s.userID = id.UserID(uuid.New())
	s.regID = id.NewRegistrationID()
}

type testDeps struct {
	router  chi.Router
	service *mocks.MockService
	staff   *mocks.MockStaffChecker
}

func newTestHandler(t *testing.T, opts ...Option) testDeps {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	svc := mocks.NewMockService(ctrl)
	staff := mocks.NewMockStaffChecker(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(svc, staff, logger, opts...)
	r := chi.NewRouter()
	h.Register(r)
	r.Route("/admin", h.RegisterAdmin)
	return testDeps{router: r, service: svc, staff: staff}
}

func (s *RegistrationHandlerSuite) pending() *models.Registration {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.Registration{
		ID:        s.regID,
		UserID:    s.userID,
		Status:    models.StatusPending,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.org",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *RegistrationHandlerSuite) TestSubmit() {
	s.Run("returns the registration id", func() {
		deps := newTestHandler(s.T())
		deps.service.EXPECT().
			Submit(gomock.Any(), s.userID, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.UserID, req models.SubmitRequest) (id.RegistrationID, error) {
				s.Equal("Ada", req.FirstName)
				s.True(req.AgreedToTerms)
				return s.regID, nil
			})

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/registrations", map[string]any{
			"firstName":     "Ada",
			"lastName":      "Lovelace",
			"email":         "ada@example.org",
			"agreedToTerms": true,
		})
		rr := testutil.DoRequest(deps.router, testutil.WithUser(req, s.userID, "ada@example.org"))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[SubmitResponse](s.T(), rr)
		s.Equal(s.regID.String(), resp.ID)
	})

	s.Run("malformed json is a bad request", func() {
		deps := newTestHandler(s.T())
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/registrations", nil)
		req.Body = io.NopCloser(strings.NewReader("{not json"))
		rr := testutil.DoRequest(deps.router, testutil.WithUser(req, s.userID, "ada@example.org"))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("validation failure maps to 400", func() {
		deps := newTestHandler(s.T())
		deps.service.EXPECT().Submit(gomock.Any(), s.userID, gomock.Any()).
			Return(id.RegistrationID{}, dErrors.New(dErrors.CodeValidation, "firstName is required"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/registrations", map[string]any{})
		rr := testutil.DoRequest(deps.router, testutil.WithUser(req, s.userID, "ada@example.org"))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

func (s *RegistrationHandlerSuite) TestGetMine() {
	s.Run("no registration renders null", func() {
		deps := newTestHandler(s.T())
		deps.service.EXPECT().GetByUser(gomock.Any(), s.userID).Return(nil, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/registrations/me", nil)
		rr := testutil.DoRequest(deps.router, testutil.WithUser(req, s.userID, "ada@example.org"))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.JSONEq(`{"reg":null}`, rr.Body.String())
	})

	s.Run("existing registration with attachments", func() {
		deps := newTestHandler(s.T())
		reg := s.pending()
		reg.Attachments = []models.Attachment{{
			ID:   id.AttachmentID(uuid.New()),
			Kind: models.KindIDProof,
			URL:  "https://blobs.example.org/id.pdf",
		}}
		deps.service.EXPECT().GetByUser(gomock.Any(), s.userID).Return(reg, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/registrations/me", nil)
		rr := testutil.DoRequest(deps.router, testutil.WithUser(req, s.userID, "ada@example.org"))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[MineResponse](s.T(), rr)
		require.NotNil(s.T(), resp.Registration)
		s.Equal("PENDING", resp.Registration.Status)
		s.Require().Len(resp.Registration.Attachments, 1)
		s.Equal("ID_PROOF", resp.Registration.Attachments[0].Kind)
	})
}

func (s *RegistrationHandlerSuite) TestUpdateExistingProperty() {
	s.Run("not approved is forbidden", func() {
		deps := newTestHandler(s.T())
		deps.service.EXPECT().UpdateExistingPropertyInfo(gomock.Any(), s.userID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "registration not approved yet"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/registrations/me/existing-property", map[string]any{
			"hasExistingProperty": true,
			"existingLotNumber":   "L-12",
		})
		rr := testutil.DoRequest(deps.router, testutil.WithUser(req, s.userID, "ada@example.org"))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeForbidden))
	})

	s.Run("no registration is a bad request", func() {
		deps := newTestHandler(s.T())
		deps.service.EXPECT().UpdateExistingPropertyInfo(gomock.Any(), s.userID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeBadRequest, "no registration found"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/registrations/me/existing-property", map[string]any{})
		rr := testutil.DoRequest(deps.router, testutil.WithUser(req, s.userID, "ada@example.org"))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("approved registration is updated", func() {
		deps := newTestHandler(s.T())
		reg := s.pending()
		reg.Status = models.StatusApproved
		reg.HasExistingProperty = true
		reg.ExistingLotNumber = "L-12"
		deps.service.EXPECT().UpdateExistingPropertyInfo(gomock.Any(), s.userID, gomock.Any()).Return(reg, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/registrations/me/existing-property", map[string]any{
			"hasExistingProperty": true,
			"existingLotNumber":   "L-12",
		})
		rr := testutil.DoRequest(deps.router, testutil.WithUser(req, s.userID, "ada@example.org"))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[MineResponse](s.T(), rr)
		s.Equal("L-12", resp.Registration.ExistingLotNumber)
	})
}

func (s *RegistrationHandlerSuite) TestAddAttachment() {
	path := func(regID id.RegistrationID) string { return "/registrations/" + regID.String() + "/attachments" }

	s.Run("owner uploads a document", func() {
		deps := newTestHandler(s.T())
		deps.staff.EXPECT().CheckAdmin(gomock.Any(), gomock.Any()).
			Return(access.Decision{SignedIn: true, Reason: access.ReasonNotAllowlisted}, nil)
		deps.service.EXPECT().AddAttachment(gomock.Any(), gomock.Any(), s.regID, gomock.Any()).
			DoAndReturn(func(_ context.Context, caller service.Caller, _ id.RegistrationID, req models.AddAttachmentRequest) (*models.Attachment, error) {
				s.Equal(s.userID, caller.UserID)
				s.False(caller.Staff)
				s.Equal(models.KindBirthCertificate, req.Kind)
				s.Equal("birth.pdf", req.FileName)
				s.Equal("front page", req.Label)
				body, err := io.ReadAll(req.Body)
				s.Require().NoError(err)
				s.Equal("%PDF-1.4", string(body))
				return &models.Attachment{
					ID:        id.AttachmentID(uuid.New()),
					Kind:      req.Kind,
					URL:       "https://blobs.example.org/birth.pdf",
					Label:     req.Label,
					SizeBytes: int64(len(body)),
				}, nil
			})

		req := testutil.NewMultipartRequest(s.T(), path(s.regID),
			map[string]string{"kind": "birth_certificate", "label": "front page"},
			"file", "birth.pdf", []byte("%PDF-1.4"))
		rr := testutil.DoRequest(deps.router, testutil.WithUser(req, s.userID, "ada@example.org"))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[AttachmentResponse](s.T(), rr)
		s.Equal("BIRTH_CERTIFICATE", resp.Kind)
		s.EqualValues(8, resp.SizeBytes)
	})

	s.Run("staff caller is flagged", func() {
		deps := newTestHandler(s.T())
		deps.staff.EXPECT().CheckAdmin(gomock.Any(), gomock.Any()).
			Return(access.Decision{SignedIn: true, Authorized: true}, nil)
		deps.service.EXPECT().AddAttachment(gomock.Any(), gomock.Any(), s.regID, gomock.Any()).
			DoAndReturn(func(_ context.Context, caller service.Caller, _ id.RegistrationID, req models.AddAttachmentRequest) (*models.Attachment, error) {
				s.True(caller.Staff)
				return &models.Attachment{Kind: req.Kind}, nil
			})

		req := testutil.NewMultipartRequest(s.T(), path(s.regID), map[string]string{"kind": "OTHER"}, "file", "note.txt", []byte("hi"))
		rr := testutil.DoRequest(deps.router, testutil.WithUser(req, s.userID, "staff@example.org"))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	})

	s.Run("missing kind", func() {
		deps := newTestHandler(s.T())
		req := testutil.NewMultipartRequest(s.T(), path(s.regID), nil, "file", "a.pdf", []byte("x"))
		rr := testutil.DoRequest(deps.router, testutil.WithUser(req, s.userID, "ada@example.org"))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("missing file", func() {
		deps := newTestHandler(s.T())
		req := testutil.NewMultipartRequest(s.T(), path(s.regID), map[string]string{"kind": "ID_PROOF"}, "file", "", nil)
		rr := testutil.DoRequest(deps.router, testutil.WithUser(req, s.userID, "ada@example.org"))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("unknown kind", func() {
		deps := newTestHandler(s.T())
		req := testutil.NewMultipartRequest(s.T(), path(s.regID), map[string]string{"kind": "PASSPORT"}, "file", "a.pdf", []byte("x"))
		rr := testutil.DoRequest(deps.router, testutil.WithUser(req, s.userID, "ada@example.org"))

		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("file over the limit", func() {
		deps := newTestHandler(s.T(), WithMaxUploadBytes(1024))
		req := testutil.NewMultipartRequest(s.T(), path(s.regID), map[string]string{"kind": "ID_PROOF"}, "file", "big.pdf", make([]byte, 4096))
		rr := testutil.DoRequest(deps.router, testutil.WithUser(req, s.userID, "ada@example.org"))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("invalid registration id", func() {
		deps := newTestHandler(s.T())
		req := testutil.NewMultipartRequest(s.T(), "/registrations/not-a-uuid/attachments", map[string]string{"kind": "ID_PROOF"}, "file", "a.pdf", []byte("x"))
		rr := testutil.DoRequest(deps.router, testutil.WithUser(req, s.userID, "ada@example.org"))

		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("stranger is forbidden", func() {
		deps := newTestHandler(s.T())
		deps.staff.EXPECT().CheckAdmin(gomock.Any(), gomock.Any()).
			Return(access.Decision{SignedIn: true, Reason: access.ReasonNotAllowlisted}, nil)
		deps.service.EXPECT().AddAttachment(gomock.Any(), gomock.Any(), s.regID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "not allowed to modify this registration"))

		req := testutil.NewMultipartRequest(s.T(), path(s.regID), map[string]string{"kind": "ID_PROOF"}, "file", "a.pdf", []byte("x"))
		rr := testutil.DoRequest(deps.router, testutil.WithUser(req, s.userID, "eve@example.org"))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeForbidden))
	})
}

func (s *RegistrationHandlerSuite) TestAdminList() {
	s.Run("passes filters and renders next cursor", func() {
		deps := newTestHandler(s.T())
		deps.service.EXPECT().List(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, f models.ListFilter) (*models.ListPage, error) {
				s.Equal("ada", f.Query)
				s.Equal(models.StatusPending, f.Status)
				s.Equal(10, f.Limit)
				return &models.ListPage{Items: []*models.Registration{s.pending()}, NextCursor: "abc"}, nil
			})

		req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/admin/registrations?q=ada&status=PENDING&limit=10", nil)
		rr := testutil.DoRequest(deps.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[ListResponse](s.T(), rr)
		s.Len(resp.Items, 1)
		s.Equal("abc", resp.NextCursor)
	})

	s.Run("bad status filter", func() {
		deps := newTestHandler(s.T())
		req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/admin/registrations?status=MAYBE", nil)
		rr := testutil.DoRequest(deps.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}

func (s *RegistrationHandlerSuite) TestAdminDetail() {
	s.Run("renders checklist and events", func() {
		deps := newTestHandler(s.T())
		checklist := models.EvaluateChecklist([]models.Kind{models.KindIDProof})
		deps.service.EXPECT().GetDetail(gomock.Any(), s.regID).Return(&models.Detail{
			Registration: s.pending(),
			Checklist:    checklist,
			Events: []models.Event{{
				Type:       "REGISTRATION_STATUS_CHANGED",
				ActorEmail: "staff@example.org",
				Message:    "PENDING -> APPROVED",
			}},
		}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/admin/registrations/"+s.regID.String(), nil)
		rr := testutil.DoRequest(deps.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[DetailResponse](s.T(), rr)
		s.False(resp.Checklist.Complete)
		s.Len(resp.Checklist.Missing, 4)
		s.Require().Len(resp.Events, 1)
		s.Equal("staff@example.org", resp.Events[0].ActorEmail)
	})

	s.Run("unknown registration", func() {
		deps := newTestHandler(s.T())
		deps.service.EXPECT().GetDetail(gomock.Any(), s.regID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "registration not found"))

		req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/admin/registrations/"+s.regID.String(), nil)
		rr := testutil.DoRequest(deps.router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})
}

func (s *RegistrationHandlerSuite) TestAdminTransition() {
	s.Run("approves with the signed-in actor", func() {
		deps := newTestHandler(s.T())
		approved := s.pending()
		approved.Status = models.StatusApproved
		deps.service.EXPECT().
			Transition(gomock.Any(), s.regID, models.StatusApproved, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.RegistrationID, _ models.Status, actor id.Actor) (*models.Registration, error) {
				s.Equal("staff@example.org", actor.Email)
				return approved, nil
			})

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/registrations/"+s.regID.String()+"/status", map[string]string{"to": "approved"})
		rr := testutil.DoRequest(deps.router, testutil.WithUser(req, id.UserID(uuid.New()), "staff@example.org"))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[RegistrationResponse](s.T(), rr)
		s.Equal("APPROVED", resp.Status)
	})

	s.Run("pending is not a valid target", func() {
		deps := newTestHandler(s.T())
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/registrations/"+s.regID.String()+"/status", map[string]string{"to": "PENDING"})
		rr := testutil.DoRequest(deps.router, testutil.WithUser(req, id.UserID(uuid.New()), "staff@example.org"))

		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("conflicting decision", func() {
		deps := newTestHandler(s.T())
		deps.service.EXPECT().Transition(gomock.Any(), s.regID, models.StatusRejected, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "registration already APPROVED"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/registrations/"+s.regID.String()+"/status", map[string]string{"to": "REJECTED"})
		rr := testutil.DoRequest(deps.router, testutil.WithUser(req, id.UserID(uuid.New()), "staff@example.org"))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
	})

	s.Run("storage outage is hidden", func() {
		deps := newTestHandler(s.T())
		deps.service.EXPECT().Transition(gomock.Any(), s.regID, models.StatusApproved, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeUnavailable, "audit store down"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/registrations/"+s.regID.String()+"/status", map[string]string{"to": "APPROVED"})
		rr := testutil.DoRequest(deps.router, testutil.WithUser(req, id.UserID(uuid.New()), "staff@example.org"))

		testutil.AssertStatus(s.T(), rr, http.StatusServiceUnavailable)
		assert.NotContains(s.T(), rr.Body.String(), "audit store down")
	})
}
