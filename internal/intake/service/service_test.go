package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Directory,AuditPublisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"incorp/internal/audit"
	"incorp/internal/intake/metrics"
	"incorp/internal/intake/models"
	"incorp/internal/intake/service/mocks"
	"incorp/pkg/domain"
	dErrors "incorp/pkg/domain-errors"
	"incorp/pkg/platform/sentinel"
)

// =============================================================================
// Request Repository Test Suite
// =============================================================================
// Exercises validation before storage, store error translation, and the
// audit and metrics side effects of each operation.

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *mocks.MockStore
	directory *mocks.MockDirectory
	audit     *mocks.MockAuditPublisher
	metrics   *metrics.Metrics
	service   *Service
	ctx       context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.directory = mocks.NewMockDirectory(s.ctrl)
	s.audit = mocks.NewMockAuditPublisher(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.ctx = context.Background()

	svc, err := New(s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithAuditPublisher(s.audit),
		WithDirectory(s.directory),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func validSubmission() models.Submission {
	return models.Submission{
		OwnerName:    "Grace Hopper",
		PhoneNumber:  "555-0100",
		CompanyName:  "Cobol Works",
		Address:      "1 Navy Yard",
		BusinessType: "corporation",
	}
}

func (s *ServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil)
		s.Require().Error(err)
		s.Contains(err.Error(), "request store is required")
	})
}

func (s *ServiceSuite) TestSubmit() {
	s.Run("valid submission is inserted pending and audited", func() {
		id := domain.RequestID(uuid.New())
		sub := validSubmission()
		sub.AdditionalDetails = "  two founders  "

		s.store.EXPECT().Insert(gomock.Any(), models.NewRequest{
			OwnerName:         "Grace Hopper",
			PhoneNumber:       "555-0100",
			CompanyName:       "Cobol Works",
			Address:           "1 Navy Yard",
			BusinessType:      domain.BusinessTypeCorporation,
			AdditionalDetails: "two founders",
		}).Return(id, nil)
		s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
			s.Equal(audit.ActionRequestSubmitted, e.Action)
			s.Equal(id.String(), e.Subject)
			s.Equal("pending", e.Status)
			return nil
		})

		s.Require().NoError(s.service.Submit(s.ctx, sub))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.RequestsSubmitted))
	})

	s.Run("long values are inserted unchanged", func() {
		id := domain.RequestID(uuid.New())
		sub := validSubmission()
		sub.OwnerName = strings.Repeat("a", 201)
		sub.AdditionalDetails = strings.Repeat("x", 5000)

		s.store.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req models.NewRequest) (domain.RequestID, error) {
			s.Equal(sub.OwnerName, req.OwnerName)
			s.Equal(sub.AdditionalDetails, req.AdditionalDetails)
			return id, nil
		})
		s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		s.Require().NoError(s.service.Submit(s.ctx, sub))
	})

	s.Run("missing phone number never reaches the store", func() {
		sub := validSubmission()
		sub.PhoneNumber = ""

		err := s.service.Submit(s.ctx, sub)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(map[string]string{models.FieldPhoneNumber: "Phone number is required"}, dErrors.Fields(err))
	})

	s.Run("whitespace-only fields are missing", func() {
		sub := validSubmission()
		sub.OwnerName = "   "
		sub.CompanyName = "\t"

		err := s.service.Submit(s.ctx, sub)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("Owner name is required", dErrors.Fields(err)[models.FieldOwnerName])
		s.Equal("Company name is required", dErrors.Fields(err)[models.FieldCompanyName])
	})

	s.Run("store rejection becomes a store error", func() {
		cause := errors.New("insert request: " + sentinel.ErrRejected.Error())
		s.store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(domain.RequestID{}, cause)

		err := s.service.Submit(s.ctx, validSubmission())
		s.Require().True(dErrors.HasCode(err, dErrors.CodeStore))
		s.ErrorIs(err, cause)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.StoreFailures.WithLabelValues("submit")))
	})
}

func (s *ServiceSuite) TestListAssigned() {
	principal := domain.PrincipalID(uuid.New())

	s.Run("returns rows in store order", func() {
		newer := &models.IncorporationRequest{ID: domain.RequestID(uuid.New()), CreatedAt: time.Now()}
		older := &models.IncorporationRequest{ID: domain.RequestID(uuid.New()), CreatedAt: time.Now().Add(-time.Hour)}
		s.store.EXPECT().ListAssigned(gomock.Any(), principal).Return([]*models.IncorporationRequest{newer, older}, nil)

		rows, err := s.service.ListAssigned(s.ctx, principal)
		s.Require().NoError(err)
		s.Equal([]*models.IncorporationRequest{newer, older}, rows)
	})

	s.Run("no rows is an empty slice", func() {
		s.store.EXPECT().ListAssigned(gomock.Any(), principal).Return(nil, nil)

		rows, err := s.service.ListAssigned(s.ctx, principal)
		s.Require().NoError(err)
		s.NotNil(rows)
		s.Empty(rows)
	})

	s.Run("nil principal is rejected", func() {
		_, err := s.service.ListAssigned(s.ctx, domain.PrincipalID{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("store failure is a store error", func() {
		s.store.EXPECT().ListAssigned(gomock.Any(), principal).Return(nil, sentinel.ErrUnavailable)

		_, err := s.service.ListAssigned(s.ctx, principal)
		s.True(dErrors.HasCode(err, dErrors.CodeStore))
		s.ErrorIs(err, sentinel.ErrUnavailable)
	})
}

func (s *ServiceSuite) TestListAll() {
	s.store.EXPECT().ListAll(gomock.Any()).Return(nil, nil)
	rows, err := s.service.ListAll(s.ctx)
	s.Require().NoError(err)
	s.NotNil(rows)

	s.store.EXPECT().ListAll(gomock.Any()).Return(nil, sentinel.ErrUnavailable)
	_, err = s.service.ListAll(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeStore))
}

func (s *ServiceSuite) TestUpdateStatus() {
	id := domain.RequestID(uuid.New())

	s.Run("valid status is written and audited", func() {
		s.store.EXPECT().UpdateStatus(gomock.Any(), id, domain.RequestStatusCompleted).Return(nil).Times(2)
		s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).Times(2)

		s.Require().NoError(s.service.UpdateStatus(s.ctx, id, domain.RequestStatusCompleted))
		s.Require().NoError(s.service.UpdateStatus(s.ctx, id, domain.RequestStatusCompleted))
		s.Equal(2.0, testutil.ToFloat64(s.metrics.StatusChanges.WithLabelValues("completed")))
	})

	s.Run("unknown status never reaches the store", func() {
		err := s.service.UpdateStatus(s.ctx, id, domain.RequestStatus("archived"))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("row hidden by policy is a store error", func() {
		s.store.EXPECT().UpdateStatus(gomock.Any(), id, domain.RequestStatusPending).Return(sentinel.ErrNotFound)

		err := s.service.UpdateStatus(s.ctx, id, domain.RequestStatusPending)
		s.True(dErrors.HasCode(err, dErrors.CodeStore))
	})

	s.Run("audit failure does not fail the update", func() {
		s.store.EXPECT().UpdateStatus(gomock.Any(), id, domain.RequestStatusInProgress).Return(nil)
		s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("queue closed"))

		s.NoError(s.service.UpdateStatus(s.ctx, id, domain.RequestStatusInProgress))
	})
}

func (s *ServiceSuite) TestAssign() {
	id := domain.RequestID(uuid.New())
	handler := domain.PrincipalID(uuid.New())

	s.Run("handler assignee is stored and audited", func() {
		s.directory.EXPECT().RoleOf(gomock.Any(), handler).Return(domain.RoleHandler, nil)
		s.store.EXPECT().Assign(gomock.Any(), id, handler).Return(nil)
		s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
			s.Equal(audit.ActionRequestAssigned, e.Action)
			s.Equal(handler.String(), e.Assignee)
			return nil
		})

		s.Require().NoError(s.service.Assign(s.ctx, id, handler))
	})

	s.Run("admin assignee is rejected", func() {
		s.directory.EXPECT().RoleOf(gomock.Any(), handler).Return(domain.RoleAdmin, nil)

		err := s.service.Assign(s.ctx, id, handler)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown assignee is rejected", func() {
		s.directory.EXPECT().RoleOf(gomock.Any(), handler).Return(domain.Role(""), sentinel.ErrNotFound)

		err := s.service.Assign(s.ctx, id, handler)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("store refusal is a store error", func() {
		s.directory.EXPECT().RoleOf(gomock.Any(), handler).Return(domain.RoleHandler, nil)
		s.store.EXPECT().Assign(gomock.Any(), id, handler).Return(sentinel.ErrRejected)

		err := s.service.Assign(s.ctx, id, handler)
		s.True(dErrors.HasCode(err, dErrors.CodeStore))
		s.ErrorIs(err, sentinel.ErrRejected)
	})

	s.Run("nil assignee is rejected", func() {
		err := s.service.Assign(s.ctx, id, domain.PrincipalID{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("without a directory assignment is unavailable", func() {
		svc, err := New(s.store)
		s.Require().NoError(err)
		err = svc.Assign(s.ctx, id, handler)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}
