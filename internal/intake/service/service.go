package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"incorp/internal/audit"
	"incorp/internal/intake/metrics"
	"incorp/internal/intake/models"
	"incorp/pkg/domain"
	dErrors "incorp/pkg/domain-errors"
	"incorp/pkg/platform/sentinel"
	"incorp/pkg/requestcontext"
)

// Store persists incorporation requests. Implementations enforce the row
// policy for the principal carried in ctx; the service never filters rows.
type Store interface {
	Insert(ctx context.Context, req models.NewRequest) (domain.RequestID, error)
	ListAssigned(ctx context.Context, principal domain.PrincipalID) ([]*models.IncorporationRequest, error)
	ListAll(ctx context.Context) ([]*models.IncorporationRequest, error)
	UpdateStatus(ctx context.Context, id domain.RequestID, status domain.RequestStatus) error
	Assign(ctx context.Context, id domain.RequestID, principal domain.PrincipalID) error
}

// Directory resolves the role of a principal that may receive an
// assignment.
type Directory interface {
	RoleOf(ctx context.Context, id domain.PrincipalID) (domain.Role, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

var tracer = otel.Tracer("incorp/internal/intake/service")

// Service is the request repository used by the web layer and portalctl.
type Service struct {
	store          Store
	directory      Directory
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithDirectory enables Assign. Without it every assignment is rejected.
func WithDirectory(d Directory) Option {
	return func(s *Service) {
		s.directory = d
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("request store is required")
	}
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit validates a public submission and stores it as a new pending,
// unassigned request. Validation failures carry per-field messages
// (dErrors.Fields) and never reach the store.
func (s *Service) Submit(ctx context.Context, sub models.Submission) error {
	ctx, span := tracer.Start(ctx, "intake.Submit")
	defer span.End()
	defer s.observe("submit", time.Now())

	res := models.RegistrationSchema.Bind(sub.Values())
	if !res.Valid() {
		if s.metrics != nil {
			s.metrics.IncrementValidationFailure()
		}
		return dErrors.New(dErrors.CodeValidation, "submission is invalid").WithFields(res.Errors)
	}

	id, err := s.store.Insert(ctx, models.NewRequestFromResult(res))
	if err != nil {
		return s.storeError(ctx, span, "submit", err, "failed to store request")
	}
	span.SetAttributes(attribute.String("request.id", id.String()))

	if s.metrics != nil {
		s.metrics.IncrementSubmitted()
	}
	s.emit(ctx, audit.Event{
		Action:  audit.ActionRequestSubmitted,
		Subject: id.String(),
		Status:  string(domain.RequestStatusPending),
	})
	return nil
}

// ListAssigned returns the requests assigned to principal, newest first. No
// matches yield an empty, non-nil slice.
func (s *Service) ListAssigned(ctx context.Context, principal domain.PrincipalID) ([]*models.IncorporationRequest, error) {
	ctx, span := tracer.Start(ctx, "intake.ListAssigned",
		trace.WithAttributes(attribute.String("principal.id", principal.String())))
	defer span.End()
	defer s.observe("list_assigned", time.Now())

	if principal.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "principal is required")
	}
	rows, err := s.store.ListAssigned(ctx, principal)
	if err != nil {
		return nil, s.storeError(ctx, span, "list_assigned", err, "failed to load assigned requests")
	}
	if rows == nil {
		rows = []*models.IncorporationRequest{}
	}
	span.SetAttributes(attribute.Int("request.count", len(rows)))
	return rows, nil
}

// ListAll returns every request the caller's policy exposes, newest first.
func (s *Service) ListAll(ctx context.Context) ([]*models.IncorporationRequest, error) {
	ctx, span := tracer.Start(ctx, "intake.ListAll")
	defer span.End()
	defer s.observe("list_all", time.Now())

	rows, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, s.storeError(ctx, span, "list_all", err, "failed to load requests")
	}
	if rows == nil {
		rows = []*models.IncorporationRequest{}
	}
	return rows, nil
}

// UpdateStatus sets the status label of one request. Writing the current
// value again succeeds.
func (s *Service) UpdateStatus(ctx context.Context, id domain.RequestID, status domain.RequestStatus) error {
	ctx, span := tracer.Start(ctx, "intake.UpdateStatus", trace.WithAttributes(
		attribute.String("request.id", id.String()),
		attribute.String("request.status", string(status)),
	))
	defer span.End()
	defer s.observe("update_status", time.Now())

	if !status.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid request status")
	}
	if err := s.store.UpdateStatus(ctx, id, status); err != nil {
		return s.storeError(ctx, span, "update_status", err, "failed to update status")
	}

	if s.metrics != nil {
		s.metrics.IncrementStatusChange(string(status))
	}
	s.emit(ctx, audit.Event{
		Action:  audit.ActionRequestStatusChanged,
		Subject: id.String(),
		Status:  string(status),
	})
	return nil
}

// Assign hands a request to a handler. The assignee must exist and hold the
// handler role; whether the caller may assign is decided by the store.
func (s *Service) Assign(ctx context.Context, id domain.RequestID, assignee domain.PrincipalID) error {
	ctx, span := tracer.Start(ctx, "intake.Assign", trace.WithAttributes(
		attribute.String("request.id", id.String()),
		attribute.String("assignee.id", assignee.String()),
	))
	defer span.End()
	defer s.observe("assign", time.Now())

	if assignee.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "assignee is required")
	}
	if s.directory == nil {
		return dErrors.New(dErrors.CodeInternal, "assignment is not configured")
	}
	role, err := s.directory.RoleOf(ctx, assignee)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || dErrors.HasCode(err, dErrors.CodeNotFound) {
			return dErrors.New(dErrors.CodeValidation, "assignee must be an existing handler")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve assignee")
	}
	if role != domain.RoleHandler {
		return dErrors.New(dErrors.CodeValidation, "assignee must be an existing handler")
	}

	if err := s.store.Assign(ctx, id, assignee); err != nil {
		return s.storeError(ctx, span, "assign", err, "failed to assign request")
	}

	if s.metrics != nil {
		s.metrics.IncrementAssignment()
	}
	s.emit(ctx, audit.Event{
		Action:   audit.ActionRequestAssigned,
		Subject:  id.String(),
		Assignee: assignee.String(),
	})
	return nil
}

// storeError logs the underlying failure and returns a CodeStore error that
// still unwraps to it.
func (s *Service) storeError(ctx context.Context, span trace.Span, op string, err error, msg string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	if s.metrics != nil {
		s.metrics.IncrementStoreFailure(op)
	}
	s.logger.ErrorContext(ctx, msg,
		"operation", op,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	return dErrors.Wrap(err, dErrors.CodeStore, msg)
}

func (s *Service) observe(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, start)
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", string(event.Action),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}
