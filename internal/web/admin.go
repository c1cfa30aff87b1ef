package web

import (
	"context"
	"log/slog"

	authModels "incorp/internal/auth/models"
	"incorp/internal/intake/models"
	"incorp/pkg/domain"
	dErrors "incorp/pkg/domain-errors"
	"incorp/pkg/requestcontext"
)

// AlertAssignFailed is shown when an assignment is rejected.
const AlertAssignFailed = "Failed to assign request"

// AdminBoard lists every request with an assignee picker.
type AdminBoard struct {
	requests RequestAdmin
	handlers HandlerLister
	logger   *slog.Logger

	State    BoardState
	Cards    []*models.IncorporationRequest
	Handlers []*authModels.Principal
	Alert    string
}

// NewAdminBoard returns a board in the loading state.
func NewAdminBoard(requests RequestAdmin, handlers HandlerLister, logger *slog.Logger) *AdminBoard {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminBoard{requests: requests, handlers: handlers, logger: logger, State: BoardLoading}
}

// Mount loads all requests the caller may see plus the handler directory.
func (b *AdminBoard) Mount(ctx context.Context, session Session) error {
	if !session.SignedIn() {
		return ErrAuthRequired
	}
	if !session.IsAdmin() {
		return dErrors.New(dErrors.CodeForbidden, "admin role required")
	}
	rows, err := b.requests.ListAll(ctx)
	if err != nil {
		b.logger.ErrorContext(ctx, "failed to load requests",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		b.State = BoardEmpty
		b.Alert = AlertLoadFailed
		return nil
	}
	b.Cards = rows
	b.State = stateFor(len(rows))

	handlers, err := b.handlers.ListHandlers(ctx)
	if err != nil {
		b.logger.ErrorContext(ctx, "failed to load handlers",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		b.Alert = AlertLoadFailed
		return nil
	}
	b.Handlers = handlers
	return nil
}

// ChangeStatus relabels one request; see AssignmentBoard.ChangeStatus.
func (b *AdminBoard) ChangeStatus(ctx context.Context, id domain.RequestID, status domain.RequestStatus) error {
	if err := b.requests.UpdateStatus(ctx, id, status); err != nil {
		b.logger.WarnContext(ctx, "status update rejected",
			"request", id.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		b.Alert = AlertStatusUpdateFailed
		return err
	}
	if card := findCard(b.Cards, id); card != nil {
		card.Status = status
	}
	return nil
}

// Assign hands one request to a handler and updates its card.
func (b *AdminBoard) Assign(ctx context.Context, id domain.RequestID, assignee domain.PrincipalID) error {
	if err := b.requests.Assign(ctx, id, assignee); err != nil {
		b.logger.WarnContext(ctx, "assignment rejected",
			"request", id.String(),
			"assignee", assignee.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		b.Alert = AlertAssignFailed
		return err
	}
	if card := findCard(b.Cards, id); card != nil {
		a := assignee
		card.AssignedTo = &a
	}
	return nil
}

// AssigneeName resolves a card's assignee against the loaded directory.
func (b *AdminBoard) AssigneeName(card *models.IncorporationRequest) string {
	if card.AssignedTo == nil {
		return ""
	}
	for _, h := range b.Handlers {
		if h.ID == *card.AssignedTo {
			if h.DisplayName != "" {
				return h.DisplayName
			}
			return h.Email
		}
	}
	return card.AssignedTo.String()
}

func (b *AdminBoard) alert(message string) { b.Alert = message }
