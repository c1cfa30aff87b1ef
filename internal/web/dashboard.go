package web

import (
	"context"
	"errors"
	"log/slog"

	"incorp/internal/intake/models"
	"incorp/pkg/domain"
	"incorp/pkg/requestcontext"
)

// ErrAuthRequired is returned by Mount when no principal is signed in. The
// router answers it with a redirect to the sign-in page.
var ErrAuthRequired = errors.New("sign-in required")

// AlertStatusUpdateFailed is shown when a status change is rejected.
const AlertStatusUpdateFailed = "Failed to update status"

// AlertLoadFailed is shown when the board could not be fetched.
const AlertLoadFailed = "Failed to load requests"

// BoardState is the display phase of a dashboard.
type BoardState string

const (
	BoardLoading   BoardState = "loading"
	BoardEmpty     BoardState = "empty"
	BoardPopulated BoardState = "populated"
)

// AssignmentBoard is the view model behind the handler dashboard. One board
// serves one request: Mount fetches once, ChangeStatus edits the fetched
// copy.
type AssignmentBoard struct {
	requests AssignedLister
	logger   *slog.Logger

	State BoardState
	Cards []*models.IncorporationRequest
	Alert string
}

// NewAssignmentBoard returns a board in the loading state.
func NewAssignmentBoard(requests AssignedLister, logger *slog.Logger) *AssignmentBoard {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssignmentBoard{requests: requests, logger: logger, State: BoardLoading}
}

// Mount loads the requests assigned to the session's principal. Without a
// principal nothing is fetched. A fetch failure leaves an empty board with
// an alert and is not returned.
func (b *AssignmentBoard) Mount(ctx context.Context, session Session) error {
	if !session.SignedIn() {
		return ErrAuthRequired
	}
	rows, err := b.requests.ListAssigned(ctx, session.Identity.PrincipalID)
	if err != nil {
		b.logger.ErrorContext(ctx, "failed to load assigned requests",
			"principal_id", session.Identity.PrincipalID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		b.Cards = nil
		b.State = BoardEmpty
		b.Alert = AlertLoadFailed
		return nil
	}
	b.Cards = rows
	b.State = stateFor(len(rows))
	return nil
}

// ChangeStatus asks the repository to relabel one request. Only on success
// does that card's status change; on failure the card keeps its prior value
// and Alert is set.
func (b *AssignmentBoard) ChangeStatus(ctx context.Context, id domain.RequestID, status domain.RequestStatus) error {
	if err := b.requests.UpdateStatus(ctx, id, status); err != nil {
		b.logger.WarnContext(ctx, "status update rejected",
			"request", id.String(),
			"status", string(status),
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

func stateFor(n int) BoardState {
	if n == 0 {
		return BoardEmpty
	}
	return BoardPopulated
}

func findCard(cards []*models.IncorporationRequest, id domain.RequestID) *models.IncorporationRequest {
	for _, c := range cards {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (b *AssignmentBoard) alert(message string) { b.Alert = message }
