package audit

import "time"

// Action names a recorded portal action.
type Action string

const (
	ActionRequestSubmitted     Action = "request_submitted"
	ActionRequestStatusChanged Action = "request_status_changed"
	ActionRequestAssigned      Action = "request_assigned"
	ActionPrincipalCreated     Action = "principal_created"
	ActionPrincipalSignedIn    Action = "principal_signed_in"
	ActionPrincipalSignedOut   Action = "principal_signed_out"
	ActionSignInFailed         Action = "sign_in_failed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out. Events are a record only; nothing
// reacts to them.
type Event struct {
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	// ActorID is the principal performing the action, empty for anonymous
	// submitters.
	ActorID   string `json:"actor_id,omitempty"`
	ActorRole string `json:"actor_role,omitempty"`
	// Subject is the request or principal acted upon.
	Subject   string `json:"subject,omitempty"`
	Status    string `json:"status,omitempty"`
	Assignee  string `json:"assignee,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
}
