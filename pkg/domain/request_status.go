package domain

import dErrors "incorp/pkg/domain-errors"

// RequestStatus is the free-standing progress label of a request. Any
// authorized viewer may set any of the three values at any time; there are no
// transition rules.
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "pending"
	RequestStatusInProgress RequestStatus = "in_progress"
	RequestStatusCompleted  RequestStatus = "completed"
)

var requestStatuses = []RequestStatus{
	RequestStatusPending,
	RequestStatusInProgress,
	RequestStatusCompleted,
}

var requestStatusLabels = map[RequestStatus]string{
	RequestStatusPending:    "Pending",
	RequestStatusInProgress: "In Progress",
	RequestStatusCompleted:  "Completed",
}

// RequestStatuses returns the three statuses in selector order.
func RequestStatuses() []RequestStatus {
	return append([]RequestStatus(nil), requestStatuses...)
}

// ParseRequestStatus constructs a RequestStatus from external input.
//
// Errors: CodeInvalidInput when the value is empty or not one of the three.
func ParseRequestStatus(s string) (RequestStatus, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "status cannot be empty")
	}
	st := RequestStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid status")
	}
	return st, nil
}

func (s RequestStatus) IsValid() bool {
	_, ok := requestStatusLabels[s]
	return ok
}

func (s RequestStatus) Label() string {
	if l, ok := requestStatusLabels[s]; ok {
		return l
	}
	return string(s)
}

func (s RequestStatus) String() string { return string(s) }
