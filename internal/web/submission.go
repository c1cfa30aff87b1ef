package web

import (
	"context"
	"log/slog"
	"net/url"

	"incorp/internal/intake/models"
	dErrors "incorp/pkg/domain-errors"
	"incorp/pkg/requestcontext"
)

// Flash messages shown above the registration form.
const (
	FlashSubmitted    = "Registration submitted successfully!"
	FlashSubmitFailed = "Failed to submit registration. Please try again."
)

// FlashKind selects how a flash is styled.
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
)

// Flash is a one-shot notice rendered with the page.
type Flash struct {
	Kind    FlashKind
	Message string
}

// FormState is what the registration template renders: the current value and
// error message of every field.
type FormState struct {
	Values map[string]string
	Errors map[string]string
}

// Value returns the current value of a field.
func (f FormState) Value(name string) string { return f.Values[name] }

// Error returns the message for a field, or "".
func (f FormState) Error(name string) string { return f.Errors[name] }

// EmptyForm is the registration form with every field cleared.
func EmptyForm() FormState {
	empty := models.RegistrationSchema.Empty()
	return FormState{Values: empty.Values, Errors: empty.Errors}
}

// SubmissionOutcome is the state of the registration page after a submit.
type SubmissionOutcome struct {
	Form  FormState
	Flash *Flash
}

// Invalid reports whether any field failed validation.
func (o SubmissionOutcome) Invalid() bool {
	return len(o.Form.Errors) > 0
}

// Failed reports whether the store rejected a valid submission.
func (o SubmissionOutcome) Failed() bool {
	return o.Flash != nil && o.Flash.Kind == FlashError
}

// SubmissionFlow drives the public registration form.
type SubmissionFlow struct {
	submitter Submitter
	logger    *slog.Logger
}

// NewSubmissionFlow builds the flow around the request repository.
func NewSubmissionFlow(submitter Submitter, logger *slog.Logger) *SubmissionFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionFlow{submitter: submitter, logger: logger}
}

// Submit validates values and, when they pass, stores them. Invalid input
// never reaches the store; on success every field is cleared; on a store
// failure the entered values are kept so the visitor can retry.
func (f *SubmissionFlow) Submit(ctx context.Context, values map[string]string) SubmissionOutcome {
	res := models.RegistrationSchema.Bind(values)
	if !res.Valid() {
		return SubmissionOutcome{Form: FormState{Values: res.Values, Errors: res.Errors}}
	}

	if err := f.submitter.Submit(ctx, models.SubmissionFromValues(res.Values)); err != nil {
		if fields := dErrors.Fields(err); len(fields) > 0 {
			return SubmissionOutcome{Form: FormState{Values: res.Values, Errors: fields}}
		}
		f.logger.ErrorContext(ctx, "registration submit failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return SubmissionOutcome{
			Form:  FormState{Values: res.Values, Errors: map[string]string{}},
			Flash: &Flash{Kind: FlashError, Message: FlashSubmitFailed},
		}
	}
	return SubmissionOutcome{
		Form:  EmptyForm(),
		Flash: &Flash{Kind: FlashSuccess, Message: FlashSubmitted},
	}
}

// FormValues picks the registration fields out of a parsed form.
func FormValues(form url.Values) map[string]string {
	out := make(map[string]string, len(models.RegistrationSchema))
	for _, name := range models.RegistrationSchema.Names() {
		out[name] = form.Get(name)
	}
	return out
}
