package models

import (
	"time"

	"incorp/internal/intake/form"
	"incorp/pkg/domain"
)

// Form field names shared by the registration schema and the template.
const (
	FieldOwnerName         = "owner_name"
	FieldPhoneNumber       = "phone_number"
	FieldCompanyName       = "company_name"
	FieldAddress           = "address"
	FieldBusinessType      = "business_type"
	FieldAdditionalDetails = "additional_details"
)

// IncorporationRequest is one stored submission.
type IncorporationRequest struct {
	ID                domain.RequestID
	OwnerName         string
	PhoneNumber       string
	CompanyName       string
	Address           string
	BusinessType      domain.BusinessType
	AdditionalDetails string
	Status            domain.RequestStatus
	AssignedTo        *domain.PrincipalID
	CreatedAt         time.Time
}

// IsAssignedTo reports whether the request is assigned to p.
func (r *IncorporationRequest) IsAssignedTo(p domain.PrincipalID) bool {
	return r.AssignedTo != nil && *r.AssignedTo == p
}

// Submission carries the client-supplied fields of a new request. Status,
// assignment, id and creation time are never taken from the submitter.
type Submission struct {
	OwnerName         string
	PhoneNumber       string
	CompanyName       string
	Address           string
	BusinessType      string
	AdditionalDetails string
}

// Values maps the submission onto form field names.
func (s Submission) Values() map[string]string {
	return map[string]string{
		FieldOwnerName:         s.OwnerName,
		FieldPhoneNumber:       s.PhoneNumber,
		FieldCompanyName:       s.CompanyName,
		FieldAddress:           s.Address,
		FieldBusinessType:      s.BusinessType,
		FieldAdditionalDetails: s.AdditionalDetails,
	}
}

// SubmissionFromValues is the inverse of Values.
func SubmissionFromValues(v map[string]string) Submission {
	return Submission{
		OwnerName:         v[FieldOwnerName],
		PhoneNumber:       v[FieldPhoneNumber],
		CompanyName:       v[FieldCompanyName],
		Address:           v[FieldAddress],
		BusinessType:      v[FieldBusinessType],
		AdditionalDetails: v[FieldAdditionalDetails],
	}
}

func businessTypeValues() []string {
	types := domain.BusinessTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

// RegistrationSchema declares the public registration form.
var RegistrationSchema = form.Schema{
	{Name: FieldOwnerName, Checks: []form.Check{
		form.Required("Owner name is required"),
	}},
	{Name: FieldPhoneNumber, Checks: []form.Check{
		form.Required("Phone number is required"),
	}},
	{Name: FieldCompanyName, Checks: []form.Check{
		form.Required("Company name is required"),
	}},
	{Name: FieldAddress, Checks: []form.Check{
		form.Required("Address is required"),
	}},
	{Name: FieldBusinessType, Checks: []form.Check{
		form.Required("Business type is required"),
		form.OneOf("Select a valid business type", businessTypeValues()...),
	}},
	{Name: FieldAdditionalDetails},
}

// NewRequest is a validated submission ready for insertion.
type NewRequest struct {
	OwnerName         string
	PhoneNumber       string
	CompanyName       string
	Address           string
	BusinessType      domain.BusinessType
	AdditionalDetails string
}

// NewRequestFromResult builds a NewRequest from a valid bind result.
func NewRequestFromResult(r form.Result) NewRequest {
	return NewRequest{
		OwnerName:         r.Value(FieldOwnerName),
		PhoneNumber:       r.Value(FieldPhoneNumber),
		CompanyName:       r.Value(FieldCompanyName),
		Address:           r.Value(FieldAddress),
		BusinessType:      domain.BusinessType(r.Value(FieldBusinessType)),
		AdditionalDetails: r.Value(FieldAdditionalDetails),
	}
}
