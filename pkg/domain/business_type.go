package domain

import dErrors "incorp/pkg/domain-errors"

// BusinessType is the legal form requested for the new company.
// Invariant: the value is one of the five supported forms.
type BusinessType string

const (
	BusinessTypeSoleProprietorship BusinessType = "sole_proprietorship"
	BusinessTypePartnership        BusinessType = "partnership"
	BusinessTypeLLC                BusinessType = "llc"
	BusinessTypeCorporation        BusinessType = "corporation"
	BusinessTypeNonprofit          BusinessType = "nonprofit"
)

// businessTypes lists the supported forms in display order.
var businessTypes = []BusinessType{
	BusinessTypeSoleProprietorship,
	BusinessTypePartnership,
	BusinessTypeLLC,
	BusinessTypeCorporation,
	BusinessTypeNonprofit,
}

var businessTypeLabels = map[BusinessType]string{
	BusinessTypeSoleProprietorship: "Sole Proprietorship",
	BusinessTypePartnership:        "Partnership",
	BusinessTypeLLC:                "Limited Liability Company (LLC)",
	BusinessTypeCorporation:        "Corporation",
	BusinessTypeNonprofit:          "Nonprofit Organization",
}

// BusinessTypes returns the supported forms in display order.
func BusinessTypes() []BusinessType {
	return append([]BusinessType(nil), businessTypes...)
}

// ParseBusinessType constructs a BusinessType from external input.
//
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseBusinessType(s string) (BusinessType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "business type cannot be empty")
	}
	b := BusinessType(s)
	if !b.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid business type")
	}
	return b, nil
}

func (b BusinessType) IsValid() bool {
	_, ok := businessTypeLabels[b]
	return ok
}

// Label is the human-readable name shown in forms.
func (b BusinessType) Label() string {
	if l, ok := businessTypeLabels[b]; ok {
		return l
	}
	return string(b)
}

func (b BusinessType) String() string { return string(b) }
