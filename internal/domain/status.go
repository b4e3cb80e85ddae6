package domain

// Status is the closed set of verification request states.
type Status string

const (
	StatusSubmitted  Status = "SUBMITTED"
	StatusProcessing Status = "PROCESSING"
	StatusVerified   Status = "VERIFIED"
	StatusFailed     Status = "FAILED"
)

// transitions is the explicit edge table for the request state machine.
// FAILED -> SUBMITTED is the resubmission edge and is only taken through
// CreateOrReuse.
var transitions = map[Status][]Status{
	StatusSubmitted:  {StatusProcessing},
	StatusProcessing: {StatusVerified, StatusFailed},
	StatusFailed:     {StatusSubmitted},
}

// Valid reports whether s is a member of the closed status set.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusProcessing, StatusVerified, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether a request in this status has finished its current
// attempt. FAILED is terminal until a resubmission reopens it.
func (s Status) Terminal() bool {
	return s == StatusVerified || s == StatusFailed
}

// CanTransition reports whether the edge from -> to is in the transition table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DocumentType is the closed set of supported identity documents. Each type
// has its own extraction heuristics.
type DocumentType string

const (
	DocumentTypePAN     DocumentType = "PAN"
	DocumentTypeAadhaar DocumentType = "AADHAAR"
)

// DocumentTypes lists all supported types in a stable order.
func DocumentTypes() []DocumentType {
	return []DocumentType{DocumentTypePAN, DocumentTypeAadhaar}
}

// Valid reports whether t is a supported document type.
func (t DocumentType) Valid() bool {
	return t == DocumentTypePAN || t == DocumentTypeAadhaar
}

// cardName renders the type with its indefinite article for user-facing
// messages ("a PAN card", "an Aadhaar card").
func (t DocumentType) cardName() string {
	switch t {
	case DocumentTypeAadhaar:
		return "an Aadhaar card"
	default:
		return "a " + string(t) + " card"
	}
}
