package domain

import (
	"fmt"

	pkgerrors "kyc-gateway/pkg/errors"
)

// Domain error taxonomy. Submission-time errors are surfaced synchronously to
// the caller before anything is queued; processing-time failures become a
// terminal FAILED status instead.
var (
	// ErrAlreadyVerified rejects re-submission of a document that already
	// passed verification for the same user, type, and number.
	ErrAlreadyVerified = pkgerrors.New(pkgerrors.CodeConflict, "document already verified, no further action is required")

	// ErrDailyLimitExceeded rejects submissions once the user's attempt
	// numbers submitted today sum to the configured limit.
	ErrDailyLimitExceeded = pkgerrors.New(pkgerrors.CodeRateLimited, "daily verification attempt limit reached")

	// ErrConcurrentRequestExists rejects a submission while another request
	// for the same user and document type is still in flight.
	ErrConcurrentRequestExists = pkgerrors.New(pkgerrors.CodeConflict, "a verification request is already in progress, wait until it completes")

	// ErrRequestNotFound signals that the referenced request does not exist.
	ErrRequestNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "verification request not found")

	// ErrFileValidationFailed rejects empty uploads and disallowed content types.
	ErrFileValidationFailed = pkgerrors.New(pkgerrors.CodeInvalidInput, "file validation failed")

	// ErrExtractionIncomplete signals that no extracted data exists for a
	// request whose extracted fields were asked for.
	ErrExtractionIncomplete = pkgerrors.New(pkgerrors.CodeUnprocessable, "extracted data not available for request")

	// ErrPersistenceConflict surfaces a store-level uniqueness race that
	// could not be translated to a more specific conflict.
	ErrPersistenceConflict = pkgerrors.New(pkgerrors.CodeConflict, "storage uniqueness conflict")
)

// DocumentTypeMismatchError is returned by the extractor when the recognized
// text does not look like the declared document type. Detected is empty when
// the text matched no known type at all.
type DocumentTypeMismatchError struct {
	Declared DocumentType
	Detected DocumentType
}

func (e *DocumentTypeMismatchError) Error() string {
	if e.Detected != "" {
		return fmt.Sprintf("uploaded document appears to be %s, not %s", e.Detected.cardName(), e.Declared.cardName())
	}
	return fmt.Sprintf("could not verify this is %s", e.Declared.cardName())
}
