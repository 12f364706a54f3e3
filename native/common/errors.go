package common

import "errors"

// Kind classifies an error for callers that need to branch on failure class
// rather than message text.
type Kind uint8

const (
	// KindUnknown marks errors that carry no classification.
	KindUnknown Kind = iota
	// KindValidation marks malformed input: addresses, amounts, durations,
	// ratings, vote choices. Always the caller's fault.
	KindValidation
	// KindState marks operations issued against a stale view: missing
	// records, already-resolved escrows, duplicate votes. Callers must
	// re-read state before retrying.
	KindState
	// KindTiming marks operations outside their window: too early, deadline
	// passed, timed out.
	KindTiming
	// KindAuthorization marks callers that are not permitted to perform the
	// operation. There is no retry path for the same caller.
	KindAuthorization
	// KindEconomic marks insufficient stake or balance. Callers must
	// resubmit with corrected amounts.
	KindEconomic
)

// Error is a sentinel error carrying a Kind. Sentinels built with NewError
// match with errors.Is by identity and classify with KindOf.
type Error struct {
	kind Kind
	msg  string
}

// NewError constructs a classified sentinel error.
func NewError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.msg
}

// Kind returns the error's classification.
func (e *Error) Kind() Kind {
	if e == nil {
		return KindUnknown
	}
	return e.kind
}

// KindOf extracts the classification from err or any error it wraps. Errors
// without a classification report KindUnknown.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind()
	}
	return KindUnknown
}
