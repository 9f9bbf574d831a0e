package fhir

import "fmt"

// Issue severities emitted by this service.
const (
	IssueSeverityFatal = "fatal"
	IssueSeverityError = "error"
)

// Issue type codes emitted by this service.
const (
	IssueTypeInvalid    = "invalid"
	IssueTypeSuppressed = "suppressed"
	IssueTypeException  = "exception"
	IssueTypeTransient  = "transient"
	IssueTypeThrottled  = "throttled"
	IssueTypeTooCostly  = "too-costly"
)

// ValidationOutcome reports an invalid request field. The field is also the
// issue expression.
func ValidationOutcome(field, message string) *OperationOutcome {
	oo := NewOperationOutcome(IssueSeverityError, IssueTypeInvalid, fmt.Sprintf("%s: %s", field, message))
	oo.Issue[0].Expression = []string{field}
	return oo
}

// SuppressedOutcome reports a request whose data was withheld, such as a
// share with no consented readings left.
func SuppressedOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeSuppressed, diagnostics)
}

// TransientOutcome creates an OperationOutcome for a failure the caller may
// retry, such as an unavailable backing store.
func TransientOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeTransient, diagnostics)
}

// ThrottledOutcome is returned with 429 responses.
func ThrottledOutcome() *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeThrottled, "rate limit exceeded")
}

// TooCostlyOutcome reports a request body over limit bytes.
func TooCostlyOutcome(limit int64) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeTooCostly,
		fmt.Sprintf("Request body exceeds maximum allowed size of %d bytes", limit))
}

// InternalErrorOutcome creates an OperationOutcome for internal server errors.
func InternalErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityFatal, IssueTypeException, diagnostics)
}
