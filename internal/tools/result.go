package tools

// Outcome is the closed set of outcome categories every structured
// tool-invocation log record carries, per spec.md §4.1.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomePermissionDenied Outcome = "permission_denied"
	OutcomeNotFound         Outcome = "not_found"
	OutcomeAlreadyExists    Outcome = "already_exists"
	OutcomeTimeout          Outcome = "timeout"
	OutcomeNetwork          Outcome = "network"
	OutcomeDisk             Outcome = "disk"
	OutcomeInvalidArguments Outcome = "invalid_arguments"
	OutcomeUnknown          Outcome = "unknown"
)

// Result is the synchronous return value of Execute. A tool error is
// always carried here, never as a Go error past the Executor boundary
// (spec.md §4.1's "tool errors are returned, never raised").
type Result struct {
	Content string
	Outcome Outcome
	// IsError reports whether Content should be read by the Agent as
	// an error payload rather than a success payload. execute_command's
	// non-zero exit is success-with-error-payload: Outcome stays
	// success, IsError is false, and the combined output simply shows
	// the failure.
	IsError bool
}

func Success(content string) Result {
	return Result{Content: content, Outcome: OutcomeSuccess}
}

func Failure(outcome Outcome, content string) Result {
	return Result{Content: content, Outcome: outcome, IsError: true}
}
