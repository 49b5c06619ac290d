// Package errs defines the closed set of error kinds used across the
// orchestration core, so every component reports failures the same way
// instead of inventing ad hoc sentinel values per package.
package errs

// Kind tags the origin/policy category of an error, per the error
// handling design: each kind has a single, fixed propagation policy.
type Kind string

const (
	KindInvalidArguments  Kind = "invalid_arguments"
	KindNotFound          Kind = "not_found"
	KindPermissionDenied  Kind = "permission_denied"
	KindAlreadyExists     Kind = "already_exists"
	KindNetwork           Kind = "network_error"
	KindAPI               Kind = "api_error"
	KindAuth              Kind = "auth_error"
	KindQuotaExceeded     Kind = "quota_exceeded"
	KindParse             Kind = "parse_error"
	KindRouterSaturated   Kind = "router_saturated"
	KindInboxSaturated    Kind = "inbox_saturated"
	KindCancelled         Kind = "cancelled"
	KindTimeout           Kind = "timeout"
	KindUnknownTool       Kind = "unknown_tool"
	KindAlreadyActive     Kind = "already_active"
	KindUnsupportedModel  Kind = "unsupported_model"
	KindUnknown           Kind = "unknown"
)

// Error is a typed error carrying a Kind plus a human-readable message.
// It never embeds raw payload bytes (tool output, prompt text, LLM
// responses) — only sizes, categories, and identifiers, per the no-PII
// logging invariant.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
	} else if ok := unwrapTo(err, &e); !ok {
		return false
	}
	return e != nil && e.Kind == kind
}

func unwrapTo(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
