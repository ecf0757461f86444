package core

import "time"

// Code is a machine-readable error code from a fixed taxonomy.
type Code string

const (
	// Config/validation
	CodeValidationError Code = "validation_error"
	CodeInvalidInput    Code = "invalid_input"
	CodeNotFound        Code = "not_found"

	// Storage
	CodeDBError  Code = "db_error"
	CodeConflict Code = "conflict"

	// LLM
	CodeLLMNotConfigured Code = "llm_not_configured"
	CodeLLMError         Code = "llm_error"
	CodeLLMTimeout       Code = "llm_timeout"

	// X API
	CodeXNotConfigured     Code = "x_not_configured"
	CodeXAuthExpired       Code = "x_auth_expired"
	CodeXRateLimited       Code = "x_rate_limited"
	CodeXForbidden         Code = "x_forbidden"
	CodeXAccountRestricted Code = "x_account_restricted"
	CodeXNetworkError      Code = "x_network_error"
	CodeXAPIError          Code = "x_api_error"

	// Policy
	CodePolicyDeniedBlocked     Code = "policy_denied_blocked"
	CodePolicyDeniedRateLimited Code = "policy_denied_rate_limited"
	CodePolicyError             Code = "policy_error"
	CodeSafetyRejected          Code = "safety_rejected"

	// Serialization
	CodeSerializationError Code = "serialization_error"

	// Backpressure
	CodeQueueFull Code = "queue_full"
)

// retryable is the fixed retryability of each code.
var retryable = map[Code]bool{
	CodeDBError:        true,
	CodeLLMError:       true,
	CodeXRateLimited:    true,
	CodeXNetworkError:   true,
}

// Error is the typed error every subsystem boundary returns instead of a
// bare Go error: toolkit -> workflow, workflow -> caller, gateway -> caller.
type Error struct {
	Code           Code
	Message        string
	Retryable      bool
	RateLimitReset time.Time
	PolicyDecision string

	// Wrapped is the underlying error, if any, kept for logging only —
	// never surfaced in the wire envelope.
	Wrapped error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// NewError builds an Error with the code's default retryability.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable[code]}
}

// Wrap builds an Error from an underlying error, keeping it for logging via Unwrap.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable[code], Wrapped: err}
}

// WithRateLimitReset returns a copy of e carrying a rate-limit reset instant.
func (e *Error) WithRateLimitReset(t time.Time) *Error {
	c := *e
	c.RateLimitReset = t
	return &c
}

// WithPolicyDecision returns a copy of e carrying a policy decision subcode.
func (e *Error) WithPolicyDecision(decision string) *Error {
	c := *e
	c.PolicyDecision = decision
	return &c
}
