package core

// EnvelopeVersion is the wire format version reported in every Meta.
const EnvelopeVersion = "1.0"

// ErrorPayload is the wire shape of Error.
type ErrorPayload struct {
	Code           Code   `json:"code"`
	Message        string `json:"message"`
	Retryable      bool   `json:"retryable"`
	RateLimitReset *int64 `json:"rate_limit_reset,omitempty"` // unix seconds
	PolicyDecision string `json:"policy_decision,omitempty"`
}

// Meta is the wire shape of Envelope.Meta.
type Meta struct {
	ToolVersion  string `json:"tool_version"`
	ElapsedMS    int64  `json:"elapsed_ms"`
	Mode         string `json:"mode,omitempty"`
	ApprovalMode *bool  `json:"approval_mode,omitempty"`
}

// Envelope is the response wrapper returned by every tool invocation.
type Envelope struct {
	Success bool          `json:"success"`
	Data    any           `json:"data,omitempty"`
	Error   *ErrorPayload `json:"error,omitempty"`
	Meta    *Meta         `json:"meta,omitempty"`
}

// NewSuccessEnvelope builds a successful envelope carrying data and meta.
func NewSuccessEnvelope(data any, meta *Meta) Envelope {
	return Envelope{Success: true, Data: data, Meta: meta}
}

// NewErrorEnvelope builds a failed envelope from an Error.
func NewErrorEnvelope(err *Error, meta *Meta) Envelope {
	payload := &ErrorPayload{
		Code:           err.Code,
		Message:        err.Message,
		Retryable:      err.Retryable,
		PolicyDecision: err.PolicyDecision,
	}
	if !err.RateLimitReset.IsZero() {
		sec := err.RateLimitReset.Unix()
		payload.RateLimitReset = &sec
	}
	return Envelope{Success: false, Error: payload, Meta: meta}
}
