package matchdto

// ErrorCode is the machine-readable classification surfaced on every
// rejected request, over both HTTP and the realtime channel.
type ErrorCode string

const (
	CodeAuthInvalid   ErrorCode = "AUTH_INVALID"
	CodeAuthStale     ErrorCode = "AUTH_STALE"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeStateConflict ErrorCode = "STATE_CONFLICT"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeUpstream      ErrorCode = "UPSTREAM_UNAVAILABLE"
)

// APIError is the JSON error envelope.
type APIError struct {
	Code   ErrorCode `json:"code"`
	Reason string    `json:"error"`
}

func (e APIError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return string(e.Code)
}
