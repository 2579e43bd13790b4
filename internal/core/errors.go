package core

// Error codes for domain errors surfaced to clients.
const (
	ErrCodeValidation       = "validation_error"
	ErrCodePersistence      = "persistence_error"
	ErrCodeProtocol         = "protocol_error"
	ErrCodeUnknownUser      = "unknown_user"
	ErrCodeIdentityMismatch = "identity_mismatch"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
