package privacy

// SanitizedError wraps an error while providing a scrubbed message for
// logging. Upload and broker errors often quote the URL they failed
// against, credentials included. The original error stays reachable
// through Unwrap, so errors.Is and errors.As keep working.
type SanitizedError struct {
	original     error
	sanitizedMsg string
}

// Error returns the sanitized error message, safe for logging.
func (e *SanitizedError) Error() string {
	return e.sanitizedMsg
}

// Unwrap returns the original error.
func (e *SanitizedError) Unwrap() error {
	return e.original
}

// WrapError sanitizes an error message using ScrubMessage. Returns nil
// for a nil input.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &SanitizedError{
		original:     err,
		sanitizedMsg: ScrubMessage(err.Error()),
	}
}
