package codec

import "fmt"

// SerializationError reports a value or encoded string rejected by the codec,
// either because it is malformed or because the policy does not permit it.
type SerializationError struct {
	// Op is "encode" or "decode"
	Op string

	// TypeName is the policy name of the type being processed
	TypeName string

	// Path locates the offending element (e.g. "Items[2].Owner")
	Path string

	// Message describes the error
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *SerializationError) Error() string {
	msg := fmt.Sprintf("serialization error during %s of %q", e.Op, e.TypeName)
	if e.Path != "" {
		msg += fmt.Sprintf(" at %s", e.Path)
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *SerializationError) Unwrap() error {
	return e.Cause
}
