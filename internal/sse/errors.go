package sse

import "fmt"

// DecodeError is returned by Decoder.Decode when the input cannot be
// interpreted as a valid SSE frame, or when the accumulated event state
// has exceeded the configured size limit. Once returned, the Decoder that
// produced it must be discarded; the caller is expected to reconnect.
type DecodeError struct {
	// Reason describes what went wrong, for logging purposes.
	Reason string
	// ExceededSizeLimit is true if the error was caused by the event
	// exceeding the limit given to NewDecoderWithLimit, rather than
	// malformed input.
	ExceededSizeLimit bool
}

func (e *DecodeError) Error() string {
	if e.ExceededSizeLimit {
		return "sse: event exceeded maximum size limit"
	}
	return fmt.Sprintf("sse: invalid frame: %s", e.Reason)
}

func errInvalidFrame(reason string) *DecodeError {
	return &DecodeError{Reason: reason}
}

func errExceededSizeLimit() *DecodeError {
	return &DecodeError{ExceededSizeLimit: true}
}
