package autoconfig

import "fmt"

const (
	logMsgStreamConnecting    = "Connecting to auto-configuration stream at %s"
	logMsgStreamHTTPError     = "HTTP error %d on auto-configuration stream"
	logMsgStreamOtherError    = "Unexpected error on auto-configuration stream: %s"
	logMsgStreamReconnecting  = "Reconnecting to auto-configuration stream in %s"
	logMsgDeliberateReconnect = "Restarting auto-configuration stream at server's request"
	logMsgPutEvent            = "Received configuration for %d environment(s) and %d filter(s)"
	logMsgAddItem             = "Added %s"
	logMsgUpdateItem          = "Updated %s"
	logMsgDeleteItem          = "Removed %s"
	logMsgDeleteBadVersion    = "Ignoring out-of-order delete for %q (version %d < %d)"
	logMsgUnknownEvent        = "Ignoring unrecognized stream event %q"
	logMsgMalformedData       = "Received %q event with malformed JSON data (%s); will restart stream"
)

// decodeError reports a problem turning a wire frame into a Change. Per
// spec, a malformed message is treated as fatal to the connection: the
// supervisor logs it and restarts the stream rather than attempting to
// process a partial message.
type decodeError struct {
	event  string
	reason string
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("malformed %q event: %s", e.event, e.reason)
}

func errMalformedData(event string, cause error) *decodeError {
	return &decodeError{event: event, reason: cause.Error()}
}

// errReconnect is a sentinel the decoder returns for a server-sent
// "reconnect" event, which asks the supervisor to drop the connection and
// re-establish it even though nothing is transport-broken.
var errReconnect = &decodeError{event: reconnectEvent, reason: "server requested reconnect"}
