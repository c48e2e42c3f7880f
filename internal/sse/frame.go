package sse

import "fmt"

// Event is a dispatched SSE event: a name, an optional last-event-id, and
// the joined payload from one or more "data:" fields.
type Event struct {
	ID   string
	Name string
	Data []byte
}

func (e Event) String() string {
	return fmt.Sprintf("Event{id:%q name:%q data:%d bytes}", e.ID, e.Name, len(e.Data))
}

// FrameKind identifies which variant a Frame holds.
type FrameKind int

const (
	// FrameEvent wraps a dispatched Event.
	FrameEvent FrameKind = iota
	// FrameComment wraps the text of a ":"-prefixed line.
	FrameComment
	// FrameRetry wraps a parsed "retry:" directive, in milliseconds.
	FrameRetry
)

// Frame is a single decoded unit: an event, a comment, or a retry directive.
// Exactly one of the accessor fields is meaningful, selected by Kind.
type Frame struct {
	Kind    FrameKind
	Event   Event
	Comment string
	RetryMS int
}

func eventFrame(e Event) Frame        { return Frame{Kind: FrameEvent, Event: e} }
func commentFrame(text string) Frame  { return Frame{Kind: FrameComment, Comment: text} }
func retryFrame(ms int) Frame         { return Frame{Kind: FrameRetry, RetryMS: ms} }
