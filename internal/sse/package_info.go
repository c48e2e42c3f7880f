// Package sse is a tokenizing decoder for the Server-Sent Events wire
// format. It turns a byte stream into a sequence of Frame values without
// requiring the whole stream to be buffered at once: only the incomplete
// trailing line and the fields of the event in progress are held.
package sse
