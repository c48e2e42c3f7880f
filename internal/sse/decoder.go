package sse

import (
	"bytes"
	"strconv"
	"unicode/utf8"
)

// Decoder turns a byte stream into a sequence of Frame values. It owns an
// internal buffer of not-yet-processed bytes; callers append new data with
// Write and then call Decode repeatedly until it reports that no complete
// frame is available yet.
//
// A Decoder is not safe for concurrent use. It is restartable: partial
// input left over from one Write is carried over to the next.
type Decoder struct {
	buf []byte
	// skipLF is set when a line ended with a "\r" at the very end of buf;
	// a "\n" arriving first in the next Write completes that "\r\n".
	skipLF bool

	maxEventBytes int

	eventName string
	eventID   string
	haveData  bool
	dataParts [][]byte
	dataLen   int
}

// NewDecoder returns a Decoder with no maximum event size. Passing an
// untrusted stream to a Decoder with no limit can exhaust memory; prefer
// NewDecoderWithLimit outside of tests.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// NewDecoderWithLimit returns a Decoder that fails with a DecodeError once
// the accumulated data+id+name bytes of a single in-progress event exceeds
// maxEventBytes. A maxEventBytes of 0 means unlimited.
func NewDecoderWithLimit(maxEventBytes int) *Decoder {
	return &Decoder{maxEventBytes: maxEventBytes}
}

// Write appends newly-read bytes to the decoder's internal buffer. It does
// not itself produce frames; call Decode afterward.
func (d *Decoder) Write(p []byte) {
	d.buf = append(d.buf, p...)
}

// Decode attempts to extract the next frame from the internal buffer. It
// returns ok=false (with a nil error) when the buffered bytes do not yet
// contain a complete frame; the caller should Write more data and try
// again. Once Decode returns a non-nil error, the Decoder must be
// discarded.
func (d *Decoder) Decode() (frame Frame, ok bool, err error) {
	for {
		line, found := d.nextLine()
		if !found {
			return Frame{}, false, nil
		}

		if len(line) == 0 {
			frame, dispatched := d.dispatch()
			d.resetEvent()
			if dispatched {
				return frame, true, nil
			}
			continue
		}

		if line[0] == ':' {
			return commentFrame(string(line[1:])), true, nil
		}

		name, value := splitField(line)
		switch name {
		case "event":
			if !utf8.Valid(value) {
				return Frame{}, false, errInvalidFrame("event name is not valid UTF-8")
			}
			d.eventName = string(value)
			if err := d.checkSize(); err != nil {
				d.resetEvent()
				return Frame{}, false, err
			}
		case "data":
			part := make([]byte, len(value))
			copy(part, value)
			d.dataParts = append(d.dataParts, part)
			d.haveData = true
			d.dataLen += len(part) + 1 // +1 for the joining "\n"
			if err := d.checkSize(); err != nil {
				d.resetEvent()
				return Frame{}, false, err
			}
		case "id":
			if bytes.IndexByte(value, 0) != -1 {
				continue
			}
			if !utf8.Valid(value) {
				return Frame{}, false, errInvalidFrame("id is not valid UTF-8")
			}
			d.eventID = string(value)
			if err := d.checkSize(); err != nil {
				d.resetEvent()
				return Frame{}, false, err
			}
		case "retry":
			ms, perr := parseNonNegativeInt(value)
			if perr != nil {
				continue
			}
			return retryFrame(ms), true, nil
		default:
			// Unrecognized fields are ignored.
		}
	}
}

// dispatch builds the Event frame for the in-progress event, if it had at
// least one data field. Events without a data field are dropped silently.
func (d *Decoder) dispatch() (Frame, bool) {
	if !d.haveData {
		return Frame{}, false
	}
	data := bytes.Join(d.dataParts, []byte("\n"))
	return eventFrame(Event{ID: d.eventID, Name: d.eventName, Data: data}), true
}

func (d *Decoder) resetEvent() {
	d.eventName = ""
	d.eventID = ""
	d.haveData = false
	d.dataParts = nil
	d.dataLen = 0
}

func (d *Decoder) checkSize() error {
	if d.maxEventBytes <= 0 {
		return nil
	}
	total := d.dataLen + len(d.eventID) + len(d.eventName)
	if total > d.maxEventBytes {
		return errExceededSizeLimit()
	}
	return nil
}

// nextLine extracts the next complete line (terminated by "\n", "\r\n", or
// "\r") from the buffer, consuming it. It returns found=false if the
// buffer does not yet contain a full line.
func (d *Decoder) nextLine() (line []byte, found bool) {
	if d.skipLF && len(d.buf) > 0 {
		if d.buf[0] == '\n' {
			d.buf = d.buf[1:]
		}
		d.skipLF = false
	}
	for i, b := range d.buf {
		switch b {
		case '\n':
			line = d.buf[:i]
			d.buf = d.buf[i+1:]
			return line, true
		case '\r':
			line = d.buf[:i]
			if i+1 < len(d.buf) && d.buf[i+1] == '\n' {
				d.buf = d.buf[i+2:]
				return line, true
			}
			// A trailing "\r" ends the line now; a "\n" that arrives
			// next is dropped as the second half of "\r\n".
			d.skipLF = i+1 == len(d.buf)
			d.buf = d.buf[i+1:]
			return line, true
		}
	}
	return nil, false
}

// splitField splits a field line on the first ":" and strips a single
// leading space from the value, per the SSE field grammar. A line with no
// colon is treated as a field name with an empty value.
func splitField(line []byte) (name string, value []byte) {
	idx := bytes.IndexByte(line, ':')
	if idx == -1 {
		return string(line), nil
	}
	value = line[idx+1:]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return string(line[:idx]), value
}

func parseNonNegativeInt(value []byte) (int, error) {
	n, err := strconv.Atoi(string(bytes.TrimSpace(value)))
	if err != nil || n < 0 {
		if err == nil {
			err = errInvalidFrame("retry value must be non-negative")
		}
		return 0, err
	}
	return n, nil
}
