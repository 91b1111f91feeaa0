// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// MaxEventSize is the largest single SSE event accepted.
const MaxEventSize = 1024 * 1024

// maxLineSize bounds one line: a full event's data plus the field name and
// line terminator.
const maxLineSize = MaxEventSize + 64

// ErrEventTooLarge is returned when one event exceeds MaxEventSize.
var ErrEventTooLarge = errors.New("event exceeds maximum size")

// Event is one server-sent event. Multi-line data fields are joined with "\n".
type Event struct {
	Type string
	ID   string
	Data []byte
}

// SSEReader parses server-sent events from a response body.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{reader: bufio.NewReader(r)}
}

// ReadEvent returns the next event that carries data. Comment lines and
// events without a data field are skipped. It returns io.EOF when the body
// ends; a final event without a trailing blank line is still delivered.
func (s *SSEReader) ReadEvent() (Event, error) {
	var ev Event
	var data [][]byte
	size := 0

	for {
		line, err := s.readLine()
		if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
			if errors.Is(err, io.EOF) && len(data) > 0 {
				ev.Data = bytes.Join(data, []byte("\n"))
				return ev, nil
			}
			return Event{}, err
		}

		line = bytes.TrimRight(line, "\r\n")

		if len(line) == 0 {
			if len(data) > 0 {
				ev.Data = bytes.Join(data, []byte("\n"))
				return ev, nil
			}
			ev = Event{}
			continue
		}
		if line[0] == ':' {
			continue
		}

		field, value := parseField(line)
		switch field {
		case "data":
			size += len(value)
			if size > MaxEventSize {
				return Event{}, fmt.Errorf("%w: %d bytes", ErrEventTooLarge, size)
			}
			data = append(data, append([]byte(nil), value...))
		case "event":
			ev.Type = string(value)
		case "id":
			ev.ID = string(value)
		}
		// retry: and unknown fields are ignored
	}
}

// readLine returns the next line including its terminator. A line longer
// than maxLineSize fails with ErrEventTooLarge once that many bytes have
// been read, so an unterminated line cannot grow without bound.
func (s *SSEReader) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := s.reader.ReadSlice('\n')
		if len(line)+len(chunk) > maxLineSize {
			return nil, fmt.Errorf("%w: line longer than %d bytes", ErrEventTooLarge, maxLineSize)
		}
		line = append(line, chunk...)
		if !errors.Is(err, bufio.ErrBufferFull) {
			return line, err
		}
	}
}

// parseField splits "field: value", dropping a single space after the colon.
func parseField(line []byte) (string, []byte) {
	i := bytes.IndexByte(line, ':')
	if i < 0 {
		return string(line), nil
	}
	value := line[i+1:]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return string(line[:i]), value
}
