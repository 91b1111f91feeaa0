// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// doneSentinel terminates an OpenAI event stream.
var doneSentinel = []byte("[DONE]")

// ErrMalformedEvent describes an event that could not be used.
var ErrMalformedEvent = errors.New("malformed stream event")

// EventKind classifies what Stream.Next produced.
type EventKind int

const (
	// EventDelta carries a text fragment to append.
	EventDelta EventKind = iota
	// EventDone is the [DONE] sentinel. Nothing follows it.
	EventDone
	// EventMalformed is an event whose payload was not a usable chunk.
	// The stream continues after it.
	EventMalformed
)

func (k EventKind) String() string {
	switch k {
	case EventDelta:
		return "delta"
	case EventDone:
		return "done"
	case EventMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// StreamEvent is one decoded server-sent event.
type StreamEvent struct {
	Kind EventKind
	Text string
	Raw  []byte
	Err  error
}

// Stream is an open event-stream response.
type Stream struct {
	ctx    context.Context
	resp   *http.Response
	reader *SSEReader

	done      bool
	partial   strings.Builder
	closeOnce sync.Once
}

func newStream(ctx context.Context, resp *http.Response) *Stream {
	return &Stream{
		ctx:    ctx,
		resp:   resp,
		reader: NewSSEReader(resp.Body),
	}
}

// StatusCode returns the HTTP status the stream was opened with.
func (s *Stream) StatusCode() int {
	return s.resp.StatusCode
}

// Partial returns all delta text received so far.
func (s *Stream) Partial() string {
	return s.partial.String()
}

// Next blocks for the next event. It returns io.EOF once [DONE] has been
// seen or the server closed the body. Read failures are returned as a
// *StreamError holding the text received so far.
func (s *Stream) Next() (StreamEvent, error) {
	if s.done {
		return StreamEvent{}, io.EOF
	}
	if err := s.ctx.Err(); err != nil {
		return StreamEvent{}, err
	}

	ev, err := s.reader.ReadEvent()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.done = true
			return StreamEvent{}, io.EOF
		}
		if ctxErr := s.ctx.Err(); ctxErr != nil {
			return StreamEvent{}, ctxErr
		}
		return StreamEvent{}, &StreamError{Partial: s.partial.String(), Err: err}
	}

	data := bytes.TrimSpace(ev.Data)
	if bytes.Equal(data, doneSentinel) {
		s.done = true
		return StreamEvent{Kind: EventDone, Raw: ev.Data}, nil
	}

	text, perr := parseChunk(data)
	if perr != nil {
		return StreamEvent{Kind: EventMalformed, Raw: ev.Data, Err: perr}, nil
	}
	s.partial.WriteString(text)
	return StreamEvent{Kind: EventDelta, Text: text, Raw: ev.Data}, nil
}

// parseChunk extracts choices[0].text from one event payload.
func parseChunk(data []byte) (string, error) {
	var chunk struct {
		Response
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &chunk); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if chunk.Error != nil && chunk.Error.Message != "" {
		return "", fmt.Errorf("%w: server error event: %s", ErrMalformedEvent, chunk.Error.Message)
	}
	if len(chunk.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedEvent)
	}
	return chunk.Choices[0].Text, nil
}

// Close releases the connection. It is safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.done = true
		err = s.resp.Body.Close()
	})
	return err
}
