// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestSSEReader_ParsesEvents(t *testing.T) {
	input := ": keep-alive\n\n" +
		"event: message\nid: 7\ndata: first\n\n" +
		"data:no-space\r\n\r\n" +
		"data: line one\ndata: line two\n\n" +
		"retry: 1000\n\n" +
		"data: trailing"

	r := NewSSEReader(strings.NewReader(input))

	want := []Event{
		{Type: "message", ID: "7", Data: []byte("first")},
		{Data: []byte("no-space")},
		{Data: []byte("line one\nline two")},
		{Data: []byte("trailing")},
	}
	for i, w := range want {
		ev, err := r.ReadEvent()
		if err != nil {
			t.Fatalf("event %d: unexpected error %v", i, err)
		}
		if ev.Type != w.Type || ev.ID != w.ID || string(ev.Data) != string(w.Data) {
			t.Errorf("event %d = %+v (data %q), want %+v (data %q)", i, ev, ev.Data, w, w.Data)
		}
	}

	if _, err := r.ReadEvent(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestSSEReader_KeepsOneLeadingSpaceOnly(t *testing.T) {
	r := NewSSEReader(strings.NewReader("data:  two spaces\n\n"))
	ev, err := r.ReadEvent()
	if err != nil {
		t.Fatal(err)
	}
	if string(ev.Data) != " two spaces" {
		t.Errorf("data = %q", ev.Data)
	}
}

func TestSSEReader_EventTooLarge(t *testing.T) {
	big := strings.Repeat("x", MaxEventSize+1)
	r := NewSSEReader(strings.NewReader("data: " + big + "\n\n"))
	if _, err := r.ReadEvent(); !errors.Is(err, ErrEventTooLarge) {
		t.Errorf("expected ErrEventTooLarge, got %v", err)
	}
}

// endless yields the same byte forever and counts what was read.
type endless struct {
	b    byte
	read int
}

func (e *endless) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = e.b
	}
	e.read += len(p)
	return len(p), nil
}

func TestSSEReader_UnterminatedLineIsBounded(t *testing.T) {
	body := &endless{b: 'a'}
	r := NewSSEReader(io.MultiReader(strings.NewReader("data: "), body))

	if _, err := r.ReadEvent(); !errors.Is(err, ErrEventTooLarge) {
		t.Fatalf("expected ErrEventTooLarge, got %v", err)
	}
	if limit := maxLineSize + 64*1024; body.read > limit {
		t.Errorf("read %d bytes before failing, want at most %d", body.read, limit)
	}
}

func TestSSEReader_LongLineWithinLimit(t *testing.T) {
	big := strings.Repeat("y", MaxEventSize)
	r := NewSSEReader(strings.NewReader("data: " + big + "\r\n\r\n"))
	ev, err := r.ReadEvent()
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(ev.Data) != MaxEventSize {
		t.Errorf("data length = %d, want %d", len(ev.Data), MaxEventSize)
	}
}
