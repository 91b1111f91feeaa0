// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package buffer implements the editable prompt text.
//
// Positions are 1-based line/column pairs with columns counted in runes, the
// same addressing an editor widget uses. A line's max column is one past its
// last rune, so the end of the buffer is {LineCount, LineMaxColumn(LineCount)}.
//
// Appending is amortised O(len(text)): the bytes go onto a growable slice and
// only the new line starts are indexed. Every mutation bumps Version and is
// reported to OnChange listeners after the lock is released.
package buffer

import (
	"bytes"
	"slices"
	"sync"
	"unicode/utf8"
)

// Position addresses a point between runes. Line and Column start at 1.
type Position struct {
	Line   int
	Column int
}

// Range spans Start (inclusive) to End (exclusive).
type Range struct {
	Start Position
	End   Position
}

// ChangeKind tells listeners what kind of edit happened.
type ChangeKind int

const (
	ChangeAppend ChangeKind = iota
	ChangeReplace
)

// Change describes one mutation. Range is in pre-change coordinates.
type Change struct {
	Kind    ChangeKind
	Range   Range
	Text    string
	Version uint64
}

// Buffer is a line-indexed text buffer. It is safe for concurrent use, but
// callers that need ordered edits should mutate from a single goroutine.
type Buffer struct {
	mu      sync.RWMutex
	data    []byte
	lines   []int // byte offset of each line start; lines[0] == 0
	version uint64

	lmu       sync.Mutex
	listeners map[int]func(Change)
	nextID    int
}

// New returns a buffer holding text.
func New(text string) *Buffer {
	b := &Buffer{
		lines:     []int{0},
		listeners: make(map[int]func(Change)),
	}
	b.data = append(b.data, text...)
	b.indexFrom(0)
	return b
}

// indexFrom rebuilds line starts for every line starting at or after byte
// offset from. Caller holds mu.
func (b *Buffer) indexFrom(from int) {
	keep := 1
	for keep < len(b.lines) && b.lines[keep] <= from {
		keep++
	}
	b.lines = b.lines[:keep]
	scanFrom := b.lines[keep-1]
	for i := bytes.IndexByte(b.data[scanFrom:], '\n'); i >= 0; i = bytes.IndexByte(b.data[scanFrom:], '\n') {
		scanFrom += i + 1
		b.lines = append(b.lines, scanFrom)
	}
}

// Text returns the whole buffer.
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return string(b.data)
}

// Len returns the size in bytes.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Version increases by one with every mutation.
func (b *Buffer) Version() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// LineCount returns the number of lines. An empty buffer has one line.
func (b *Buffer) LineCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}

// LineMaxColumn returns one past the last column of line. Out-of-range lines
// are clamped.
func (b *Buffer) LineMaxColumn(line int) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	start, end := b.lineBounds(b.clampLine(line))
	return utf8.RuneCount(b.data[start:end]) + 1
}

// Line returns the text of line without its trailing newline.
func (b *Buffer) Line(line int) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	start, end := b.lineBounds(b.clampLine(line))
	return string(b.data[start:end])
}

// End returns the position after the last rune.
func (b *Buffer) End() Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.end()
}

func (b *Buffer) end() Position {
	last := len(b.lines)
	start, end := b.lineBounds(last)
	return Position{Line: last, Column: utf8.RuneCount(b.data[start:end]) + 1}
}

// FullRange covers the entire buffer.
func (b *Buffer) FullRange() Range {
	return Range{Start: Position{Line: 1, Column: 1}, End: b.End()}
}

func (b *Buffer) clampLine(line int) int {
	if line < 1 {
		return 1
	}
	if line > len(b.lines) {
		return len(b.lines)
	}
	return line
}

// lineBounds returns the byte span of line excluding its newline.
func (b *Buffer) lineBounds(line int) (int, int) {
	start := b.lines[line-1]
	end := len(b.data)
	if line < len(b.lines) {
		end = b.lines[line] - 1
	}
	return start, end
}

// offset converts a position to a byte offset, clamping both coordinates.
func (b *Buffer) offset(p Position) int {
	line := b.clampLine(p.Line)
	start, end := b.lineBounds(line)
	col := p.Column
	if col <= 1 {
		return start
	}
	off := start
	for n := 1; n < col && off < end; n++ {
		_, size := utf8.DecodeRune(b.data[off:end])
		off += size
	}
	return off
}

// position converts a byte offset into a Position.
func (b *Buffer) position(off int) Position {
	if off < 0 {
		off = 0
	}
	if off > len(b.data) {
		off = len(b.data)
	}
	line := 1
	for line < len(b.lines) && b.lines[line] <= off {
		line++
	}
	start := b.lines[line-1]
	return Position{Line: line, Column: utf8.RuneCount(b.data[start:off]) + 1}
}

// PositionAt converts a byte offset to a Position.
func (b *Buffer) PositionAt(offset int) Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.position(offset)
}

// Append adds text at the end of the buffer.
func (b *Buffer) Append(text string) {
	if text == "" {
		return
	}
	b.mu.Lock()
	at := b.end()
	oldLen := len(b.data)
	b.data = append(b.data, text...)
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			b.lines = append(b.lines, oldLen+i+1)
		}
	}
	b.version++
	ch := Change{Kind: ChangeAppend, Range: Range{Start: at, End: at}, Text: text, Version: b.version}
	b.mu.Unlock()

	b.notify(ch)
}

// ReplaceRange replaces the text in r with text. Positions outside the
// buffer are clamped and a reversed range is normalised.
func (b *Buffer) ReplaceRange(r Range, text string) {
	b.mu.Lock()
	start, end := b.offset(r.Start), b.offset(r.End)
	if start > end {
		start, end = end, start
	}
	ch := b.replaceLocked(start, end, text)
	b.mu.Unlock()

	b.notify(ch)
}

// replaceLocked swaps bytes [start, end) for text. Caller holds mu.
func (b *Buffer) replaceLocked(start, end int, text string) Change {
	clamped := Range{Start: b.position(start), End: b.position(end)}

	tail := append([]byte(nil), b.data[end:]...)
	b.data = append(append(b.data[:start], text...), tail...)
	b.indexFrom(start)
	b.version++
	return Change{Kind: ChangeReplace, Range: clamped, Text: text, Version: b.version}
}

// Insert places text at p.
func (b *Buffer) Insert(p Position, text string) {
	b.ReplaceRange(Range{Start: p, End: p}, text)
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.ReplaceRange(b.FullRange(), "")
}

// SetText replaces the whole buffer. It is a no-op when text is unchanged.
func (b *Buffer) SetText(text string) {
	if b.Text() == text {
		return
	}
	b.ReplaceRange(b.FullRange(), text)
}

// Truncate drops everything after the first n bytes. A cut inside a
// multi-byte rune moves back to the rune's start.
func (b *Buffer) Truncate(n int) {
	n = max(n, 0)
	b.mu.Lock()
	if n >= len(b.data) {
		b.mu.Unlock()
		return
	}
	for n > 0 && !utf8.RuneStart(b.data[n]) {
		n--
	}
	ch := b.replaceLocked(n, len(b.data), "")
	b.mu.Unlock()

	b.notify(ch)
}

// OnChange registers fn to run after each mutation, on the mutating
// goroutine. The returned function unregisters it.
func (b *Buffer) OnChange(fn func(Change)) func() {
	b.lmu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.lmu.Unlock()

	return func() {
		b.lmu.Lock()
		delete(b.listeners, id)
		b.lmu.Unlock()
	}
}

func (b *Buffer) notify(ch Change) {
	b.lmu.Lock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	fns := make([]func(Change), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, b.listeners[id])
	}
	b.lmu.Unlock()

	for _, fn := range fns {
		fn(ch)
	}
}
