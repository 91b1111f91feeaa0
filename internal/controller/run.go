// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/semperai/circus-tui/internal/buffer"
	"github.com/semperai/circus-tui/internal/completion"
	"github.com/semperai/circus-tui/internal/params"
)

// eventBuffer is how many events may queue before the run goroutine blocks.
const eventBuffer = 64

// EventKind classifies an Event.
type EventKind int

const (
	// EventOpened means the stream connection is established.
	EventOpened EventKind = iota
	// EventDelta carries text to append.
	EventDelta
	// EventFinished is the last event of a run. Err is nil on success.
	EventFinished
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventDelta:
		return "delta"
	case EventFinished:
		return "finished"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is produced by a run's goroutine and applied by the buffer owner.
type Event struct {
	RunID string
	Kind  EventKind
	Text  string
	Err   error

	// SawDone is set on EventFinished when the [DONE] sentinel arrived.
	SawDone bool

	// Cancelled is set on EventFinished when the run's context was
	// cancelled from outside, for example by an interrupt.
	Cancelled bool
}

// Outcome summarises a finished run.
type Outcome struct {
	RunID     string
	State     State
	Err       error
	Text      string // completion text applied to the buffer, without restart text
	SawDone   bool
	Cancelled bool
	Elapsed   time.Duration
}

// Success reports whether the run completed without error or cancellation.
func (o Outcome) Success() bool {
	return o.State == StateClosed && o.Err == nil && !o.Cancelled
}

// Run is one submission.
type Run struct {
	ID      string
	Started time.Time

	ctrl   *Controller
	buf    *buffer.Buffer
	params params.Params
	mark   int // buffer length before the start text was appended

	events   chan Event
	stop     chan struct{}
	stopOnce sync.Once
	finished chan struct{} // closed when the goroutine returns
	done     chan struct{} // closed on reaching a terminal state
	cancel   context.CancelFunc

	mu        sync.Mutex
	state     State
	cancelled bool
	text      strings.Builder
	outcome   Outcome
}

func newRun(c *Controller, buf *buffer.Buffer, p params.Params, mark int, cancel context.CancelFunc) *Run {
	return &Run{
		ID:       uuid.NewString(),
		Started:  time.Now(),
		ctrl:     c,
		buf:      buf,
		params:   p,
		mark:     mark,
		events:   make(chan Event, eventBuffer),
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
		done:     make(chan struct{}),
		cancel:   cancel,
		state:    StateIdle,
	}
}

// Events delivers the run's events in order. The channel closes when the
// run goroutine exits.
func (r *Run) Events() <-chan Event {
	return r.events
}

// Done is closed once the run reaches Closed or Failed.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// State returns the current lifecycle state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Outcome returns the result. It is only meaningful after Done is closed.
func (r *Run) Outcome() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome
}

// Params returns the parameters the run was submitted with.
func (r *Run) Params() params.Params {
	return r.params
}

// transition moves to `to` if legal. Caller must not hold mu.
func (r *Run) transition(to State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitionLocked(to)
}

func (r *Run) transitionLocked(to State) bool {
	if !r.state.CanTransition(to) {
		return false
	}
	r.state = to
	return true
}

// Cancel aborts the run. Text already applied stays in the buffer and no
// restart text is added. It reports whether the run was still active.
func (r *Run) Cancel() bool {
	r.mu.Lock()
	if !r.closeCancelledLocked() {
		r.mu.Unlock()
		return false
	}
	r.mu.Unlock()

	r.stopSending()
	r.ctrl.logger.Info("run cancelled", zap.String("run", r.ID))
	return true
}

// closeCancelledLocked moves the run to Closed as cancelled and records the
// outcome. Cancelling a run never touches the buffer. Caller holds mu.
func (r *Run) closeCancelledLocked() bool {
	if !r.transitionLocked(StateClosed) {
		return false
	}
	r.cancelled = true
	r.outcome = Outcome{
		RunID:     r.ID,
		State:     StateClosed,
		Err:       ErrCancelled,
		Text:      r.text.String(),
		Cancelled: true,
		Elapsed:   time.Since(r.Started),
	}
	close(r.done)
	return true
}

// stopSending releases the goroutine from any blocked send and aborts I/O.
func (r *Run) stopSending() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.cancel()
}

// Apply performs the buffer mutation an event calls for. It must be called
// from the goroutine that owns the buffer, in the order events were
// received. Events of a cancelled, finished or superseded run are dropped
// and Apply returns false.
func (r *Run) Apply(ev Event) bool {
	if ev.RunID != r.ID || !r.ctrl.cancels.isCurrent(r) {
		return false
	}

	r.mu.Lock()
	if r.state.Terminal() {
		r.mu.Unlock()
		return false
	}

	switch ev.Kind {
	case EventOpened:
		ok := r.transitionLocked(StateStreaming)
		r.mu.Unlock()
		return ok

	case EventDelta:
		r.text.WriteString(ev.Text)
		r.mu.Unlock()
		r.buf.Append(ev.Text)
		return true

	case EventFinished:
		if ev.Cancelled {
			ok := r.closeCancelledLocked()
			r.mu.Unlock()
			if ok {
				r.ctrl.logger.Info("run cancelled", zap.String("run", r.ID))
			}
			return ok
		}

		applied := r.text.Len()
		out := Outcome{
			RunID:   r.ID,
			Err:     ev.Err,
			Text:    r.text.String(),
			SawDone: ev.SawDone,
			Elapsed: time.Since(r.Started),
		}
		if ev.Err == nil {
			r.transitionLocked(StateClosed)
		} else {
			r.transitionLocked(StateFailed)
		}
		out.State = r.state
		r.outcome = out
		r.mu.Unlock()

		if ev.Err == nil {
			r.buf.Append(r.params.RestartText)
		} else if applied == 0 {
			// Nothing arrived: take the start text back out.
			r.buf.Truncate(r.mark)
		}

		r.logFinish(out)
		close(r.done)
		return true
	}

	r.mu.Unlock()
	return false
}

// Wait applies events on the calling goroutine until the run ends and
// returns its outcome. Use it when nothing else owns the buffer.
func (r *Run) Wait() Outcome {
	for ev := range r.events {
		r.Apply(ev)
	}
	<-r.done
	return r.Outcome()
}

func (r *Run) logFinish(out Outcome) {
	fields := []zap.Field{
		zap.String("run", r.ID),
		zap.String("state", out.State.String()),
		zap.Int("chars", len(out.Text)),
		zap.Bool("saw_done", out.SawDone),
		zap.Duration("elapsed", out.Elapsed),
	}
	if out.Err != nil {
		r.ctrl.logger.Warn("run failed", append(fields, zap.Error(out.Err))...)
		return
	}
	r.ctrl.logger.Info("run finished", fields...)
}

// send queues ev unless the run has been stopped.
func (r *Run) send(ev Event) bool {
	ev.RunID = r.ID
	select {
	case r.events <- ev:
		return true
	case <-r.stop:
		return false
	}
}

func (r *Run) finish(err error, sawDone bool) {
	r.send(Event{Kind: EventFinished, Err: err, SawDone: sawDone})
}

// fail ends the run after a transport error. A cancelled context ends it the
// same way Cancel does; a deadline becomes a timeout error.
func (r *Run) fail(ctx context.Context, opts Options, err error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		r.send(Event{Kind: EventFinished, Cancelled: true})
		return
	}
	r.finish(timeoutError(ctx, opts, err), false)
}

func (r *Run) execute(ctx context.Context, req completion.Request, creds completion.Credentials, opts Options) {
	defer close(r.finished)
	defer close(r.events)
	defer r.cancel()

	if req.Stream {
		r.executeStream(ctx, req, creds, opts)
		return
	}
	r.executeSync(ctx, req, creds, opts)
}

func (r *Run) executeSync(ctx context.Context, req completion.Request, creds completion.Credentials, opts Options) {
	resp, err := r.ctrl.transport.Complete(ctx, creds, req)
	if err != nil {
		r.fail(ctx, opts, err)
		return
	}
	text, err := resp.Text()
	if err != nil {
		r.finish(err, false)
		return
	}
	if text != "" && !r.send(Event{Kind: EventDelta, Text: text}) {
		return
	}
	r.finish(nil, false)
}

func (r *Run) executeStream(ctx context.Context, req completion.Request, creds completion.Credentials, opts Options) {
	stream, err := r.ctrl.transport.Stream(ctx, creds, req)
	if err != nil {
		r.fail(ctx, opts, err)
		return
	}
	defer stream.Close()

	if !r.send(Event{Kind: EventOpened}) {
		return
	}

	logger := r.ctrl.logger.With(zap.String("run", r.ID))
	for {
		ev, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if opts.StrictDone {
					r.finish(&completion.StreamError{Partial: stream.Partial(), Err: completion.ErrStreamTruncated}, false)
					return
				}
				logger.Warn("stream closed without [DONE], treating as complete")
				r.finish(nil, false)
				return
			}
			r.fail(ctx, opts, err)
			return
		}

		switch ev.Kind {
		case completion.EventDone:
			r.finish(nil, true)
			return
		case completion.EventMalformed:
			logger.Warn("skipping malformed stream event",
				zap.Error(ev.Err), zap.ByteString("data", truncateBytes(ev.Raw, 256)))
		case completion.EventDelta:
			if ev.Text == "" {
				continue
			}
			if !r.send(Event{Kind: EventDelta, Text: ev.Text}) {
				return
			}
		}
	}
}

func timeoutError(ctx context.Context, opts Options, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("completion timed out after %s: %w", opts.Timeout, context.DeadlineExceeded)
	}
	return err
}

func truncateBytes(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
