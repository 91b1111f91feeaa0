// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package controller runs completion requests against the prompt buffer.
//
// A Controller executes one submission at a time. Submit appends the start
// text, snapshots the buffer as the prompt and starts a Run in the
// background. The Run never touches the buffer itself: it emits Events, and
// the owner of the buffer (the Bubble Tea update loop, or Run.Wait in the
// CLI) hands each one back to Run.Apply. That keeps every buffer mutation on
// a single goroutine and lets Apply drop events from a superseded run.
package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/semperai/circus-tui/internal/buffer"
	"github.com/semperai/circus-tui/internal/completion"
	"github.com/semperai/circus-tui/internal/params"
)

var (
	// ErrMissingCredentials is returned by Submit when the API key or base
	// URI is empty. Nothing is sent and the buffer is untouched.
	ErrMissingCredentials = errors.New("API key and base URI are required")

	// ErrCancelled is the outcome error of a cancelled or superseded run.
	ErrCancelled = errors.New("submission cancelled")
)

// Transport performs the HTTP side of a submission. *completion.Client
// implements it.
type Transport interface {
	Complete(ctx context.Context, creds completion.Credentials, req completion.Request) (*completion.Response, error)
	Stream(ctx context.Context, creds completion.Credentials, req completion.Request) (*completion.Stream, error)
}

// Options tune a Controller.
type Options struct {
	// Timeout bounds a whole run. Zero means no deadline.
	Timeout time.Duration

	// StrictDone fails a stream that ends without the [DONE] sentinel.
	// When false such a stream counts as a success.
	StrictDone bool

	Logger *zap.Logger
}

// Controller serialises submissions for one buffer owner.
type Controller struct {
	transport Transport
	opts      Options
	logger    *zap.Logger

	submitMu sync.Mutex
	cancels  cancelManager
}

// New creates a controller.
func New(t Transport, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		transport: t,
		opts:      opts,
		logger:    logger.Named("controller"),
	}
}

// SetStrictDone changes how streams without [DONE] are treated for future runs.
func (c *Controller) SetStrictDone(strict bool) {
	c.submitMu.Lock()
	c.opts.StrictDone = strict
	c.submitMu.Unlock()
}

// StrictDone reports whether streams without [DONE] fail.
func (c *Controller) StrictDone() bool {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()
	return c.opts.StrictDone
}

// Current returns the most recent run, or nil.
func (c *Controller) Current() *Run {
	return c.cancels.current()
}

// Busy reports whether a run is still in flight.
func (c *Controller) Busy() bool {
	r := c.cancels.current()
	return r != nil && !r.State().Terminal()
}

// Cancel stops the in-flight run. It reports whether there was one.
func (c *Controller) Cancel() bool {
	r := c.cancels.current()
	if r == nil {
		return false
	}
	return r.Cancel()
}

// Submit validates the request, cancels any in-flight run and waits for it
// to stop, appends p.StartText to buf and starts a new run whose prompt is
// the full buffer text. Validation failures return before buf is modified.
func (c *Controller) Submit(ctx context.Context, buf *buffer.Buffer, p params.Params, creds completion.Credentials) (*Run, error) {
	if !creds.Configured() {
		return nil, ErrMissingCredentials
	}
	req := p.Request("")
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	if prev := c.cancels.current(); prev != nil {
		if prev.Cancel() {
			c.logger.Info("superseded in-flight run", zap.String("run", prev.ID))
		}
		prev.stopSending()
		<-prev.finished
	}

	mark := buf.Len()
	buf.Append(p.StartText)
	req.Prompt = buf.Text()

	var runCtx context.Context
	var cancel context.CancelFunc
	if c.opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	r := newRun(c, buf, p, mark, cancel)
	c.cancels.set(r)
	r.transition(StateConnecting)

	c.logger.Info("submitting completion",
		zap.String("run", r.ID),
		zap.String("model", req.Model),
		zap.Bool("stream", req.Stream),
		zap.Int("prompt_bytes", len(req.Prompt)),
		zap.Int("stops", len(req.Stop)),
		zap.String("key", creds.Fingerprint()))

	go r.execute(runCtx, req, creds, c.opts)
	return r, nil
}
