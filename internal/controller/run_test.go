// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/semperai/circus-tui/internal/buffer"
	"github.com/semperai/circus-tui/internal/completion"
	"github.com/semperai/circus-tui/internal/params"
)

func newTestController(t *testing.T, timeout time.Duration) *Controller {
	client := completion.NewClient(nil).WithMaxRetries(1)
	return New(client, Options{Timeout: timeout, Logger: zaptest.NewLogger(t)})
}

func streamParams() params.Params {
	p := params.Defaults()
	p.Model = "davinci-002"
	p.MaxTokens = 8
	return p
}

// hangingStream sends one delta then holds the connection until the client
// goes away.
func hangingStream(first string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: {\"choices\":[{\"text\":%q}]}\n\n", first)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}
}

// nextApplied applies events until one of kind k has been applied.
func nextApplied(t *testing.T, r *Run, k EventKind) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-r.Events():
			require.True(t, ok, "events closed before %s", k)
			r.Apply(ev)
			if ev.Kind == k {
				return
			}
		case <-timeout:
			t.Fatalf("no %s event", k)
		}
	}
}

func TestRun_CancelKeepsPartialText(t *testing.T) {
	server := httptest.NewServer(hangingStream("X"))
	defer server.Close()

	c := newTestController(t, 0)
	buf := buffer.New("go:")
	p := streamParams()
	p.RestartText = "\n"

	r, err := c.Submit(context.Background(), buf, p, completion.Credentials{APIKey: "k", BaseURI: server.URL})
	require.NoError(t, err)
	assert.True(t, c.Busy())

	nextApplied(t, r, EventDelta)
	assert.Equal(t, StateStreaming, r.State())

	assert.True(t, c.Cancel())
	assert.False(t, c.Cancel(), "second cancel is a no-op")

	out := r.Wait()
	assert.True(t, out.Cancelled)
	assert.Equal(t, StateClosed, out.State)
	assert.ErrorIs(t, out.Err, ErrCancelled)
	assert.Equal(t, "go:X", buf.Text(), "no restart text after cancel")
	assert.False(t, c.Busy())
}

func TestSubmit_SupersedesInFlightRun(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/completions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") == "text/event-stream" {
			hangingStream("stale")(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"text":" fresh"}]}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	creds := completion.Credentials{APIKey: "k", BaseURI: server.URL}

	c := newTestController(t, 0)
	buf := buffer.New("prompt")

	first, err := c.Submit(context.Background(), buf, streamParams(), creds)
	require.NoError(t, err)

	// Let the first run produce its delta without applying it.
	require.Eventually(t, func() bool { return len(first.Events()) >= 2 }, 5*time.Second, 5*time.Millisecond)

	syncParams := streamParams()
	syncParams.Stream = false
	second, err := c.Submit(context.Background(), buf, syncParams, creds)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	for ev := range first.Events() {
		assert.False(t, first.Apply(ev), "stale %s event applied", ev.Kind)
	}
	assert.True(t, first.Outcome().Cancelled)

	out := second.Wait()
	require.True(t, out.Success(), "err: %v", out.Err)
	assert.Equal(t, "prompt fresh", buf.Text())
	assert.Same(t, second, c.Current())
}

func TestSubmit_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	c := newTestController(t, 50*time.Millisecond)
	buf := buffer.New("slow")
	p := streamParams()
	p.Stream = false
	p.StartText = "?"

	r, err := c.Submit(context.Background(), buf, p, completion.Credentials{APIKey: "k", BaseURI: server.URL})
	require.NoError(t, err)

	out := r.Wait()
	assert.Equal(t, StateFailed, out.State)
	assert.True(t, errors.Is(out.Err, context.DeadlineExceeded))
	assert.Contains(t, out.Err.Error(), "timed out after 50ms")
	assert.Equal(t, "slow", buf.Text())
}

func TestRun_IgnoresForeignEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"text":"!"}]}`)
	}))
	defer server.Close()

	c := newTestController(t, time.Second)
	buf := buffer.New("")
	p := streamParams()
	p.Stream = false

	r, err := c.Submit(context.Background(), buf, p, completion.Credentials{APIKey: "k", BaseURI: server.URL})
	require.NoError(t, err)

	assert.False(t, r.Apply(Event{RunID: "someone-else", Kind: EventDelta, Text: "nope"}))
	r.Wait()
	assert.Equal(t, "!", buf.Text())
	assert.False(t, r.Apply(Event{RunID: r.ID, Kind: EventDelta, Text: "late"}), "terminal runs ignore events")
}

func TestRun_ContextCancelMidStreamMatchesCancel(t *testing.T) {
	server := httptest.NewServer(hangingStream("part"))
	defer server.Close()

	c := newTestController(t, 0)
	buf := buffer.New("A")
	p := streamParams()
	p.StartText = "|"
	p.RestartText = "\n"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r, err := c.Submit(ctx, buf, p, completion.Credentials{APIKey: "k", BaseURI: server.URL})
	require.NoError(t, err)

	nextApplied(t, r, EventDelta)
	cancel()

	out := r.Wait()
	assert.Equal(t, StateClosed, out.State)
	assert.True(t, out.Cancelled)
	assert.ErrorIs(t, out.Err, ErrCancelled)
	assert.Equal(t, "part", out.Text)
	assert.Equal(t, "A|part", buf.Text())
	assert.False(t, c.Busy())
}

func TestRun_ContextCancelBeforeFirstDeltaKeepsStartText(t *testing.T) {
	for _, stream := range []bool{true, false} {
		t.Run(fmt.Sprintf("stream=%v", stream), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				<-r.Context().Done()
			}))
			defer server.Close()

			c := newTestController(t, 0)
			buf := buffer.New("A")
			p := streamParams()
			p.Stream = stream
			p.StartText = "|"

			ctx, cancel := context.WithCancel(context.Background())
			r, err := c.Submit(ctx, buf, p, completion.Credentials{APIKey: "k", BaseURI: server.URL})
			require.NoError(t, err)
			cancel()

			out := r.Wait()
			assert.Equal(t, StateClosed, out.State)
			assert.True(t, out.Cancelled)
			assert.Empty(t, out.Text)
			assert.Equal(t, "A|", buf.Text(), "same buffer policy as Run.Cancel")
		})
	}
}

func TestRun_CancelBeforeFirstDeltaKeepsStartText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	c := newTestController(t, 0)
	buf := buffer.New("A")
	p := streamParams()
	p.StartText = "|"

	r, err := c.Submit(context.Background(), buf, p, completion.Credentials{APIKey: "k", BaseURI: server.URL})
	require.NoError(t, err)
	require.True(t, r.Cancel())

	out := r.Wait()
	assert.Equal(t, StateClosed, out.State)
	assert.True(t, out.Cancelled)
	assert.Equal(t, "A|", buf.Text())
}
