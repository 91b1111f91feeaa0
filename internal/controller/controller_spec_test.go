// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/semperai/circus-tui/internal/buffer"
	"github.com/semperai/circus-tui/internal/completion"
	"github.com/semperai/circus-tui/internal/controller"
	"github.com/semperai/circus-tui/internal/params"
)

func singleAttempt() *completion.Client {
	return completion.NewClient(nil).WithRetryPolicy(completion.RetryPolicy{
		MaxAttempts:    1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     1,
	})
}

func streamEvents(events ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, ev := range events {
			fmt.Fprintf(w, "data: %s\n\n", ev)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func testParams(stream bool) params.Params {
	p := params.Defaults()
	p.Model = "davinci-002"
	p.MaxTokens = 16
	p.Stream = stream
	return p
}

var _ = Describe("State", func() {
	DescribeTable("CanTransition",
		func(from, to controller.State, ok bool) {
			Expect(from.CanTransition(to)).To(Equal(ok))
		},
		Entry("idle to connecting", controller.StateIdle, controller.StateConnecting, true),
		Entry("connecting to streaming", controller.StateConnecting, controller.StateStreaming, true),
		Entry("connecting to closed", controller.StateConnecting, controller.StateClosed, true),
		Entry("streaming to failed", controller.StateStreaming, controller.StateFailed, true),
		Entry("streaming back to connecting", controller.StateStreaming, controller.StateConnecting, false),
		Entry("closed to streaming", controller.StateClosed, controller.StateStreaming, false),
		Entry("failed to closed", controller.StateFailed, controller.StateClosed, false),
	)

	It("names every state", func() {
		Expect(controller.StateStreaming.String()).To(Equal("streaming"))
		Expect(controller.State(42).String()).To(Equal("State(42)"))
	})

	It("treats only closed and failed as terminal", func() {
		Expect(controller.StateClosed.Terminal()).To(BeTrue())
		Expect(controller.StateFailed.Terminal()).To(BeTrue())
		Expect(controller.StateConnecting.Terminal()).To(BeFalse())
	})
})

var _ = Describe("Controller", func() {
	var (
		server *httptest.Server
		ctrl   *controller.Controller
		buf    *buffer.Buffer
		creds  completion.Credentials
	)

	start := func(h http.Handler) {
		server = httptest.NewServer(h)
		creds = completion.Credentials{APIKey: "sk-test", BaseURI: server.URL}
	}

	BeforeEach(func() {
		ctrl = controller.New(singleAttempt(), controller.Options{Timeout: 5 * time.Second})
	})

	AfterEach(func() {
		if server != nil {
			server.Close()
			server = nil
		}
	})

	Context("with a synchronous request", func() {
		It("appends the completion and the restart text", func() {
			start(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"id":"cmpl-1","choices":[{"text":" world","index":0}]}`)
			}))
			buf = buffer.New("Hello")
			p := testParams(false)
			p.RestartText = "\n---\n"

			run, err := ctrl.Submit(context.Background(), buf, p, creds)
			Expect(err).NotTo(HaveOccurred())

			out := run.Wait()
			Expect(out.Success()).To(BeTrue())
			Expect(out.State).To(Equal(controller.StateClosed))
			Expect(out.Text).To(Equal(" world"))
			Expect(buf.Text()).To(Equal("Hello world\n---\n"))
		})

		It("rolls back the start text when the server rejects the request", func() {
			start(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
			}))
			buf = buffer.New("Q: why?")
			p := testParams(false)
			p.StartText = "\nA:"

			run, err := ctrl.Submit(context.Background(), buf, p, creds)
			Expect(err).NotTo(HaveOccurred())

			out := run.Wait()
			Expect(out.State).To(Equal(controller.StateFailed))
			Expect(completion.Diagnostic(out.Err)).To(ContainSubstring("bad model"))
			Expect(buf.Text()).To(Equal("Q: why?"))
		})
	})

	Context("with a streaming request", func() {
		It("applies deltas in order and finishes on [DONE]", func() {
			start(streamEvents(`{"choices":[{"text":"B"}]}`, `{"choices":[{"text":"C"}]}`, "[DONE]"))
			buf = buffer.New("A")
			p := testParams(true)
			p.RestartText = "\n"

			run, err := ctrl.Submit(context.Background(), buf, p, creds)
			Expect(err).NotTo(HaveOccurred())

			out := run.Wait()
			Expect(out.Success()).To(BeTrue())
			Expect(out.SawDone).To(BeTrue())
			Expect(buf.Text()).To(Equal("ABC\n"))
		})

		It("skips malformed events", func() {
			start(streamEvents(`{"choices":[{"text":"x"}]}`, `{oops`, `{"choices":[{"text":"y"}]}`, "[DONE]"))
			buf = buffer.New("")

			out := mustSubmit(ctrl, buf, testParams(true), creds).Wait()
			Expect(out.Success()).To(BeTrue())
			Expect(buf.Text()).To(Equal("xy"))
		})

		It("treats a close without [DONE] as success by default", func() {
			start(streamEvents(`{"choices":[{"text":"x"}]}`))
			buf = buffer.New("")
			p := testParams(true)
			p.RestartText = "!"

			out := mustSubmit(ctrl, buf, p, creds).Wait()
			Expect(out.Success()).To(BeTrue())
			Expect(out.SawDone).To(BeFalse())
			Expect(buf.Text()).To(Equal("x!"))
		})

		It("fails a close without [DONE] in strict mode and keeps the partial text", func() {
			start(streamEvents(`{"choices":[{"text":"x"}]}`))
			ctrl.SetStrictDone(true)
			buf = buffer.New("")
			p := testParams(true)
			p.RestartText = "!"

			out := mustSubmit(ctrl, buf, p, creds).Wait()
			Expect(out.State).To(Equal(controller.StateFailed))
			Expect(out.Err).To(MatchError(completion.ErrStreamTruncated))
			Expect(buf.Text()).To(Equal("x"))
		})

		It("fails at open on a client error", func() {
			start(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"error":{"message":"no such model"}}`)
			}))
			buf = buffer.New("keep")
			p := testParams(true)
			p.StartText = " >"

			out := mustSubmit(ctrl, buf, p, creds).Wait()
			Expect(out.State).To(Equal(controller.StateFailed))
			Expect(out.Err).To(MatchError(completion.ErrModelNotFound))
			Expect(buf.Text()).To(Equal("keep"))
		})
	})

	Context("before sending", func() {
		It("refuses to submit without credentials", func() {
			buf = buffer.New("x")
			_, err := ctrl.Submit(context.Background(), buf, testParams(false), completion.Credentials{})
			Expect(err).To(MatchError(controller.ErrMissingCredentials))
			Expect(buf.Text()).To(Equal("x"))
			Expect(ctrl.Busy()).To(BeFalse())
		})

		It("refuses out-of-range parameters", func() {
			buf = buffer.New("x")
			p := testParams(false)
			p.Temperature = 1.5
			_, err := ctrl.Submit(context.Background(), buf, p, completion.Credentials{APIKey: "k", BaseURI: "http://127.0.0.1:1"})
			Expect(err).To(MatchError(completion.ErrInvalidRequest))
			Expect(buf.Text()).To(Equal("x"))
		})
	})
})

func mustSubmit(c *controller.Controller, buf *buffer.Buffer, p params.Params, creds completion.Credentials) *controller.Run {
	GinkgoHelper()
	run, err := c.Submit(context.Background(), buf, p, creds)
	Expect(err).NotTo(HaveOccurred())
	return run
}
