// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/semperai/circus-tui/internal/completion"
	"github.com/semperai/circus-tui/internal/config"
	"github.com/semperai/circus-tui/internal/controller"
	"github.com/semperai/circus-tui/internal/params"
	"github.com/semperai/circus-tui/internal/preset"
	"github.com/semperai/circus-tui/internal/util"
)

const replLongDesc string = `Start a line-oriented playground session.

Each line you enter is appended to the buffer and submitted; the completion
streams back and the restart text is added, so the next line continues the
document. Lines starting with ":" are commands, see :help.

Ctrl+C cancels a running completion and keeps the text received so far.
At the prompt, Ctrl+C or Ctrl+D ends the session.`

const replShortDesc string = "Interactive line-by-line playground"

const replHelp = `Commands:
  :show                 print the buffer
  :clear                empty the buffer
  :params               print the current parameters
  :set <name> <value>   change a parameter (temperature, top_p, max_tokens,
                        frequency_penalty, presence_penalty, start_text,
                        restart_text, stream, model)
  :stop <seq>           add a stop sequence (escapes like \n are expanded)
  :unstop <seq>         remove a stop sequence
  :preset <id>          load a preset, replacing the buffer and parameters
  :tokens               count the tokens in the buffer
  :curl                 print the equivalent curl command
  :help                 show this help
  :quit                 leave`

// prompter reads one line of input. *liner.State implements it.
type prompter interface {
	Prompt(prompt string) (string, error)
}

// lineConfirmer asks a y/N question through a prompter.
type lineConfirmer struct {
	in  prompter
	out io.Writer
}

// Confirm returns true only for an explicit yes.
func (c lineConfirmer) Confirm(question string) bool {
	answer, err := c.in.Prompt(question + " [y/N] ")
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	fmt.Fprintln(c.out, "Cancelled.")
	return false
}

type replCommander struct {
	app     *app
	session sessionFlags
	yes     bool
}

func newREPLCmd(a *app) *cobra.Command {
	cmder := &replCommander{app: a}

	cmd := &cobra.Command{
		Use:   "repl",
		Short: replShortDesc,
		Long:  replLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmder.session.register(cmd)
	cmd.Flags().BoolVarP(&cmder.yes, "yes", "y", false, "Load presets without asking for confirmation")
	return cmd
}

func historyPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "repl_history")
}

func (c *replCommander) run(ctx context.Context, cmd *cobra.Command) error {
	s, err := c.app.newSession(cmd, &c.session)
	if err != nil {
		return err
	}
	// Interrupts end a run, not the session; submit installs its own handler.
	ctx = context.WithoutCancel(ctx)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	hist := historyPath()
	if f, err := os.Open(hist); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if err := os.MkdirAll(filepath.Dir(hist), 0o700); err != nil {
			return
		}
		f, err := os.OpenFile(hist, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = line.WriteHistory(f)
	}()

	r := &repl{
		app:     c.app,
		session: s,
		ctrl:    c.app.newController(),
		out:     cmd.OutOrStdout(),
		confirm: lineConfirmer{in: line, out: cmd.OutOrStdout()},
	}
	if c.yes {
		r.confirm = preset.Always
	}

	fmt.Fprintln(r.out, "circus repl: enter text to complete it, :help for commands.")
	if text := s.buf.Text(); text != "" {
		fmt.Fprint(r.out, text)
		if !strings.HasSuffix(text, "\n") {
			fmt.Fprintln(r.out)
		}
	}

	for {
		input, err := line.Prompt("> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		quit, err := r.handle(ctx, input)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// repl executes one input line at a time against a session.
type repl struct {
	app     *app
	session *session
	ctrl    *controller.Controller
	out     io.Writer
	confirm preset.Confirmer
}

// handle runs a command or submits text. It reports whether to quit.
func (r *repl) handle(ctx context.Context, input string) (bool, error) {
	if !strings.HasPrefix(input, ":") {
		if strings.TrimSpace(input) == "" {
			return false, nil
		}
		r.session.buf.Append(input)
		return false, r.submit(ctx)
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(input, ":"), " ")
	arg = strings.TrimSpace(arg)
	store := r.session.store

	switch name {
	case "q", "quit", "exit":
		return true, nil
	case "h", "help":
		fmt.Fprintln(r.out, replHelp)
	case "show":
		fmt.Fprintln(r.out, r.session.buf.Text())
	case "clear":
		r.session.buf.Clear()
	case "params":
		printParams(r.out, store.Snapshot(), store.MaxTokensCeiling())
	case "set":
		return false, r.set(arg)
	case "stop":
		return false, store.AddStop(util.Unescape(arg))
	case "unstop":
		if !store.RemoveStop(util.Unescape(arg)) {
			return false, fmt.Errorf("stop sequence %q not present", arg)
		}
	case "preset":
		if arg == "" {
			return false, errors.New("usage: :preset <id>")
		}
		applied, err := r.session.loader.Apply(arg, r.confirm)
		if err != nil {
			return false, err
		}
		if applied {
			fmt.Fprint(r.out, r.session.buf.Text())
			fmt.Fprintln(r.out)
		}
	case "tokens":
		p := store.Snapshot()
		n, family, err := r.app.countTokens(p.Model, r.session.buf.Text())
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "%d tokens (%s)\n", n, family)
	case "curl":
		p := store.Snapshot()
		cmd, err := completion.CurlCommand(p.Request(r.session.buf.Text()+p.StartText), r.app.credentials(), completion.CurlOptions{})
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, cmd)
	default:
		return false, fmt.Errorf("unknown command :%s, try :help", name)
	}
	return false, nil
}

func (r *repl) set(arg string) error {
	name, value, ok := strings.Cut(arg, " ")
	if !ok {
		return errors.New("usage: :set <name> <value>")
	}
	value = strings.TrimSpace(value)
	store := r.session.store

	parseFloat := func(lo, hi float64) (float64, error) {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		return v, checkRange(name, v, lo, hi)
	}

	switch name {
	case "temperature":
		v, err := parseFloat(params.MinTemperature, params.MaxTemperature)
		if err != nil {
			return err
		}
		store.SetTemperature(v)
	case "top_p":
		v, err := parseFloat(params.MinTopP, params.MaxTopP)
		if err != nil {
			return err
		}
		store.SetTopP(v)
	case "frequency_penalty":
		v, err := parseFloat(params.MinPenalty, params.MaxPenalty)
		if err != nil {
			return err
		}
		store.SetFrequencyPenalty(v)
	case "presence_penalty":
		v, err := parseFloat(params.MinPenalty, params.MaxPenalty)
		if err != nil {
			return err
		}
		store.SetPresencePenalty(v)
	case "max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("max_tokens must be a non-negative integer, got %q", value)
		}
		store.SetMaxTokens(n)
	case "start_text":
		store.SetStartText(util.Unescape(value))
	case "restart_text":
		store.SetRestartText(util.Unescape(value))
	case "stream":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("stream: %w", err)
		}
		store.SetStream(v)
	case "model":
		store.SetModel(r.app.lookupModel(value))
	default:
		return fmt.Errorf("unknown parameter %q", name)
	}
	return nil
}

// submit runs one completion. Ctrl+C cancels only this run.
func (r *repl) submit(ctx context.Context) error {
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	buf := r.session.buf
	printed := buf.Len()
	run, err := r.ctrl.Submit(runCtx, buf, r.session.store.Snapshot(), r.app.credentials())
	if err != nil {
		return err
	}
	for ev := range run.Events() {
		if !run.Apply(ev) {
			continue
		}
		if n := buf.Len(); n > printed {
			fmt.Fprint(r.out, buf.Text()[printed:n])
			printed = n
		}
	}
	<-run.Done()
	outcome := run.Outcome()
	if !strings.HasSuffix(buf.Text(), "\n") {
		fmt.Fprintln(r.out)
	}

	r.app.logger.Debug("repl run settled",
		zap.String("run", outcome.RunID),
		zap.Stringer("state", outcome.State))

	if outcome.Cancelled {
		fmt.Fprintln(r.out, "(cancelled)")
		return nil
	}
	if outcome.Err == nil {
		return nil
	}
	return errors.New(completion.Diagnostic(outcome.Err))
}
