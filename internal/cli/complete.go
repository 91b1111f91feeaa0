// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/semperai/circus-tui/internal/completion"
	"github.com/semperai/circus-tui/internal/controller"
	"github.com/semperai/circus-tui/internal/ui/styles"
)

const completeLongDesc string = `Submit one prompt and print the completion.

The prompt is the argument, or standard input when no argument is given.
With --preset the preset's text comes first and the prompt is appended to it.
Output is the start text, the generated text and the restart text; --echo
prints the whole prompt as well.

When --stream is not given, the completion streams if standard output is a
terminal and is fetched in one response otherwise.

Examples:
  circus complete "Write a tagline for an ice cream shop."
  circus complete --preset qa "How many moons does Mars have?"
  circus complete -t 0 --stop '\n' --max-tokens 32 < prompt.txt`

const completeShortDesc string = "Submit a prompt and print the completion"

type completeCommander struct {
	app     *app
	session sessionFlags
	echo    bool
	render  bool
}

func newCompleteCmd(a *app) *cobra.Command {
	cmder := &completeCommander{app: a}

	cmd := &cobra.Command{
		Use:   "complete [prompt]",
		Short: completeShortDesc,
		Long:  completeLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmder.session.register(cmd)
	cmd.Flags().BoolVar(&cmder.echo, "echo", false, "Print the prompt before the completion")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render the output as markdown once it is complete")

	return cmd
}

// readPrompt returns the argument, or stdin when it is not a terminal.
func readPrompt(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	in := cmd.InOrStdin()
	if isTerminal(in) {
		return "", nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
	}
	return string(data), nil
}

func (c *completeCommander) run(ctx context.Context, cmd *cobra.Command, args []string) error {
	s, err := c.app.newSession(cmd, &c.session)
	if err != nil {
		return err
	}

	prompt, err := readPrompt(cmd, args)
	if err != nil {
		return err
	}
	s.buf.Append(prompt)
	if strings.TrimSpace(s.buf.Text()) == "" {
		return errors.New("prompt is empty: pass it as an argument or on stdin")
	}

	out := cmd.OutOrStdout()
	if !cmd.Flags().Changed("stream") {
		s.store.SetStream(isTerminal(out))
	}

	printed := s.buf.Len()
	if c.echo {
		printed = 0
	}

	ctrl := c.app.newController()
	run, err := ctrl.Submit(ctx, s.buf, s.store.Snapshot(), c.app.credentials())
	if err != nil {
		return err
	}

	var outcome controller.Outcome
	if c.render {
		outcome = run.Wait()
		if outcome.Err == nil {
			if err := c.renderMarkdown(out, s.buf.Text()[printed:]); err != nil {
				return err
			}
		}
	} else {
		for ev := range run.Events() {
			if !run.Apply(ev) {
				continue
			}
			if n := s.buf.Len(); n > printed {
				fmt.Fprint(out, s.buf.Text()[printed:n])
				printed = n
			}
		}
		<-run.Done()
		outcome = run.Outcome()
		if isTerminal(out) && outcome.Text != "" && !strings.HasSuffix(s.buf.Text(), "\n") {
			fmt.Fprintln(out)
		}
	}

	c.app.logger.Info("completion finished",
		zap.String("run", outcome.RunID),
		zap.Stringer("state", outcome.State),
		zap.Int("bytes", len(outcome.Text)),
		zap.Duration("elapsed", outcome.Elapsed))

	return reportOutcome(cmd, outcome)
}

// reportOutcome prints the raw API error, if any, and converts the outcome
// into the command's error.
func reportOutcome(cmd *cobra.Command, outcome controller.Outcome) error {
	if outcome.Err == nil {
		return nil
	}
	if errors.Is(outcome.Err, context.Canceled) || errors.Is(outcome.Err, controller.ErrCancelled) {
		return fmt.Errorf("interrupted after %d bytes", len(outcome.Text))
	}
	var apiErr *completion.APIError
	if errors.As(outcome.Err, &apiErr) {
		fmt.Fprintln(cmd.ErrOrStderr(), completion.Diagnostic(outcome.Err))
	}
	return fmt.Errorf("completion failed: %w", outcome.Err)
}

func (c *completeCommander) renderMarkdown(out io.Writer, text string) error {
	style := "notty"
	if isTerminal(out) {
		style = styles.NewTheme(c.app.cfg.UI.Theme).GlamourStyle(c.app.cfg.UI.MarkdownStyle)
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(terminalWidth()-2),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	rendered, err := r.Render(text)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	_, err = fmt.Fprint(out, rendered)
	return err
}
