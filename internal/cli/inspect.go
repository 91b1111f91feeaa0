// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semperai/circus-tui/internal/completion"
	"github.com/semperai/circus-tui/internal/params"
	"github.com/semperai/circus-tui/internal/ui/components"
	"github.com/semperai/circus-tui/internal/ui/styles"
	"github.com/semperai/circus-tui/internal/util"
)

// table prints rows with columns padded to their widest cell.
func table(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for _, row := range append([][]string{header}, rows...) {
		for i, cell := range row {
			widths[i] = max(widths[i], util.StringWidth(cell))
		}
	}
	for _, row := range append([][]string{header}, rows...) {
		var b strings.Builder
		for i, cell := range row {
			if i == len(row)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(util.PadRight(cell, widths[i]+2))
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}
}

func printParams(w io.Writer, p params.Params, ceiling int) {
	limit := "none"
	if ceiling > 0 {
		limit = strconv.Itoa(ceiling)
	}
	stops := make([]string, len(p.StopSequences))
	for i, s := range p.StopSequences {
		stops[i] = strconv.Quote(s)
	}
	table(w, []string{"PARAMETER", "VALUE"}, [][]string{
		{"model", p.Model},
		{"temperature", strconv.FormatFloat(p.Temperature, 'f', -1, 64)},
		{"max_tokens", fmt.Sprintf("%d (limit %s)", p.MaxTokens, limit)},
		{"top_p", strconv.FormatFloat(p.TopP, 'f', -1, 64)},
		{"frequency_penalty", strconv.FormatFloat(p.FrequencyPenalty, 'f', -1, 64)},
		{"presence_penalty", strconv.FormatFloat(p.PresencePenalty, 'f', -1, 64)},
		{"stop", strings.Join(stops, ", ")},
		{"start_text", strconv.Quote(p.StartText)},
		{"restart_text", strconv.Quote(p.RestartText)},
		{"stream", strconv.FormatBool(p.Stream)},
	})
}

func newPresetsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows := make([][]string, 0, len(a.catalog.Presets))
			for _, p := range a.catalog.Presets {
				rows = append(rows, []string{p.ID, p.Name, a.catalog.ModelOrDefault(p.Model).ID, util.TruncateWidth(util.FirstLine(p.Input), 40)})
			}
			table(cmd.OutOrStdout(), []string{"ID", "NAME", "MODEL", "INPUT"}, rows)
			return nil
		},
	}
}

type modelsCommander struct {
	app    *app
	remote bool
}

func newModelsCmd(a *app) *cobra.Command {
	cmder := &modelsCommander{app: a}
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models in the catalogue, or those the endpoint serves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmder.remote {
				return cmder.listRemote(cmd.Context(), cmd.OutOrStdout())
			}
			cmder.listCatalog(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&cmder.remote, "remote", false, "Query GET /models on the configured endpoint")
	return cmd
}

func (c *modelsCommander) listCatalog(w io.Writer) {
	rows := make([][]string, 0, len(c.app.catalog.Models))
	for _, m := range c.app.catalog.Models {
		rows = append(rows, []string{m.ID, m.Name, strconv.Itoa(m.MaxTokens), m.Tokenizer})
	}
	table(w, []string{"ID", "NAME", "MAX TOKENS", "TOKENIZER"}, rows)
}

func (c *modelsCommander) listRemote(ctx context.Context, w io.Writer) error {
	models, err := c.app.client().ListModels(ctx, c.app.credentials())
	if errors.Is(err, completion.ErrNotConfigured) {
		return fmt.Errorf("listing remote models needs an API key and base URI: %w", err)
	}
	if err != nil {
		return err
	}
	slices.SortFunc(models, func(x, y completion.ModelInfo) int { return strings.Compare(x.ID, y.ID) })

	rows := make([][]string, 0, len(models))
	for _, m := range models {
		known := ""
		if _, ok := c.app.catalog.Model(m.ID); ok {
			known = "yes"
		}
		rows = append(rows, []string{m.ID, m.OwnedBy, known})
	}
	table(w, []string{"ID", "OWNED BY", "IN CATALOGUE"}, rows)
	return nil
}

type tokensCommander struct {
	app   *app
	model string
}

func newTokensCmd(a *app) *cobra.Command {
	cmder := &tokensCommander{app: a}
	cmd := &cobra.Command{
		Use:   "tokens [text]",
		Short: "Count the tokens in text or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readPrompt(cmd, args)
			if err != nil {
				return err
			}
			model := cmder.model
			if model == "" {
				model = a.catalog.ModelOrDefault(a.cfg.Defaults.Model).ID
			}
			n, family, err := a.countTokens(model, text)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s tokens (%s)\n", components.FormatCount(n), family)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Count with this model's tokenizer")
	return cmd
}

type curlCommander struct {
	app     *app
	session sessionFlags
	reveal  bool
}

func newCurlCmd(a *app) *cobra.Command {
	cmder := &curlCommander{app: a}
	cmd := &cobra.Command{
		Use:   "curl [prompt]",
		Short: "Print the curl command for a submission without sending it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args)
		},
	}
	cmder.session.register(cmd)
	cmd.Flags().BoolVar(&cmder.reveal, "reveal-key", false, "Print the API key instead of $OPENAI_API_KEY")
	return cmd
}

func (c *curlCommander) run(cmd *cobra.Command, args []string) error {
	s, err := c.app.newSession(cmd, &c.session)
	if err != nil {
		return err
	}
	prompt, err := readPrompt(cmd, args)
	if err != nil {
		return err
	}
	s.buf.Append(prompt)

	p := s.store.Snapshot()
	req := p.Request(s.buf.Text() + p.StartText)
	if err := req.Validate(); err != nil {
		return err
	}
	command, err := completion.CurlCommand(req, c.app.credentials(), completion.CurlOptions{RevealKey: c.reveal})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if isTerminal(out) {
		command = components.Highlight(command, "bash", styles.NewTheme(c.app.cfg.UI.Theme))
	}
	fmt.Fprintln(out, command)
	return nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Print version information",
		Args:              cobra.NoArgs,
		PersistentPreRunE: skipSetup,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "circus %s (commit %s, built %s)\n", a.info.Version, a.info.GitCommit, a.info.BuildDate)
		},
	}
}
