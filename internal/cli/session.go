// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/semperai/circus-tui/internal/buffer"
	"github.com/semperai/circus-tui/internal/completion"
	"github.com/semperai/circus-tui/internal/config"
	"github.com/semperai/circus-tui/internal/params"
	"github.com/semperai/circus-tui/internal/preset"
	"github.com/semperai/circus-tui/internal/tokenizer"
	"github.com/semperai/circus-tui/internal/util"
)

// sessionFlags are the parameter flags shared by complete, repl and curl.
// Only flags the user set override the preset and config defaults.
type sessionFlags struct {
	preset      string
	model       string
	temperature float64
	maxTokens   int
	topP        float64
	frequency   float64
	presence    float64
	stops       []string
	startText   string
	restartText string
	stream      bool
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.preset, "preset", "p", "", "Preset to start from (see `circus presets`)")
	fl.StringVarP(&f.model, "model", "m", "", "Model ID")
	fl.Float64VarP(&f.temperature, "temperature", "t", 0, "Sampling temperature [0, 1]")
	fl.IntVar(&f.maxTokens, "max-tokens", 0, "Maximum tokens to generate")
	fl.Float64Var(&f.topP, "top-p", 0, "Nucleus sampling [0, 1]")
	fl.Float64Var(&f.frequency, "frequency-penalty", 0, "Frequency penalty [0, 2]")
	fl.Float64Var(&f.presence, "presence-penalty", 0, "Presence penalty [0, 2]")
	fl.StringArrayVar(&f.stops, "stop", nil, `Stop sequence, repeatable up to 4 times; escapes like "\n" are expanded`)
	fl.StringVar(&f.startText, "start-text", "", "Text inserted before each submission")
	fl.StringVar(&f.restartText, "restart-text", "", "Text appended after each completion")
	fl.BoolVar(&f.stream, "stream", true, "Stream the completion")
}

// session is a headless playground: a buffer, its parameters and a loader.
type session struct {
	buf    *buffer.Buffer
	store  *params.Store
	loader *preset.Loader
}

// newSession builds a session from the config defaults, the chosen preset
// and finally the flags the user set explicitly.
func (a *app) newSession(cmd *cobra.Command, f *sessionFlags) (*session, error) {
	buf := buffer.New("")
	store := params.NewStore(params.Defaults())

	p := store.Snapshot()
	p.Stream = a.cfg.Defaults.Stream
	model := a.catalog.ModelOrDefault(a.cfg.Defaults.Model)
	p.Model = model.ID
	if err := store.Replace(p, &model); err != nil {
		return nil, err
	}

	s := &session{buf: buf, store: store, loader: preset.NewLoader(a.catalog, store, buf)}

	id := f.preset
	if id == "" {
		id = a.cfg.Defaults.Preset
	}
	if id != "" {
		// A fresh buffer has nothing to lose, so no confirmation.
		if _, err := s.loader.Apply(id, preset.Always); err != nil {
			return nil, err
		}
	}

	if err := a.applyFlags(cmd, f, store); err != nil {
		return nil, err
	}
	return s, nil
}

func checkRange(name string, v, lo, hi float64) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %s must be within [%g, %g], got %g", completion.ErrInvalidRequest, name, lo, hi, v)
	}
	return nil
}

// applyFlags copies explicitly set flags into store. Out-of-range values are
// rejected rather than clamped.
func (a *app) applyFlags(cmd *cobra.Command, f *sessionFlags, store *params.Store) error {
	fl := cmd.Flags()

	if fl.Changed("model") {
		store.SetModel(a.lookupModel(f.model))
	}
	if fl.Changed("temperature") {
		if err := checkRange("temperature", f.temperature, params.MinTemperature, params.MaxTemperature); err != nil {
			return err
		}
		store.SetTemperature(f.temperature)
	}
	if fl.Changed("top-p") {
		if err := checkRange("top-p", f.topP, params.MinTopP, params.MaxTopP); err != nil {
			return err
		}
		store.SetTopP(f.topP)
	}
	if fl.Changed("frequency-penalty") {
		if err := checkRange("frequency-penalty", f.frequency, params.MinPenalty, params.MaxPenalty); err != nil {
			return err
		}
		store.SetFrequencyPenalty(f.frequency)
	}
	if fl.Changed("presence-penalty") {
		if err := checkRange("presence-penalty", f.presence, params.MinPenalty, params.MaxPenalty); err != nil {
			return err
		}
		store.SetPresencePenalty(f.presence)
	}
	if fl.Changed("max-tokens") {
		if f.maxTokens < 0 {
			return fmt.Errorf("%w: max-tokens must not be negative", completion.ErrInvalidRequest)
		}
		if ceiling := store.MaxTokensCeiling(); ceiling > 0 && f.maxTokens > ceiling {
			return fmt.Errorf("%w: max-tokens %d exceeds the model limit of %d", completion.ErrInvalidRequest, f.maxTokens, ceiling)
		}
		store.SetMaxTokens(f.maxTokens)
	}
	if fl.Changed("stop") {
		seqs := make([]string, len(f.stops))
		for i, s := range f.stops {
			seqs[i] = util.Unescape(s)
		}
		if err := store.SetStopSequences(seqs); err != nil {
			return err
		}
	}
	if fl.Changed("start-text") {
		store.SetStartText(util.Unescape(f.startText))
	}
	if fl.Changed("restart-text") {
		store.SetRestartText(util.Unescape(f.restartText))
	}
	if fl.Changed("stream") {
		store.SetStream(f.stream)
	}
	return nil
}

// lookupModel returns the catalogue entry for id, or a bare model without a
// token ceiling for endpoints that serve models the catalogue lacks.
func (a *app) lookupModel(id string) config.Model {
	if m, ok := a.catalog.Model(id); ok {
		return m
	}
	return config.Model{ID: id, Name: id, Tokenizer: string(tokenizer.CL100K)}
}

// countTokens counts text with the tokenizer family of model, falling back
// to cl100k for families the registry does not know.
func (a *app) countTokens(model, text string) (int, tokenizer.Family, error) {
	family := tokenizer.Family(a.lookupModel(model).Tokenizer)
	if !a.tokenizers.Known(family) {
		family = tokenizer.CL100K
	}
	n, err := a.tokenizers.Count(family, text)
	return n, family, err
}
