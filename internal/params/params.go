// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package params holds the generation parameters edited in the sidebar.
package params

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/semperai/circus-tui/internal/completion"
	"github.com/semperai/circus-tui/internal/config"
)

// Parameter ranges accepted by the completions API.
const (
	MinTemperature = 0.0
	MaxTemperature = 1.0
	MinTopP        = 0.0
	MaxTopP        = 1.0
	MinPenalty     = 0.0
	MaxPenalty     = 2.0
)

var (
	// ErrTooManyStops is returned when a fifth stop sequence is added.
	ErrTooManyStops = fmt.Errorf("at most %d stop sequences allowed", completion.MaxStopSequences)

	// ErrDuplicateStop is returned when a stop sequence is already present.
	ErrDuplicateStop = errors.New("stop sequence already present")

	// ErrEmptyStop is returned for an empty stop sequence.
	ErrEmptyStop = errors.New("stop sequence is empty")
)

// Params is an immutable snapshot of the generation settings.
type Params struct {
	Model            string
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
	StopSequences    []string
	StartText        string
	RestartText      string
	Stream           bool
}

// Defaults returns the playground's starting parameters.
func Defaults() Params {
	return Params{
		Temperature: 0.8,
		MaxTokens:   256,
		TopP:        1.0,
		Stream:      true,
	}
}

// FromPreset converts a preset into parameters. The stream flag is not part
// of a preset and is taken from stream.
func FromPreset(p config.Preset, model string, stream bool) Params {
	return Params{
		Model:            model,
		Temperature:      p.Temperature,
		MaxTokens:        p.MaxTokens,
		TopP:             p.TopP,
		FrequencyPenalty: p.FrequencyPenalty,
		PresencePenalty:  p.PresencePenalty,
		StopSequences:    append([]string(nil), p.StopSequences...),
		StartText:        p.StartText,
		RestartText:      p.RestartText,
		Stream:           stream,
	}
}

// Request builds the API payload for prompt.
func (p Params) Request(prompt string) completion.Request {
	req := completion.Request{
		Model:            p.Model,
		Prompt:           prompt,
		Temperature:      p.Temperature,
		MaxTokens:        p.MaxTokens,
		TopP:             p.TopP,
		PresencePenalty:  p.PresencePenalty,
		FrequencyPenalty: p.FrequencyPenalty,
		Stream:           p.Stream,
	}
	if len(p.StopSequences) > 0 {
		req.Stop = append([]string(nil), p.StopSequences...)
	}
	return req
}

// Equal compares two snapshots field by field.
func (p Params) Equal(o Params) bool {
	return p.Model == o.Model &&
		p.Temperature == o.Temperature &&
		p.MaxTokens == o.MaxTokens &&
		p.TopP == o.TopP &&
		p.FrequencyPenalty == o.FrequencyPenalty &&
		p.PresencePenalty == o.PresencePenalty &&
		slices.Equal(p.StopSequences, o.StopSequences) &&
		p.StartText == o.StartText &&
		p.RestartText == o.RestartText &&
		p.Stream == o.Stream
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Store is the mutable parameter state. Setters clamp out-of-range values
// instead of failing, the way a slider would.
type Store struct {
	mu      sync.RWMutex
	p       Params
	ceiling int // max tokens allowed by the selected model; 0 means none

	lmu       sync.Mutex
	listeners []func(Params)
}

// NewStore creates a store holding p, clamped to valid ranges.
func NewStore(p Params) *Store {
	s := &Store{}
	s.p = s.normalize(p)
	return s
}

func (s *Store) normalize(p Params) Params {
	p.Temperature = clamp(p.Temperature, MinTemperature, MaxTemperature)
	p.TopP = clamp(p.TopP, MinTopP, MaxTopP)
	p.FrequencyPenalty = clamp(p.FrequencyPenalty, MinPenalty, MaxPenalty)
	p.PresencePenalty = clamp(p.PresencePenalty, MinPenalty, MaxPenalty)
	if p.MaxTokens < 0 {
		p.MaxTokens = 0
	}
	if s.ceiling > 0 && p.MaxTokens > s.ceiling {
		p.MaxTokens = s.ceiling
	}
	p.StopSequences = append([]string(nil), p.StopSequences...)
	return p
}

// Snapshot returns a copy of the current parameters.
func (s *Store) Snapshot() Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.p
	p.StopSequences = append([]string(nil), s.p.StopSequences...)
	return p
}

// MaxTokensCeiling returns the selected model's token limit, or 0.
func (s *Store) MaxTokensCeiling() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ceiling
}

// OnChange registers fn to receive a snapshot after every change.
func (s *Store) OnChange(fn func(Params)) {
	s.lmu.Lock()
	s.listeners = append(s.listeners, fn)
	s.lmu.Unlock()
}

// update applies fn under the lock and notifies listeners when anything changed.
func (s *Store) update(fn func(p *Params) error) error {
	s.mu.Lock()
	before := s.p
	before.StopSequences = append([]string(nil), s.p.StopSequences...)
	if err := fn(&s.p); err != nil {
		s.p = before
		s.mu.Unlock()
		return err
	}
	s.p = s.normalize(s.p)
	changed := !before.Equal(s.p)
	snap := s.p
	snap.StopSequences = append([]string(nil), s.p.StopSequences...)
	s.mu.Unlock()

	if changed {
		s.lmu.Lock()
		fns := slices.Clone(s.listeners)
		s.lmu.Unlock()
		for _, l := range fns {
			l(snap)
		}
	}
	return nil
}

// SetModel selects m and clamps max tokens to its limit.
func (s *Store) SetModel(m config.Model) {
	_ = s.update(func(p *Params) error {
		s.ceiling = m.MaxTokens
		p.Model = m.ID
		return nil
	})
}

// SetTemperature sets the sampling temperature, clamped to [0, 1].
func (s *Store) SetTemperature(v float64) {
	_ = s.update(func(p *Params) error { p.Temperature = v; return nil })
}

// SetTopP sets nucleus sampling, clamped to [0, 1].
func (s *Store) SetTopP(v float64) {
	_ = s.update(func(p *Params) error { p.TopP = v; return nil })
}

// SetFrequencyPenalty sets the frequency penalty, clamped to [0, 2].
func (s *Store) SetFrequencyPenalty(v float64) {
	_ = s.update(func(p *Params) error { p.FrequencyPenalty = v; return nil })
}

// SetPresencePenalty sets the presence penalty, clamped to [0, 2].
func (s *Store) SetPresencePenalty(v float64) {
	_ = s.update(func(p *Params) error { p.PresencePenalty = v; return nil })
}

// SetMaxTokens sets the response length, clamped to [0, model limit].
func (s *Store) SetMaxTokens(n int) {
	_ = s.update(func(p *Params) error { p.MaxTokens = n; return nil })
}

// SetStartText sets the text inserted before each submission.
func (s *Store) SetStartText(v string) {
	_ = s.update(func(p *Params) error { p.StartText = v; return nil })
}

// SetRestartText sets the text appended after each completion.
func (s *Store) SetRestartText(v string) {
	_ = s.update(func(p *Params) error { p.RestartText = v; return nil })
}

// SetStream toggles streaming.
func (s *Store) SetStream(v bool) {
	_ = s.update(func(p *Params) error { p.Stream = v; return nil })
}

// AddStop appends a stop sequence.
func (s *Store) AddStop(seq string) error {
	return s.update(func(p *Params) error {
		if seq == "" {
			return ErrEmptyStop
		}
		if slices.Contains(p.StopSequences, seq) {
			return ErrDuplicateStop
		}
		if len(p.StopSequences) >= completion.MaxStopSequences {
			return ErrTooManyStops
		}
		p.StopSequences = append(p.StopSequences, seq)
		return nil
	})
}

// RemoveStop deletes a stop sequence and reports whether it was present.
func (s *Store) RemoveStop(seq string) bool {
	removed := false
	_ = s.update(func(p *Params) error {
		if i := slices.Index(p.StopSequences, seq); i >= 0 {
			p.StopSequences = slices.Delete(p.StopSequences, i, i+1)
			removed = true
		}
		return nil
	})
	return removed
}

// SetStopSequences replaces the whole stop list.
func (s *Store) SetStopSequences(seqs []string) error {
	return s.update(func(p *Params) error {
		if err := validStops(seqs); err != nil {
			return err
		}
		p.StopSequences = append([]string(nil), seqs...)
		return nil
	})
}

// Replace swaps in a full parameter set, optionally with a new model limit.
// The stop list is validated; numeric fields are clamped.
func (s *Store) Replace(np Params, m *config.Model) error {
	return s.update(func(p *Params) error {
		if err := validStops(np.StopSequences); err != nil {
			return err
		}
		if m != nil {
			s.ceiling = m.MaxTokens
			np.Model = m.ID
		}
		*p = np
		return nil
	})
}

func validStops(seqs []string) error {
	if len(seqs) > completion.MaxStopSequences {
		return ErrTooManyStops
	}
	for i, seq := range seqs {
		if seq == "" {
			return ErrEmptyStop
		}
		if slices.Contains(seqs[:i], seq) {
			return ErrDuplicateStop
		}
	}
	return nil
}
