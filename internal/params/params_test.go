// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package params

import (
	"encoding/json"
	"testing"

	"github.com/semperai/circus-tui/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	p := Defaults()
	assert.Equal(t, 0.8, p.Temperature)
	assert.Equal(t, 256, p.MaxTokens)
	assert.Equal(t, 1.0, p.TopP)
	assert.Zero(t, p.FrequencyPenalty)
	assert.Zero(t, p.PresencePenalty)
	assert.True(t, p.Stream)
	assert.Empty(t, p.StopSequences)
}

func TestSetters_Clamp(t *testing.T) {
	s := NewStore(Defaults())

	s.SetTemperature(1.7)
	s.SetTopP(-0.3)
	s.SetFrequencyPenalty(3)
	s.SetPresencePenalty(-1)
	s.SetMaxTokens(-5)

	p := s.Snapshot()
	assert.Equal(t, 1.0, p.Temperature)
	assert.Equal(t, 0.0, p.TopP)
	assert.Equal(t, 2.0, p.FrequencyPenalty)
	assert.Equal(t, 0.0, p.PresencePenalty)
	assert.Equal(t, 0, p.MaxTokens)
}

func TestSetModel_ClampsMaxTokens(t *testing.T) {
	s := NewStore(Defaults())
	s.SetMaxTokens(4000)
	s.SetModel(config.Model{ID: "text-curie-001", MaxTokens: 2049, Tokenizer: "gpt3"})

	p := s.Snapshot()
	assert.Equal(t, "text-curie-001", p.Model)
	assert.Equal(t, 2049, p.MaxTokens)
	assert.Equal(t, 2049, s.MaxTokensCeiling())

	s.SetMaxTokens(9999)
	assert.Equal(t, 2049, s.Snapshot().MaxTokens)
}

func TestStops(t *testing.T) {
	s := NewStore(Defaults())

	require.NoError(t, s.AddStop("\n"))
	assert.ErrorIs(t, s.AddStop("\n"), ErrDuplicateStop)
	assert.ErrorIs(t, s.AddStop(""), ErrEmptyStop)
	require.NoError(t, s.AddStop("###"))
	require.NoError(t, s.AddStop("Q:"))
	require.NoError(t, s.AddStop("A:"))
	assert.ErrorIs(t, s.AddStop("fifth"), ErrTooManyStops)
	assert.Len(t, s.Snapshot().StopSequences, 4)

	assert.True(t, s.RemoveStop("###"))
	assert.False(t, s.RemoveStop("missing"))
	assert.Equal(t, []string{"\n", "Q:", "A:"}, s.Snapshot().StopSequences)

	assert.ErrorIs(t, s.SetStopSequences([]string{"a", "b", "c", "d", "e"}), ErrTooManyStops)
	assert.Len(t, s.Snapshot().StopSequences, 3, "failed replace leaves the list alone")
}

func TestSnapshot_IsCopy(t *testing.T) {
	s := NewStore(Defaults())
	require.NoError(t, s.AddStop("x"))

	p := s.Snapshot()
	p.StopSequences[0] = "mutated"
	assert.Equal(t, "x", s.Snapshot().StopSequences[0])
}

func TestOnChange(t *testing.T) {
	s := NewStore(Defaults())
	var got []Params
	s.OnChange(func(p Params) { got = append(got, p) })

	s.SetTemperature(0.5)
	s.SetTemperature(0.5) // unchanged, no notification
	_ = s.AddStop("\n")
	_ = s.AddStop("\n") // rejected, no notification

	require.Len(t, got, 2)
	assert.Equal(t, 0.5, got[0].Temperature)
	assert.Equal(t, []string{"\n"}, got[1].StopSequences)
}

func TestRequest_OmitsEmptyStop(t *testing.T) {
	p := Defaults()
	p.Model = "davinci-002"

	req := p.Request("Hello")
	assert.Nil(t, req.Stop)
	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stop")

	p.StopSequences = []string{"\n"}
	req = p.Request("Hello")
	assert.Equal(t, []string{"\n"}, req.Stop)
	assert.Equal(t, "Hello", req.Prompt)
	assert.True(t, req.Stream)
	require.NoError(t, req.Validate())
}

func TestReplace(t *testing.T) {
	s := NewStore(Defaults())
	m := config.Model{ID: "code-davinci-002", MaxTokens: 8001, Tokenizer: "codex"}

	np := Params{Temperature: 0, MaxTokens: 150, TopP: 1, StopSequences: []string{"#"}, RestartText: "\n", Stream: false}
	require.NoError(t, s.Replace(np, &m))

	p := s.Snapshot()
	assert.Equal(t, "code-davinci-002", p.Model)
	assert.Equal(t, 150, p.MaxTokens)
	assert.Equal(t, []string{"#"}, p.StopSequences)
	assert.False(t, p.Stream)

	bad := np
	bad.StopSequences = []string{"a", "a"}
	assert.ErrorIs(t, s.Replace(bad, nil), ErrDuplicateStop)
	assert.True(t, s.Snapshot().Equal(p))
}

func TestFromPreset(t *testing.T) {
	preset := config.Preset{
		ID: "qa", Temperature: 0, MaxTokens: 100, TopP: 1,
		StopSequences: []string{"\n"}, StartText: "\nA:", RestartText: "\n\nQ: ",
	}
	p := FromPreset(preset, "text-davinci-003", true)
	assert.Equal(t, "text-davinci-003", p.Model)
	assert.Equal(t, "\nA:", p.StartText)
	assert.Equal(t, "\n\nQ: ", p.RestartText)
	assert.True(t, p.Stream)

	preset.StopSequences[0] = "changed"
	assert.Equal(t, "\n", p.StopSequences[0])
}
