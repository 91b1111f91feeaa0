// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tokenizer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiktoken-go/tokenizer"
)

func TestCount_Empty(t *testing.T) {
	r := NewRegistry()
	for _, f := range []Family{GPT3, Codex, CL100K} {
		n, err := r.Count(f, "")
		require.NoError(t, err)
		assert.Equal(t, 0, n, "family %s", f)
	}
}

func TestCount_NonEmpty(t *testing.T) {
	r := NewRegistry()
	for _, f := range []Family{GPT3, Codex, CL100K} {
		short, err := r.Count(f, "Hello")
		require.NoError(t, err)
		long, err := r.Count(f, "Hello world, this sentence has quite a few more tokens in it.")
		require.NoError(t, err)

		assert.Greater(t, short, 0, "family %s", f)
		assert.Greater(t, long, short, "family %s", f)
	}
}

func TestCount_UnknownFamily(t *testing.T) {
	r := NewRegistry()
	_, err := r.Count("sentencepiece", "text")
	assert.ErrorIs(t, err, ErrUnknownFamily)
	_, err = r.Count("sentencepiece", "")
	assert.ErrorIs(t, err, ErrUnknownFamily)
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Known("custom"))
	r.Register("custom", tokenizer.Cl100kBase)
	assert.True(t, r.Known("custom"))

	n, err := r.Counter("custom").Count("abc def")
	require.NoError(t, err)
	assert.Greater(t, n, 0)
}

func TestCount_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Count(GPT3, "concurrent counting")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
