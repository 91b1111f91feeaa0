// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tokenizer counts BPE tokens for the models in the catalogue.
//
// Models name a tokenizer family ("gpt3", "codex", "cl100k"). A Registry
// maps each family to a tiktoken encoding and loads codecs lazily, since
// building the merge tables takes a noticeable moment.
package tokenizer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Family names a BPE vocabulary.
type Family string

// Known families.
const (
	GPT3   Family = "gpt3"
	Codex  Family = "codex"
	CL100K Family = "cl100k"
)

// ErrUnknownFamily is returned for a family with no registered encoding.
var ErrUnknownFamily = errors.New("unknown tokenizer family")

// Counter counts tokens in a string.
type Counter interface {
	Count(text string) (int, error)
}

// Registry resolves families to codecs. The zero value is not usable; call
// NewRegistry.
type Registry struct {
	mu        sync.Mutex
	encodings map[Family]tokenizer.Encoding
	codecs    map[Family]tokenizer.Codec
}

// NewRegistry returns a registry with the built-in families.
func NewRegistry() *Registry {
	return &Registry{
		encodings: map[Family]tokenizer.Encoding{
			GPT3:   tokenizer.R50kBase,
			Codex:  tokenizer.P50kBase,
			CL100K: tokenizer.Cl100kBase,
		},
		codecs: make(map[Family]tokenizer.Codec),
	}
}

// Register maps family to a tiktoken encoding, replacing any earlier entry.
func (r *Registry) Register(family Family, enc tokenizer.Encoding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encodings[family] = enc
	delete(r.codecs, family)
}

// Known reports whether family has an encoding.
func (r *Registry) Known(family Family) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.encodings[family]
	return ok
}

func (r *Registry) codec(family Family) (tokenizer.Codec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.codecs[family]; ok {
		return c, nil
	}
	enc, ok := r.encodings[family]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
	c, err := tokenizer.Get(enc)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", family, err)
	}
	r.codecs[family] = c
	return c, nil
}

// Count returns the number of tokens text encodes to under family.
func (r *Registry) Count(family Family, text string) (int, error) {
	if text == "" {
		if !r.Known(family) {
			return 0, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
		}
		return 0, nil
	}
	c, err := r.codec(family)
	if err != nil {
		return 0, err
	}
	ids, _, err := c.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("failed to encode: %w", err)
	}
	return len(ids), nil
}

// Counter returns a Counter bound to family.
func (r *Registry) Counter(family Family) Counter {
	return familyCounter{r: r, family: family}
}

type familyCounter struct {
	r      *Registry
	family Family
}

func (c familyCounter) Count(text string) (int, error) {
	return c.r.Count(c.family, text)
}
