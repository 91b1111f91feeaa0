// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import "fmt"

// State is the lifecycle of one submission.
//
//	Idle -> Connecting -> Streaming -> Closed
//	                 \          \---> Failed
//	                  \--> Closed | Failed   (sync requests skip Streaming)
//
// Cancel moves any non-terminal state to Closed.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateClosed
	StateFailed
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateConnecting: "connecting",
	StateStreaming:  "streaming",
	StateClosed:     "closed",
	StateFailed:     "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// CanTransition reports whether s -> to is a legal move.
func (s State) CanTransition(to State) bool {
	switch s {
	case StateIdle:
		return to == StateConnecting || to == StateClosed || to == StateFailed
	case StateConnecting:
		return to == StateStreaming || to == StateClosed || to == StateFailed
	case StateStreaming:
		return to == StateClosed || to == StateFailed
	default:
		return false
	}
}
