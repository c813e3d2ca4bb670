// Copyright 2024 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fsm provides two small finite state machine flavours.
//
// Run drives a sequence of state functions, in the style of Rob Pike's talk
// "Lexical Scanning in Go". Machine guards a value that may only move along
// declared transitions and is safe for concurrent use.
package fsm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// State represents a state in a state-function machine.
// It takes args as a set of arguments and returns the arguments for the next state,
// the next State to run or an error.
//
// Returning a nil State indicates the successful end of the state machine.
type State[T any] func(ctx context.Context, args T) (T, State[T], error)

// Run executes the state functions with args of any type and start as the first state.
// It keeps executing the states until the current state is nil. In case a state returns an error,
// the execution stops and the error is returned.
func Run[T any](ctx context.Context, args T, start State[T]) (T, error) {
	var err error

	current := start

	for {
		if ctx.Err() != nil {
			return args, ctx.Err()
		}

		args, current, err = current(ctx, args)
		if err != nil {
			return args, err
		}

		if current == nil {
			return args, nil
		}
	}
}

// ErrTransition is returned when a transition is not declared.
var ErrTransition = errors.New("illegal state transition")

// Transitions declares, for each state, the states it may move to.
// States without an entry are terminal.
type Transitions[S comparable] map[S][]S

// Machine holds the current state of a transition-table machine.
type Machine[S comparable] struct {
	mu      sync.Mutex
	current S
	rules   Transitions[S]
}

// NewMachine returns a machine in state initial.
func NewMachine[S comparable](initial S, rules Transitions[S]) *Machine[S] {
	return &Machine[S]{
		current: initial,
		rules:   rules,
	}
}

// Current returns the current state.
func (m *Machine[S]) Current() S {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.current
}

// Terminal reports whether the current state has no outgoing transitions.
func (m *Machine[S]) Terminal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.rules[m.current]) == 0
}

// Transition moves the machine to next. It fails with ErrTransition if the
// move is not declared; the state is left unchanged in that case.
func (m *Machine[S]) Transition(next S) error {
	return m.Do(next, nil)
}

// Do moves the machine to next and runs fn while still holding the lock,
// so that the side effect of a transition cannot interleave with another
// transition. fn runs only if the transition is legal; if fn returns an
// error the state is not changed. fn may be nil.
func (m *Machine[S]) Do(next S, fn func(from S) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(m.rules[m.current], next) {
		return fmt.Errorf("%w: %v -> %v", ErrTransition, m.current, next)
	}

	if fn != nil {
		if err := fn(m.current); err != nil {
			return err
		}
	}

	m.current = next

	return nil
}
