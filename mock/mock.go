// Package mock provides a configurable test double that satisfies the
// primitive.Primitive contract, so it can substitute any production
// primitive inside composed workflows under test.
package mock

import (
	"context"
	"sync"
	"time"
)

// Outcome is one scripted result: a value or an error.
type Outcome struct {
	Value any
	Err   error
}

// Primitive is a configurable test double. It can return a fixed value,
// cycle through a script of outcomes (e.g. "fails twice then succeeds"),
// and apply an artificial delay to simulate latency. It records invocation
// count and received inputs for assertions.
type Primitive struct {
	name string

	mu     sync.Mutex
	fixed  any
	script []Outcome
	delay  time.Duration
	calls  int
	inputs []any
}

// Option configures the mock.
type Option func(*Primitive)

// WithReturn makes every invocation return the given value.
func WithReturn(value any) Option {
	return func(m *Primitive) { m.fixed = value }
}

// WithScript makes invocations cycle through the given outcomes in order.
func WithScript(outcomes ...Outcome) Option {
	return func(m *Primitive) { m.script = outcomes }
}

// WithDelay applies an artificial delay before each invocation returns.
// The delay respects context cancellation.
func WithDelay(d time.Duration) Option {
	return func(m *Primitive) { m.delay = d }
}

// New creates a mock primitive.
func New(name string, opts ...Option) *Primitive {
	m := &Primitive{name: name}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Primitive) Name() string { return m.name }

func (m *Primitive) Execute(ctx context.Context, input any) (any, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.inputs = append(m.inputs, input)
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.script) > 0 {
		outcome := m.script[(call-1)%len(m.script)]
		return outcome.Value, outcome.Err
	}
	return m.fixed, nil
}

// Calls returns the number of invocations so far.
func (m *Primitive) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Inputs returns a copy of all received inputs, in call order.
func (m *Primitive) Inputs() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.inputs))
	copy(out, m.inputs)
	return out
}

// Reset clears recorded calls and inputs.
func (m *Primitive) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = 0
	m.inputs = nil
}
