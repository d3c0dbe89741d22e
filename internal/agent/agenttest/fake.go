// Package agenttest provides an in-memory agent.Agent for tests.
package agenttest

import (
	"context"
	"sync"

	"github.com/jorge-barreto/ok/internal/agent"
)

// Fake records every task and answers with Handler. A nil Handler returns an
// empty successful result.
type Fake struct {
	Handler func(ctx context.Context, task agent.Task) (*agent.Result, error)

	mu    sync.Mutex
	calls []agent.Task
}

func (f *Fake) Run(ctx context.Context, task agent.Task) (*agent.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, task)
	f.mu.Unlock()
	if f.Handler == nil {
		return &agent.Result{}, nil
	}
	return f.Handler(ctx, task)
}

// Calls returns a copy of the recorded tasks.
func (f *Fake) Calls() []agent.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]agent.Task(nil), f.calls...)
}

// CallCount returns how many tasks were run.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Reset forgets recorded calls.
func (f *Fake) Reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

// Structured returns a handler that answers every task with the given
// structured payload.
func Structured(payload string) func(context.Context, agent.Task) (*agent.Result, error) {
	return func(context.Context, agent.Task) (*agent.Result, error) {
		return &agent.Result{Structured: []byte(payload)}, nil
	}
}

// Text returns a handler that answers every task with free text.
func Text(text string) func(context.Context, agent.Task) (*agent.Result, error) {
	return func(context.Context, agent.Task) (*agent.Result, error) {
		return &agent.Result{Text: text}, nil
	}
}
