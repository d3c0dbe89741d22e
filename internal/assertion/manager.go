package assertion

import (
	"context"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/jorge-barreto/ok/internal/agent"
)

// Manager delegates assertion derivation to the agent. Failures are soft:
// callers receive an empty list and ok=false, never an error.
type Manager struct {
	Agent  agent.Agent
	Logger *zap.Logger
	// Observe, when set, is called with every agent result for usage
	// accounting.
	Observe func(*agent.Result)

	schema *jsonschema.Schema
}

// NewManager compiles the result schema and returns a ready manager.
func NewManager(a agent.Agent, logger *zap.Logger) (*Manager, error) {
	s, err := compileSchema()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{Agent: a, Logger: logger, schema: s}, nil
}

// Extract derives assertions from a complete spec.
func (m *Manager) Extract(ctx context.Context, spec string) (List, bool) {
	return m.run(ctx, "extract", extractPrompt(spec))
}

// UpdateFromDiff asks for the complete replacement list given the prior list
// and a spec diff. Deciding what carries over is the agent's job.
func (m *Manager) UpdateFromDiff(ctx context.Context, diff string, prior List) (List, bool) {
	return m.run(ctx, "update", updatePrompt(diff, prior))
}

func (m *Manager) run(ctx context.Context, kind, prompt string) (List, bool) {
	if m.Logger == nil {
		m.Logger = zap.NewNop()
	}
	log := m.Logger.With(zap.String("task", kind))
	res, err := m.Agent.Run(ctx, agent.Task{
		Prompt:   prompt,
		Schema:   Schema,
		MaxTurns: 1,
		Quiet:    true,
	})
	if err != nil {
		log.Warn("assertion extraction failed", zap.Error(err))
		return List{}, false
	}
	if m.Observe != nil {
		m.Observe(res)
	}

	list, err := m.parse(res)
	if err != nil {
		if res.Failed() {
			err = fmt.Errorf("%w (%s)", err, res.ErrorSummary())
		}
		log.Warn("assertion extraction failed", zap.Error(err))
		return List{}, false
	}
	log.Info("assertions derived", zap.Int("count", len(list)))
	return list, true
}

func (m *Manager) parse(res *agent.Result) (List, error) {
	if len(res.Structured) > 0 {
		if m.schema == nil {
			s, err := compileSchema()
			if err != nil {
				return nil, err
			}
			m.schema = s
		}
		l, err := decodeStrict(m.schema, res.Structured)
		if err == nil {
			return l, nil
		}
		m.Logger.Debug("structured result rejected", zap.Error(err))
	}
	return parseText(res.Text)
}
