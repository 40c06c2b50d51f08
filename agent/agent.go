// Package agent implements the specialist sub-agents: bounded, oracle-driven
// tool loops exposed to the orchestrator through the dispatch contract. Each
// sub-agent keeps a private working trace per call; only the final envelope
// crosses back to the orchestrator.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tempoai/tempo/dispatch"
	"github.com/tempoai/tempo/logging"
	"github.com/tempoai/tempo/oracle"
	"github.com/tempoai/tempo/tool"
)

// DefaultMaxToolRounds bounds the decide/execute iterations of one sub-agent
// call. Exhausting the budget is reported as an error envelope, never as a
// silently truncated answer.
const DefaultMaxToolRounds = 8

// Options configure a sub-agent loop.
type Options struct {
	// MaxToolRounds caps decide/execute iterations per call.
	MaxToolRounds int
	Logger        logging.Logger
}

// Loop is a single-purpose agent: an oracle plus a private toolset, driven
// until the oracle answers directly or the round budget runs out. It
// implements dispatch.Handler, so the orchestrator addresses it exactly like
// a local tool.
type Loop struct {
	name         string
	description  string
	instructions string
	oracle       oracle.Oracle
	tools        *dispatch.Registry
	maxRounds    int
	logger       logging.Logger
}

var _ dispatch.Handler = (*Loop)(nil)

// NewLoop assembles a sub-agent from an oracle, instructions and tools.
func NewLoop(name, description, instructions string, o oracle.Oracle, tools []tool.Tool, optFns ...func(o *Options)) (*Loop, error) {
	if name == "" {
		return nil, fmt.Errorf("agent: name is required")
	}
	if o == nil {
		return nil, fmt.Errorf("agent %s: oracle is required", name)
	}

	opts := Options{MaxToolRounds: DefaultMaxToolRounds, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = DefaultMaxToolRounds
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	registry := dispatch.NewRegistry()
	for _, t := range tools {
		if err := registry.Register(tool.Adapt(t)); err != nil {
			return nil, fmt.Errorf("agent %s: %w", name, err)
		}
	}

	return &Loop{
		name:         name,
		description:  description,
		instructions: instructions,
		oracle:       o,
		tools:        registry,
		maxRounds:    opts.MaxToolRounds,
		logger:       opts.Logger,
	}, nil
}

func (l *Loop) Name() string        { return l.name }
func (l *Loop) Description() string { return l.description }

// Parameters declares the sub-agent's dispatch schema: one free-form
// instruction string.
func (l *Loop) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"instruction": map[string]any{
				"type":        "string",
				"description": "Task for the " + l.name + " agent, in natural language.",
			},
		},
		"required": []string{"instruction"},
	}
}

// Handle runs the bounded tool loop for one delegated task.
//
// Findings attached by tool envelopes (detected conflicts and the like)
// accumulate across rounds and ride on the final envelope, so structured
// verdicts survive the trip back to the orchestrator even though the working
// trace does not.
func (l *Loop) Handle(ctx context.Context, req dispatch.Request) dispatch.Envelope {
	instruction := strings.TrimSpace(req.Instruction)
	if instruction == "" {
		instruction = tool.StringArg(req.Args, "instruction", "")
	}
	if instruction == "" {
		return dispatch.Errorf("agent %s: empty instruction", l.name)
	}

	history := []oracle.Message{{Role: oracle.RoleUser, Content: instruction}}
	var findings []any

	for round := 0; round < l.maxRounds; round++ {
		decision, err := l.oracle.Decide(ctx, oracle.Request{
			Instructions: l.instructions,
			History:      history,
			Tools:        l.tools.Definitions(),
		})
		if err != nil {
			l.logger.Error("agent.decide.failed", "agent", l.name, "round", round, "error", err)
			return dispatch.Errorf("agent %s: decide: %v", l.name, err)
		}

		if decision.Invocation == nil {
			env := dispatch.Success(decision.Content)
			env.Findings = findings
			return env
		}

		inv := decision.Invocation
		if err := inv.DecodeArgs(); err != nil {
			history = appendCall(history, decision, dispatch.Error(err.Error()))
			continue
		}

		handler, ok := l.tools.Lookup(inv.Name)
		if !ok {
			l.logger.Warn("agent.tool.unknown", "agent", l.name, "tool", inv.Name)
			history = appendCall(history, decision, dispatch.Errorf("unknown tool %q, available: %s", inv.Name, strings.Join(l.tools.Names(), ", ")))
			continue
		}

		l.logger.Debug("agent.tool.call", "agent", l.name, "tool", inv.Name, "round", round)
		env := handler.Handle(ctx, dispatch.Request{Args: inv.Args})
		findings = append(findings, env.Findings...)
		history = appendCall(history, decision, env)
	}

	l.logger.Warn("agent.rounds.exhausted", "agent", l.name, "max_rounds", l.maxRounds)
	env := dispatch.Errorf("agent %s: no answer after %d tool rounds", l.name, l.maxRounds)
	env.Findings = findings
	return env
}

// appendCall records one decide/execute round in the working trace: the
// assistant message carrying the invocation and the paired tool observation.
func appendCall(history []oracle.Message, decision *oracle.Decision, env dispatch.Envelope) []oracle.Message {
	return append(history,
		oracle.Message{Role: oracle.RoleAssistant, Content: decision.Content, Call: decision.Invocation},
		oracle.Message{
			Role:     oracle.RoleTool,
			Content:  env.JSON(),
			CallID:   decision.Invocation.ID,
			CallName: decision.Invocation.Name,
		},
	)
}

// marshalPayload renders a tool result payload, used by the concrete agents.
func marshalPayload(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(b), nil
}
