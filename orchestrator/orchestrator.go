// Package orchestrator drives the bounded self-correction loop at the heart
// of the assistant. For each user request it repeatedly queries the decision
// oracle, executes the invocation it proposes through the dispatch registry,
// folds the resulting envelope back into the request state as an observation,
// and applies the reflection policy until the oracle answers directly.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tempoai/tempo/dispatch"
	"github.com/tempoai/tempo/logging"
	"github.com/tempoai/tempo/oracle"
)

// Defaults for the loop bounds.
const (
	DefaultMaxReflections  = 3
	DefaultMaxHistory      = 64
	DefaultDispatchTimeout = 60 * time.Second
	DefaultDecideTimeout   = 60 * time.Second
	// DefaultMaxSteps is a hard ceiling on loop iterations per request, a
	// backstop against an oracle that proposes invocations forever.
	DefaultMaxSteps = 32
)

const defaultInstructions = `You are the coordinator of a calendar assistant. Delegate scheduling work
to the scheduler agent and reporting work to the summarizer agent; use the
preference tools for anything the user says about how they like their time
arranged. When a tool or agent reports conflicts or problems, reconsider the
plan before answering. Answer the user directly once the task is done.`

// Options configure an Orchestrator.
type Options struct {
	// Instructions is the system prompt given to the decision oracle.
	Instructions string
	// MaxReflections bounds extra reasoning passes per request.
	MaxReflections int
	// ReflectionTriggers overrides the problem vocabulary scanned in direct
	// answers. The oracle's structured signal always takes precedence.
	ReflectionTriggers []string
	// MaxHistory bounds the per-request message history.
	MaxHistory int
	// MaxSteps is the hard iteration ceiling per request.
	MaxSteps int
	// DispatchTimeout is the per-invocation deadline. Timeouts and panics
	// are retried once, then folded in as error observations.
	DispatchTimeout time.Duration
	// DecideTimeout is the per-decision deadline for the oracle.
	DecideTimeout time.Duration
	Logger        logging.Logger
}

// Result is the outcome of one orchestrated request.
type Result struct {
	// Response is the final answer. On unrecoverable failure it is a
	// best-effort explanation naming the failed operation, never empty.
	Response string
	// Reflections is how many reflection passes the request consumed.
	Reflections int
	// Steps counts decide/execute iterations.
	Steps int
	// Findings carries the structured verdicts observed along the way.
	Findings []any
}

// Orchestrator runs the state machine. One instance serves one request at a
// time; run separate instances for concurrent requests (they may share the
// registry and oracle, both of which are concurrency-safe).
type Orchestrator struct {
	oracle   oracle.Oracle
	registry *dispatch.Registry
	caller   *dispatch.Caller
	opts     Options
}

// New creates an orchestrator over a decision oracle and a handler registry.
func New(o oracle.Oracle, registry *dispatch.Registry, optFns ...func(o *Options)) (*Orchestrator, error) {
	if o == nil {
		return nil, fmt.Errorf("orchestrator: oracle is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("orchestrator: registry is required")
	}

	opts := Options{
		Instructions:       defaultInstructions,
		MaxReflections:     DefaultMaxReflections,
		ReflectionTriggers: reflectionTriggers,
		MaxHistory:         DefaultMaxHistory,
		MaxSteps:           DefaultMaxSteps,
		DispatchTimeout:    DefaultDispatchTimeout,
		DecideTimeout:      DefaultDecideTimeout,
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxReflections < 0 {
		opts.MaxReflections = 0
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Orchestrator{
		oracle:   o,
		registry: registry,
		caller:   dispatch.NewCaller(opts.DispatchTimeout, opts.Logger),
		opts:     opts,
	}, nil
}

// Run processes one user request to completion.
//
// Failures never surface as raw faults: oracle and dispatch errors are
// retried once, then folded into the state as observations (or, when no
// further decision is possible, into a best-effort response). The returned
// error is reserved for invalid input and context cancellation.
func (o *Orchestrator) Run(ctx context.Context, input string) (*Result, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("orchestrator: empty input")
	}

	state := newState(input, o.opts.MaxHistory)
	result := &Result{}
	o.opts.Logger.Info("orchestrator.run.start", "input_len", len(input))

	for !state.Done {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if result.Steps >= o.opts.MaxSteps {
			o.opts.Logger.Warn("orchestrator.steps.exhausted", "max_steps", o.opts.MaxSteps)
			result.Response = o.bestEffort(state, "the request needed more steps than allowed")
			break
		}
		result.Steps++

		state.Phase = PhaseReasoning
		decision, err := o.decide(ctx, state)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			o.opts.Logger.Error("orchestrator.decide.failed", "error", err)
			result.Response = o.bestEffort(state, "deciding the next step failed")
			break
		}

		if decision.Invocation == nil {
			if o.shouldReflect(state, decision) {
				state.Reflections++
				state.Phase = PhaseReflection
				o.opts.Logger.Info("orchestrator.reflect", "count", state.Reflections, "max", o.opts.MaxReflections)
				state.Append(oracle.Message{Role: oracle.RoleAssistant, Content: decision.Content})
				continue
			}
			state.Phase = PhaseFinish
			state.Done = true
			result.Response = decision.Content
			break
		}

		state.Phase = PhaseAction
		state.Append(oracle.Message{Role: oracle.RoleAssistant, Content: decision.Content, Call: decision.Invocation})
		env := o.execute(ctx, decision.Invocation)

		state.Phase = PhaseObservation
		state.Findings = append(state.Findings, env.Findings...)
		state.Append(oracle.Message{
			Role:     oracle.RoleTool,
			Content:  env.JSON(),
			CallID:   decision.Invocation.ID,
			CallName: decision.Invocation.Name,
		})
	}

	result.Reflections = state.Reflections
	result.Findings = state.Findings
	o.opts.Logger.Info("orchestrator.run.done",
		"steps", result.Steps,
		"reflections", result.Reflections,
		"findings", len(result.Findings),
	)
	return result, nil
}

// decide queries the oracle with the current state, retrying once on failure.
func (o *Orchestrator) decide(ctx context.Context, state *State) (*oracle.Decision, error) {
	req := oracle.Request{
		Instructions: o.opts.Instructions,
		History:      state.History,
		Tools:        o.registry.Definitions(),
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		decision, err := o.decideOnce(ctx, req)
		if err == nil {
			return decision, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, err
		}
		o.opts.Logger.Warn("orchestrator.decide.retry", "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func (o *Orchestrator) decideOnce(ctx context.Context, req oracle.Request) (*oracle.Decision, error) {
	if o.opts.DecideTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.DecideTimeout)
		defer cancel()
	}
	return o.oracle.Decide(ctx, req)
}

// execute runs one invocation as an atomic step: whatever happens, exactly
// one envelope comes back. Transport failures (timeout, panic) are retried
// once; a second failure becomes an error envelope. Handler-reported errors
// pass through on the first attempt, they were already handled.
func (o *Orchestrator) execute(ctx context.Context, inv *oracle.Invocation) dispatch.Envelope {
	handler, ok := o.registry.Lookup(inv.Name)
	if !ok {
		o.opts.Logger.Warn("orchestrator.invocation.unknown", "name", inv.Name)
		return dispatch.Errorf("unknown invocation %q, available: %s", inv.Name, strings.Join(o.registry.Names(), ", "))
	}

	// Malformed arguments are an observation like any other failure; the
	// oracle gets the parse error back and can correct the call.
	if err := inv.DecodeArgs(); err != nil {
		o.opts.Logger.Warn("orchestrator.invocation.badargs", "name", inv.Name, "error", err)
		return dispatch.Errorf("invalid arguments for %q: %v", inv.Name, err)
	}

	req := dispatch.Request{
		Instruction: instructionFor(inv),
		Args:        inv.Args,
	}

	env, err := o.caller.Call(ctx, handler, req)
	if err == nil {
		return env
	}
	if ctx.Err() != nil {
		return dispatch.Errorf("%s: %v", inv.Name, err)
	}

	o.opts.Logger.Warn("orchestrator.dispatch.retry", "handler", inv.Name, "error", err)
	env, err = o.caller.Call(ctx, handler, req)
	if err != nil {
		o.opts.Logger.Error("orchestrator.dispatch.failed", "handler", inv.Name, "error", err)
		return dispatch.Errorf("%s failed after retry: %v", inv.Name, err)
	}
	return env
}

// shouldReflect applies the reflection policy to a direct answer: the
// structured signal wins, the trigger vocabulary is the fallback, and the
// counter bound forces Finish either way.
func (o *Orchestrator) shouldReflect(state *State, decision *oracle.Decision) bool {
	if state.Reflections >= o.opts.MaxReflections {
		return false
	}
	if decision.NeedsReflection {
		return true
	}
	return triggered(decision.Content, o.opts.ReflectionTriggers)
}

// bestEffort builds the response for an unrecoverable failure: the last
// substantive assistant content, prefixed with what went wrong.
func (o *Orchestrator) bestEffort(state *State, reason string) string {
	state.Phase = PhaseFinish
	state.Done = true
	for i := len(state.History) - 1; i > 0; i-- {
		m := state.History[i]
		if m.Role == oracle.RoleAssistant && strings.TrimSpace(m.Content) != "" {
			return fmt.Sprintf("I could not fully complete the request (%s). Last progress: %s", reason, m.Content)
		}
	}
	return fmt.Sprintf("I could not complete the request: %s.", reason)
}

// instructionFor renders the free-form instruction for sub-agent dispatch.
// Direct tools read Args instead and ignore it.
func instructionFor(inv *oracle.Invocation) string {
	if s, ok := inv.Args["instruction"].(string); ok {
		return s
	}
	return ""
}
