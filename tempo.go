// Package tempo provides a high-level façade over the orchestration loop and
// the calendar domain components. Most applications interact with this
// package by:
//  1. Creating an Assistant via New() with a decision oracle (optionally
//     overriding the default in-memory stores)
//  2. Processing user requests with Process()
//
// The façade wires the scheduler and summarizer sub-agents and the local
// preference tools into one dispatch registry and delegates each request to
// an orchestrator run. All defaults are safe for local development and
// testing; production deployments typically supply the sqlite event store, a
// persisted preference index and a structured logger.
package tempo

import (
	"context"
	"fmt"
	"time"

	"github.com/tempoai/tempo/agent"
	"github.com/tempoai/tempo/calendar"
	"github.com/tempoai/tempo/dispatch"
	"github.com/tempoai/tempo/logging"
	"github.com/tempoai/tempo/oracle"
	"github.com/tempoai/tempo/orchestrator"
	"github.com/tempoai/tempo/preference"
	"github.com/tempoai/tempo/tool"
)

// Options configures the Assistant.
type Options struct {
	// UserID scopes preference reads and writes. Defaults to "default".
	UserID string

	// Events holds calendar events (defaults to the in-memory store).
	Events calendar.Store
	// Preferences holds weighted user preferences with similarity lookup.
	// Nil disables the preference tools and preference-aware analysis.
	Preferences preference.Store

	// MaxReflections bounds the self-correction passes per request.
	MaxReflections int
	// MaxHistory bounds the per-request conversation history.
	MaxHistory int
	// ReflectionTriggers overrides the problem vocabulary that prompts a
	// reflection pass on a direct answer.
	ReflectionTriggers []string
	// DispatchTimeout is the per-invocation deadline; timeouts are retried
	// once before surfacing as error observations.
	DispatchTimeout time.Duration
	// DecideTimeout is the per-decision deadline for the oracle.
	DecideTimeout time.Duration

	// MaxToolRounds bounds each sub-agent's internal tool loop.
	MaxToolRounds int
	// WorkdayStartHour and WorkdayEndHour bound free-slot queries.
	WorkdayStartHour int
	WorkdayEndHour   int
	// MinSlotDuration is the smallest free slot worth reporting.
	MinSlotDuration time.Duration

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Assistant is the high-level façade aggregating the orchestrator, the
// sub-agents and the stores. Safe for concurrent use; each Process call runs
// its own orchestration state.
type Assistant struct {
	opts     Options
	oracle   oracle.Oracle
	registry *dispatch.Registry
}

// New creates an Assistant around a decision oracle with optional overrides.
// Any unset store is initialized with an in-memory implementation.
func New(o oracle.Oracle, optFns ...func(o *Options)) (*Assistant, error) {
	if o == nil {
		return nil, fmt.Errorf("tempo: oracle is required")
	}

	opts := Options{
		UserID:           "default",
		Events:           calendar.NewInMemoryStore(),
		MaxReflections:   orchestrator.DefaultMaxReflections,
		MaxHistory:       orchestrator.DefaultMaxHistory,
		DispatchTimeout:  orchestrator.DefaultDispatchTimeout,
		DecideTimeout:    orchestrator.DefaultDecideTimeout,
		MaxToolRounds:    agent.DefaultMaxToolRounds,
		WorkdayStartHour: agent.DefaultWorkdayStartHour,
		WorkdayEndHour:   agent.DefaultWorkdayEndHour,
		MinSlotDuration:  agent.DefaultMinSlotMinutes * time.Minute,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	registry := dispatch.NewRegistry()

	scheduler, err := agent.NewScheduler(o, opts.Events, func(so *agent.SchedulerOptions) {
		so.MaxToolRounds = opts.MaxToolRounds
		so.WorkdayStartHour = opts.WorkdayStartHour
		so.WorkdayEndHour = opts.WorkdayEndHour
		so.MinSlotDuration = opts.MinSlotDuration
		so.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}
	if err := registry.Register(scheduler); err != nil {
		return nil, err
	}

	summarizer, err := agent.NewSummarizer(o, opts.Events, opts.Preferences, func(so *agent.SummarizerOptions) {
		so.MaxToolRounds = opts.MaxToolRounds
		so.UserID = opts.UserID
		so.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}
	if err := registry.Register(summarizer); err != nil {
		return nil, err
	}

	if opts.Preferences != nil {
		for _, t := range agent.PreferenceTools(opts.Preferences, opts.UserID, opts.Logger) {
			if err := registry.Register(tool.Adapt(t)); err != nil {
				return nil, err
			}
		}
	}

	return &Assistant{opts: opts, oracle: o, registry: registry}, nil
}

// Registry exposes the dispatch registry, e.g. to register additional tools
// before the first Process call.
func (a *Assistant) Registry() *dispatch.Registry { return a.registry }

// Process runs one user request through the orchestration loop and returns
// the final response text.
func (a *Assistant) Process(ctx context.Context, input string) (string, error) {
	result, err := a.ProcessResult(ctx, input)
	if err != nil {
		return "", err
	}
	return result.Response, nil
}

// ProcessResult runs one user request and returns the full outcome including
// reflection count and structured findings.
func (a *Assistant) ProcessResult(ctx context.Context, input string) (*orchestrator.Result, error) {
	orch, err := orchestrator.New(a.oracle, a.registry, func(o *orchestrator.Options) {
		o.MaxReflections = a.opts.MaxReflections
		o.MaxHistory = a.opts.MaxHistory
		o.DispatchTimeout = a.opts.DispatchTimeout
		o.DecideTimeout = a.opts.DecideTimeout
		o.Logger = a.opts.Logger
		if len(a.opts.ReflectionTriggers) > 0 {
			o.ReflectionTriggers = a.opts.ReflectionTriggers
		}
	})
	if err != nil {
		return nil, err
	}
	return orch.Run(ctx, input)
}
