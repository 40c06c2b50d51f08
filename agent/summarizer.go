package agent

import (
	"context"
	"fmt"

	"github.com/tempoai/tempo/calendar"
	"github.com/tempoai/tempo/dispatch"
	"github.com/tempoai/tempo/logging"
	"github.com/tempoai/tempo/oracle"
	"github.com/tempoai/tempo/preference"
	"github.com/tempoai/tempo/schedule"
	"github.com/tempoai/tempo/summary"
	"github.com/tempoai/tempo/tool"
)

const summarizerInstructions = `You are a calendar summary agent. You report on how time is scheduled:
event counts, busy time per day and per part of day, and how the schedule
relates to the user's stored preferences. Use your tools to gather the
numbers, then answer with a concise natural-language report. Mention any
preference mismatches your tools surfaced.`

// SummarizerOptions configure the summary sub-agent.
type SummarizerOptions struct {
	MaxToolRounds int
	// UserID scopes preference checks. Empty disables them.
	UserID string
	Logger logging.Logger
}

// NewSummarizer builds the reporting sub-agent. The preference store is
// optional; without it analyze_time_usage reports numbers only.
func NewSummarizer(o oracle.Oracle, store calendar.Store, prefs preference.Store, optFns ...func(o *SummarizerOptions)) (*Loop, error) {
	if store == nil {
		return nil, fmt.Errorf("agent summarizer: event store is required")
	}
	opts := SummarizerOptions{MaxToolRounds: DefaultMaxToolRounds, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &summarizer{store: store, prefs: prefs, opts: opts}
	return NewLoop(
		"summarizer",
		"Reports on the schedule: event summaries, time usage and preference alignment.",
		summarizerInstructions,
		o,
		[]tool.Tool{s.summaryTool(), s.timeUsageTool()},
		func(lo *Options) {
			lo.MaxToolRounds = opts.MaxToolRounds
			lo.Logger = opts.Logger
		},
	)
}

type summarizer struct {
	store calendar.Store
	prefs preference.Store
	opts  SummarizerOptions
}

func (s *summarizer) window(args map[string]any) (schedule.Interval, error) {
	from, err := tool.TimeArg(args, "from")
	if err != nil {
		return schedule.Interval{}, err
	}
	to, err := tool.TimeArg(args, "to")
	if err != nil {
		return schedule.Interval{}, err
	}
	return schedule.NewInterval(from, to), nil
}

func windowSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"from": map[string]any{"type": "string", "description": "Window start (ISO 8601)"},
			"to":   map[string]any{"type": "string", "description": "Window end (ISO 8601)"},
		},
		"required": []string{"from", "to"},
	}
}

func (s *summarizer) summaryTool() tool.Tool {
	return tool.NewFunctionTool(
		"get_events_summary",
		"Aggregate the events in a time window: counts by status and tag, busy time, busiest day.",
		windowSchema(),
		func(ctx context.Context, args map[string]any) (any, error) {
			window, err := s.window(args)
			if err != nil {
				return nil, tool.NewToolError("get_events_summary", err.Error(), tool.CodeValidation)
			}
			events, err := s.store.List(ctx, calendar.Filter{From: window.Start, To: window.End})
			if err != nil {
				return nil, err
			}
			report, err := summary.Build(window, events)
			if err != nil {
				return nil, tool.NewToolError("get_events_summary", err.Error(), tool.CodeValidation)
			}
			return report, nil
		},
	).WithLogger(s.opts.Logger)
}

func (s *summarizer) timeUsageTool() tool.Tool {
	return tool.NewFunctionTool(
		"analyze_time_usage",
		"Analyze time usage in a window against the user's stored preferences. Mismatches are advisory findings.",
		windowSchema(),
		func(ctx context.Context, args map[string]any) (any, error) {
			window, err := s.window(args)
			if err != nil {
				return nil, tool.NewToolError("analyze_time_usage", err.Error(), tool.CodeValidation)
			}
			events, err := s.store.List(ctx, calendar.Filter{From: window.Start, To: window.End})
			if err != nil {
				return nil, err
			}
			report, findings, err := summary.Analyze(ctx, window, events, s.prefs, s.opts.UserID)
			if err != nil {
				return nil, err
			}

			body, err := marshalPayload(map[string]any{"report": report, "findings": findings})
			if err != nil {
				return nil, err
			}
			env := dispatch.Success(body)
			for _, f := range findings {
				env.Findings = append(env.Findings, f)
			}
			return env, nil
		},
	).WithLogger(s.opts.Logger)
}
