package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tempoai/tempo/calendar"
	"github.com/tempoai/tempo/dispatch"
	"github.com/tempoai/tempo/logging"
	"github.com/tempoai/tempo/oracle"
	"github.com/tempoai/tempo/schedule"
	"github.com/tempoai/tempo/tool"
)

// Working-hours defaults for free-slot queries.
const (
	DefaultWorkdayStartHour = 9
	DefaultWorkdayEndHour   = 18
	DefaultMinSlotMinutes   = 30
)

const schedulerInstructions = `You are a calendar scheduling agent. You manage events through your tools:
create, update, remove and inspect events, find free slots and check for
conflicts. Times are ISO 8601. Mutations report any overlapping events they
detected; always mention detected conflicts in your answer. When the task is
complete, answer with a short factual summary of what you did.`

// SchedulerOptions configure the scheduler sub-agent.
type SchedulerOptions struct {
	// MaxToolRounds caps decide/execute iterations per delegated task.
	MaxToolRounds int
	// WorkdayStartHour and WorkdayEndHour bound free-slot queries that do
	// not carry explicit hours.
	WorkdayStartHour int
	WorkdayEndHour   int
	// MinSlotDuration is the smallest gap worth reporting.
	MinSlotDuration time.Duration
	Logger          logging.Logger
}

// NewScheduler builds the scheduling sub-agent over an event store.
func NewScheduler(o oracle.Oracle, store calendar.Store, optFns ...func(o *SchedulerOptions)) (*Loop, error) {
	if store == nil {
		return nil, fmt.Errorf("agent scheduler: event store is required")
	}
	opts := SchedulerOptions{
		MaxToolRounds:    DefaultMaxToolRounds,
		WorkdayStartHour: DefaultWorkdayStartHour,
		WorkdayEndHour:   DefaultWorkdayEndHour,
		MinSlotDuration:  DefaultMinSlotMinutes * time.Minute,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &scheduler{store: store, opts: opts}
	tools := []tool.Tool{
		s.addEventTool(),
		s.updateEventTool(),
		s.removeEventTool(),
		s.getEventTool(),
		s.listEventsTool(),
		s.freeSlotsTool(),
		s.checkConflictsTool(),
	}
	return NewLoop(
		"scheduler",
		"Manages calendar events: create, update, remove, list, find free slots and check conflicts.",
		schedulerInstructions,
		o,
		tools,
		func(lo *Options) {
			lo.MaxToolRounds = opts.MaxToolRounds
			lo.Logger = opts.Logger
		},
	)
}

type scheduler struct {
	store calendar.Store
	opts  SchedulerOptions
}

// eventPayload is the tool-facing rendering of a mutation result.
type eventPayload struct {
	Event     calendar.Event      `json:"event"`
	Conflicts []schedule.Conflict `json:"conflicts,omitempty"`
}

func timeProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc + " (ISO 8601)"}
}

func (s *scheduler) addEventTool() tool.Tool {
	return tool.NewFunctionTool(
		"add_event",
		"Create a calendar event. Overlaps with existing events are detected and reported; set allow_overlap to false to reject the event instead.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title":         map[string]any{"type": "string", "description": "Event title"},
				"start":         timeProp("Start time"),
				"end":           timeProp("End time"),
				"description":   map[string]any{"type": "string"},
				"location":      map[string]any{"type": "string"},
				"tags":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"allow_overlap": map[string]any{"type": "boolean", "description": "Commit even when the event overlaps existing ones (default true)"},
			},
			"required": []string{"title", "start", "end"},
		},
		s.addEvent,
	).WithLogger(s.opts.Logger)
}

func (s *scheduler) addEvent(ctx context.Context, args map[string]any) (any, error) {
	start, err := tool.TimeArg(args, "start")
	if err != nil {
		return nil, tool.NewToolError("add_event", err.Error(), tool.CodeValidation)
	}
	end, err := tool.TimeArg(args, "end")
	if err != nil {
		return nil, tool.NewToolError("add_event", err.Error(), tool.CodeValidation)
	}

	ev := calendar.Event{
		Title:       tool.StringArg(args, "title", ""),
		Description: tool.StringArg(args, "description", ""),
		Start:       start,
		End:         end,
		Location:    tool.StringArg(args, "location", ""),
		Tags:        tool.StringSliceArg(args, "tags"),
	}

	// Overlap detection and the write are one atomic store operation, so two
	// concurrent overlapping adds cannot both report a clean conflict set.
	created, overlapping, err := s.store.CreateChecked(ctx, ev, tool.BoolArg(args, "allow_overlap", true))
	if errors.Is(err, calendar.ErrOverlap) {
		return nil, tool.NewToolError("add_event",
			fmt.Sprintf("rejected: overlaps %d existing event(s) and allow_overlap is false", len(overlapping)),
			tool.CodeExecution)
	}
	if err != nil {
		return nil, err
	}
	conflicts := schedule.Conflicts(schedule.NewInterval(start, end), overlapping, "")
	return mutationEnvelope(eventPayload{Event: created, Conflicts: conflicts})
}

func (s *scheduler) updateEventTool() tool.Tool {
	return tool.NewFunctionTool(
		"update_event",
		"Update fields of an existing event. The event itself is excluded from conflict detection.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"event_id":      map[string]any{"type": "string"},
				"title":         map[string]any{"type": "string"},
				"start":         timeProp("New start time"),
				"end":           timeProp("New end time"),
				"description":   map[string]any{"type": "string"},
				"location":      map[string]any{"type": "string"},
				"tags":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"status":        map[string]any{"type": "string", "description": "scheduled, cancelled or completed"},
				"allow_overlap": map[string]any{"type": "boolean"},
			},
			"required": []string{"event_id"},
		},
		s.updateEvent,
	).WithLogger(s.opts.Logger)
}

func (s *scheduler) updateEvent(ctx context.Context, args map[string]any) (any, error) {
	id := tool.StringArg(args, "event_id", "")

	var patch calendar.Patch
	if v, ok := args["title"].(string); ok {
		patch.Title = &v
	}
	if v, ok := args["description"].(string); ok {
		patch.Description = &v
	}
	if v, ok := args["location"].(string); ok {
		patch.Location = &v
	}
	if _, ok := args["tags"]; ok {
		tags := tool.StringSliceArg(args, "tags")
		patch.Tags = &tags
	}
	if v, ok := args["status"].(string); ok {
		status := calendar.Status(v)
		if !status.Valid() {
			return nil, tool.NewToolError("update_event", fmt.Sprintf("unknown status %q", v), tool.CodeValidation)
		}
		patch.Status = &status
	}
	if _, ok := args["start"]; ok {
		ts, err := tool.TimeArg(args, "start")
		if err != nil {
			return nil, tool.NewToolError("update_event", err.Error(), tool.CodeValidation)
		}
		patch.Start = &ts
	}
	if _, ok := args["end"]; ok {
		ts, err := tool.TimeArg(args, "end")
		if err != nil {
			return nil, tool.NewToolError("update_event", err.Error(), tool.CodeValidation)
		}
		patch.End = &ts
	}

	// UpdateChecked detects overlaps against the patched interval, with the
	// event excluded so it cannot conflict with itself, and commits in the
	// same atomic step.
	updated, overlapping, err := s.store.UpdateChecked(ctx, id, patch, tool.BoolArg(args, "allow_overlap", true))
	if errors.Is(err, calendar.ErrOverlap) {
		return nil, tool.NewToolError("update_event",
			fmt.Sprintf("rejected: would overlap %d existing event(s) and allow_overlap is false", len(overlapping)),
			tool.CodeExecution)
	}
	if err != nil {
		return nil, notFoundOr(err, "update_event", id)
	}
	conflicts := schedule.Conflicts(schedule.NewInterval(updated.Start, updated.End), overlapping, id)
	return mutationEnvelope(eventPayload{Event: updated, Conflicts: conflicts})
}

func (s *scheduler) removeEventTool() tool.Tool {
	return tool.NewFunctionTool(
		"remove_event",
		"Remove an event from the calendar.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"event_id": map[string]any{"type": "string"},
			},
			"required": []string{"event_id"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			id := tool.StringArg(args, "event_id", "")
			if err := s.store.Delete(ctx, id); err != nil {
				return nil, notFoundOr(err, "remove_event", id)
			}
			return map[string]any{"removed": id}, nil
		},
	).WithLogger(s.opts.Logger)
}

func (s *scheduler) getEventTool() tool.Tool {
	return tool.NewFunctionTool(
		"get_event",
		"Fetch a single event by id.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"event_id": map[string]any{"type": "string"},
			},
			"required": []string{"event_id"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			id := tool.StringArg(args, "event_id", "")
			ev, err := s.store.Get(ctx, id)
			if err != nil {
				return nil, notFoundOr(err, "get_event", id)
			}
			return ev, nil
		},
	).WithLogger(s.opts.Logger)
}

func (s *scheduler) listEventsTool() tool.Tool {
	return tool.NewFunctionTool(
		"list_events",
		"List events, optionally restricted to a time window, status or tag.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"from":   timeProp("Window start"),
				"to":     timeProp("Window end"),
				"status": map[string]any{"type": "string"},
				"tag":    map[string]any{"type": "string"},
			},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			var f calendar.Filter
			if _, ok := args["from"]; ok {
				ts, err := tool.TimeArg(args, "from")
				if err != nil {
					return nil, tool.NewToolError("list_events", err.Error(), tool.CodeValidation)
				}
				f.From = ts
			}
			if _, ok := args["to"]; ok {
				ts, err := tool.TimeArg(args, "to")
				if err != nil {
					return nil, tool.NewToolError("list_events", err.Error(), tool.CodeValidation)
				}
				f.To = ts
			}
			f.Status = calendar.Status(tool.StringArg(args, "status", ""))
			f.Tag = tool.StringArg(args, "tag", "")

			events, err := s.store.List(ctx, f)
			if err != nil {
				return nil, err
			}
			return map[string]any{"count": len(events), "events": events}, nil
		},
	).WithLogger(s.opts.Logger)
}

func (s *scheduler) freeSlotsTool() tool.Tool {
	return tool.NewFunctionTool(
		"get_free_slots",
		"Find free time slots on a given day within working hours.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"date":                 map[string]any{"type": "string", "description": "Day to inspect (YYYY-MM-DD)"},
				"start_hour":           map[string]any{"type": "integer", "description": "Working hours start (default from configuration)"},
				"end_hour":             map[string]any{"type": "integer", "description": "Working hours end"},
				"min_duration_minutes": map[string]any{"type": "integer", "description": "Smallest slot worth reporting"},
			},
			"required": []string{"date"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			day, err := tool.TimeArg(args, "date")
			if err != nil {
				return nil, tool.NewToolError("get_free_slots", err.Error(), tool.CodeValidation)
			}
			bounds := schedule.DayBounds(day,
				tool.IntArg(args, "start_hour", s.opts.WorkdayStartHour),
				tool.IntArg(args, "end_hour", s.opts.WorkdayEndHour),
			)
			minDur := time.Duration(tool.IntArg(args, "min_duration_minutes", int(s.opts.MinSlotDuration/time.Minute))) * time.Minute

			events, err := s.store.List(ctx, calendar.Filter{From: bounds.Start, To: bounds.End})
			if err != nil {
				return nil, err
			}
			slots, err := schedule.FreeSlots(events, bounds, minDur)
			if err != nil {
				return nil, tool.NewToolError("get_free_slots", err.Error(), tool.CodeValidation)
			}
			return map[string]any{"bounds": bounds, "slots": slots}, nil
		},
	).WithLogger(s.opts.Logger)
}

func (s *scheduler) checkConflictsTool() tool.Tool {
	return tool.NewFunctionTool(
		"check_conflicts",
		"Check whether a time interval overlaps existing events, without changing anything.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"start":            timeProp("Interval start"),
				"end":              timeProp("Interval end"),
				"exclude_event_id": map[string]any{"type": "string", "description": "Event to ignore, e.g. the one being moved"},
			},
			"required": []string{"start", "end"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			start, err := tool.TimeArg(args, "start")
			if err != nil {
				return nil, tool.NewToolError("check_conflicts", err.Error(), tool.CodeValidation)
			}
			end, err := tool.TimeArg(args, "end")
			if err != nil {
				return nil, tool.NewToolError("check_conflicts", err.Error(), tool.CodeValidation)
			}
			conflicts, err := schedule.Detect(ctx, s.store, schedule.NewInterval(start, end), tool.StringArg(args, "exclude_event_id", ""))
			if err != nil {
				return nil, err
			}
			return map[string]any{"conflict_count": len(conflicts), "conflicts": conflicts}, nil
		},
	).WithLogger(s.opts.Logger)
}

// mutationEnvelope renders a mutation payload and lifts its conflicts into
// envelope findings so they survive aggregation across the agent boundary.
func mutationEnvelope(payload eventPayload) (any, error) {
	body, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	env := dispatch.Success(body)
	for _, c := range payload.Conflicts {
		env.Findings = append(env.Findings, c)
	}
	return env, nil
}

func notFoundOr(err error, toolName, id string) error {
	if errors.Is(err, calendar.ErrNotFound) {
		return tool.NewToolError(toolName, fmt.Sprintf("event %q not found", id), tool.CodeNotFound)
	}
	return err
}
