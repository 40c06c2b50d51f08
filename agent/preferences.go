package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/tempoai/tempo/logging"
	"github.com/tempoai/tempo/preference"
	"github.com/tempoai/tempo/tool"
)

// PreferenceTools builds the orchestrator-local preference capabilities for
// one user: read, upsert, similarity search and removal. These stay local
// rather than behind a sub-agent because they are single store calls with no
// reasoning of their own.
func PreferenceTools(store preference.Store, userID string, logger logging.Logger) []tool.Tool {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	p := prefTools{store: store, userID: userID}
	return []tool.Tool{
		tool.NewFunctionTool(
			"get_preferences",
			"Read the user's stored scheduling preferences, all of them or one by key.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key": map[string]any{"type": "string", "description": "Preference key, omit for all"},
				},
			},
			p.get,
		).WithLogger(logger),
		tool.NewFunctionTool(
			"store_preference",
			"Store or update one scheduling preference. An existing key is updated in place.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key":         map[string]any{"type": "string", "description": "Short topic label, e.g. focus_time"},
					"description": map[string]any{"type": "string", "description": "What the user said, in their words"},
					"value":       map[string]any{"type": "string", "description": "Normalized value"},
					"weight":      map[string]any{"type": "number", "description": "Importance in [0,1], default 0.5"},
				},
				"required": []string{"key", "description"},
			},
			p.put,
		).WithLogger(logger),
		tool.NewFunctionTool(
			"search_preferences",
			"Find the stored preferences most similar to a query, ranked by meaning.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
					"limit": map[string]any{"type": "integer", "description": "Max results, default 5"},
				},
				"required": []string{"query"},
			},
			p.search,
		).WithLogger(logger),
		tool.NewFunctionTool(
			"delete_preference",
			"Remove one stored preference by key, e.g. when the user no longer wants it considered.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key": map[string]any{"type": "string", "description": "Key of the preference to remove"},
				},
				"required": []string{"key"},
			},
			p.delete,
		).WithLogger(logger),
	}
}

type prefTools struct {
	store  preference.Store
	userID string
}

func (p prefTools) get(ctx context.Context, args map[string]any) (any, error) {
	key := tool.StringArg(args, "key", "")
	prefs, err := p.store.Get(ctx, p.userID, key)
	if errors.Is(err, preference.ErrNotFound) {
		return nil, tool.NewToolError("get_preferences", fmt.Sprintf("no preference with key %q", key), tool.CodeNotFound)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": len(prefs), "preferences": prefs}, nil
}

func (p prefTools) put(ctx context.Context, args map[string]any) (any, error) {
	stored, err := p.store.Put(ctx,
		p.userID,
		tool.StringArg(args, "key", ""),
		tool.StringArg(args, "description", ""),
		tool.StringArg(args, "value", ""),
		tool.FloatArg(args, "weight", 0.5),
	)
	if err != nil {
		return nil, tool.NewToolError("store_preference", err.Error(), tool.CodeValidation)
	}
	return stored, nil
}

func (p prefTools) search(ctx context.Context, args map[string]any) (any, error) {
	matches, err := p.store.Similar(ctx,
		p.userID,
		tool.StringArg(args, "query", ""),
		tool.IntArg(args, "limit", 5),
	)
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": len(matches), "matches": matches}, nil
}

func (p prefTools) delete(ctx context.Context, args map[string]any) (any, error) {
	key := tool.StringArg(args, "key", "")
	err := p.store.Delete(ctx, p.userID, key)
	if errors.Is(err, preference.ErrNotFound) {
		return nil, tool.NewToolError("delete_preference", fmt.Sprintf("no preference with key %q", key), tool.CodeNotFound)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"deleted": key}, nil
}
