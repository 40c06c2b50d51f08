// Package anthropic provides an oracle.Oracle implementation backed by the
// Anthropic Messages API with tool use.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/tempoai/tempo/oracle"
)

// Options configure the Anthropic oracle adapter (model id, temperature, max
// tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropicsdk.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Oracle wraps the Anthropic Messages API behind the oracle.Oracle interface.
type Oracle struct {
	client *anthropicsdk.Client
	opts   Options
}

var _ oracle.Oracle = (*Oracle)(nil)

// New creates a new Anthropic oracle using the official client.
func New(optFns ...func(o *Options)) *Oracle {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropicsdk.NewClient(clientOpts...)

	return &Oracle{client: &client, opts: opts}
}

// NewFromClient creates a new Anthropic oracle from an existing client.
func NewFromClient(client *anthropicsdk.Client, optFns ...func(o *Options)) *Oracle {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Oracle{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropicsdk.ModelClaude3_5Sonnet20241022,
		Temperature: 0.1,
		MaxTokens:   4096,
	}
}

// Decide performs a single Messages call and maps the response blocks onto a
// Decision: text blocks form Content, the first tool_use block becomes the
// invocation.
func (o *Oracle) Decide(ctx context.Context, req oracle.Request) (*oracle.Decision, error) {
	params := anthropicsdk.MessageNewParams{
		Model:       o.opts.Model,
		Messages:    buildMessages(req.History),
		MaxTokens:   o.opts.MaxTokens,
		Temperature: anthropicsdk.Float(o.opts.Temperature),
	}
	if req.Instructions != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.Instructions}}
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	resp, err := o.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	decision := &oracle.Decision{}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			decision.Content += block.AsText().Text
		case "tool_use":
			if decision.Invocation != nil {
				continue
			}
			tu := block.AsToolUse()
			inv := &oracle.Invocation{ID: tu.ID, Name: tu.Name}
			if tu.Input != nil {
				if b, err := json.Marshal(tu.Input); err == nil {
					inv.RawArgs = string(b)
				}
			}
			if err := inv.DecodeArgs(); err != nil {
				return nil, err
			}
			decision.Invocation = inv
		}
	}
	return decision, nil
}

// buildMessages converts the normalized history to the Anthropic message
// format. Tool observations become tool_result blocks inside a user message
// immediately following the assistant tool_use that requested them.
func buildMessages(history []oracle.Message) []anthropicsdk.MessageParam {
	var messages []anthropicsdk.MessageParam
	for _, m := range history {
		switch m.Role {
		case oracle.RoleSystem:
			// System text is carried via params.System.
		case oracle.RoleUser:
			if m.Content != "" {
				messages = append(messages, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
			}
		case oracle.RoleAssistant:
			var content []anthropicsdk.ContentBlockParamUnion
			if m.Content != "" {
				content = append(content, anthropicsdk.NewTextBlock(m.Content))
			}
			if m.Call != nil {
				var input any
				if err := json.Unmarshal([]byte(m.Call.EncodeArgs()), &input); err != nil {
					input = m.Call.EncodeArgs()
				}
				content = append(content, anthropicsdk.NewToolUseBlock(m.Call.ID, input, m.Call.Name))
			}
			if len(content) > 0 {
				messages = append(messages, anthropicsdk.NewAssistantMessage(content...))
			}
		case oracle.RoleTool:
			messages = append(messages, anthropicsdk.NewUserMessage(
				anthropicsdk.NewToolResultBlock(m.CallID, m.Content, false),
			))
		default:
			if m.Content != "" {
				messages = append(messages, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
			}
		}
	}
	return messages
}

// buildTools converts tool definitions to the Anthropic tool format.
func buildTools(tools []oracle.ToolDefinition) []anthropicsdk.ToolUnionParam {
	out := make([]anthropicsdk.ToolUnionParam, len(tools))
	for i, t := range tools {
		inputSchema := anthropicsdk.ToolInputSchemaParam{Type: constant.Object("object")}
		if t.Parameters != nil {
			if properties, ok := t.Parameters["properties"]; ok {
				inputSchema.Properties = properties
			}
			if required, ok := t.Parameters["required"]; ok {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []any:
					for _, r := range req {
						if s, ok := r.(string); ok {
							inputSchema.Required = append(inputSchema.Required, s)
						}
					}
				}
			}
		}
		out[i] = anthropicsdk.ToolUnionParamOfTool(inputSchema, t.Name)
	}
	return out
}

// Info returns metadata describing this Anthropic oracle implementation.
func (o *Oracle) Info() oracle.Info {
	return oracle.Info{Name: string(o.opts.Model), Provider: "anthropic", SupportsTools: true}
}
