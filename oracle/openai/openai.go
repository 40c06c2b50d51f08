// Package openai provides an oracle.Oracle implementation backed by the
// OpenAI Chat Completions API with function/tool calling. It adapts tempo's
// normalized Request/Decision structures into the SDK's message format and
// back.
package openai

import (
	"context"
	"fmt"

	openaisdk "github.com/openai/openai-go"

	"github.com/tempoai/tempo/oracle"
)

// Options configure the OpenAI oracle adapter. Fields mirror a subset of
// Chat Completion parameters intentionally kept minimal; extend via
// functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Oracle wraps the OpenAI Chat Completions API behind the oracle.Oracle interface.
type Oracle struct {
	client *openaisdk.Client
	opts   Options
}

var _ oracle.Oracle = (*Oracle)(nil)

// New creates a new OpenAI oracle using the official client, configured from
// the environment (OPENAI_API_KEY).
func New(optFns ...func(o *Options)) *Oracle {
	client := openaisdk.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a new OpenAI oracle from an existing client.
func NewFromClient(client *openaisdk.Client, optFns ...func(o *Options)) *Oracle {
	opts := Options{
		Model:               openaisdk.ChatModelGPT4oMini,
		Temperature:         0.1,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Oracle{client: client, opts: opts}
}

// Decide performs a single non-streaming completion and maps the first choice
// onto a Decision. When the model emits tool calls the first one becomes the
// invocation; any accompanying text is preserved as Content.
func (o *Oracle) Decide(ctx context.Context, req oracle.Request) (*oracle.Decision, error) {
	params := o.buildParams(req)

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: no choices returned")
	}

	ch0 := resp.Choices[0]
	decision := &oracle.Decision{Content: ch0.Message.Content}
	if len(ch0.Message.ToolCalls) > 0 {
		tc := ch0.Message.ToolCalls[0]
		inv := &oracle.Invocation{
			ID:      tc.ID,
			Name:    tc.Function.Name,
			RawArgs: tc.Function.Arguments,
		}
		if err := inv.DecodeArgs(); err != nil {
			return nil, err
		}
		decision.Invocation = inv
	}
	return decision, nil
}

// buildParams assembles the request parameters including tool definitions.
func (o *Oracle) buildParams(req oracle.Request) openaisdk.ChatCompletionNewParams {
	params := openaisdk.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               o.opts.Model,
		Temperature:         openaisdk.Float(o.opts.Temperature),
		MaxCompletionTokens: openaisdk.Int(o.opts.MaxCompletionTokens),
	}
	if len(req.Tools) == 0 {
		return params
	}
	tools := make([]openaisdk.ChatCompletionToolParam, len(req.Tools))
	for i, tdef := range req.Tools {
		tools[i] = openaisdk.ChatCompletionToolParam{
			Type: "function",
			Function: openaisdk.FunctionDefinitionParam{
				Name:        tdef.Name,
				Description: openaisdk.String(tdef.Description),
				Parameters:  tdef.Parameters,
			},
		}
	}
	params.Tools = tools
	return params
}

// buildMessages converts the normalized history into OpenAI chat messages,
// attaching each tool observation immediately after the assistant tool call
// it answers.
func buildMessages(req oracle.Request) []openaisdk.ChatCompletionMessageParamUnion {
	var messages []openaisdk.ChatCompletionMessageParamUnion
	if req.Instructions != "" {
		messages = append(messages, openaisdk.SystemMessage(req.Instructions))
	}
	for _, m := range req.History {
		switch m.Role {
		case oracle.RoleSystem:
			messages = append(messages, openaisdk.SystemMessage(m.Content))
		case oracle.RoleUser:
			messages = append(messages, openaisdk.UserMessage(m.Content))
		case oracle.RoleAssistant:
			if m.Call == nil {
				messages = append(messages, openaisdk.AssistantMessage(m.Content))
				continue
			}
			messages = append(messages, openaisdk.ChatCompletionMessageParamUnion{
				OfAssistant: &openaisdk.ChatCompletionAssistantMessageParam{
					Role: "assistant",
					ToolCalls: []openaisdk.ChatCompletionMessageToolCallParam{{
						ID:   m.Call.ID,
						Type: "function",
						Function: openaisdk.ChatCompletionMessageToolCallFunctionParam{
							Name:      m.Call.Name,
							Arguments: m.Call.EncodeArgs(),
						},
					}},
				},
			})
		case oracle.RoleTool:
			messages = append(messages, openaisdk.ToolMessage(m.Content, m.CallID))
		default:
			if m.Content != "" {
				messages = append(messages, openaisdk.UserMessage(m.Content))
			}
		}
	}
	return messages
}

// Info returns metadata describing this OpenAI oracle implementation.
func (o *Oracle) Info() oracle.Info {
	return oracle.Info{Name: o.opts.Model, Provider: "openai", SupportsTools: true}
}
