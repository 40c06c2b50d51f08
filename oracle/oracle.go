// Package oracle defines the decision oracle contract: the pluggable component
// that, given the conversational history of one request, proposes either the
// next tool or sub-agent invocation or a final answer. The orchestrator treats
// implementations as black boxes, which keeps the state machine deterministic
// under test (see Scripted).
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
)

// Roles used in Message. Providers map them onto their native message kinds.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one role-tagged entry of the orchestration history.
//
// Assistant messages that requested an invocation carry it in Call; the
// matching observation is a RoleTool message with the same CallID. Providers
// rely on that pairing to rebuild their native tool-call threading.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`

	// Call is set on assistant messages that requested an invocation.
	Call *Invocation `json:"call,omitempty"`

	// CallID and CallName are set on tool messages carrying the observation
	// for a previously requested invocation.
	CallID   string `json:"call_id,omitempty"`
	CallName string `json:"call_name,omitempty"`
}

// Invocation names a registered tool or sub-agent together with its arguments.
type Invocation struct {
	// ID correlates the invocation with its observation message.
	ID string `json:"id"`
	// Name must match a handler in the dispatch registry.
	Name string `json:"name"`
	// Args holds the decoded structured arguments.
	Args map[string]any `json:"args,omitempty"`
	// RawArgs preserves the provider's original JSON argument string.
	RawArgs string `json:"raw_args,omitempty"`
}

// DecodeArgs populates Args from RawArgs when a provider only supplied the
// JSON form. An empty RawArgs yields empty Args, not an error.
func (inv *Invocation) DecodeArgs() error {
	if inv.Args != nil || inv.RawArgs == "" {
		return nil
	}
	inv.Args = map[string]any{}
	if err := json.Unmarshal([]byte(inv.RawArgs), &inv.Args); err != nil {
		return fmt.Errorf("decode invocation args for %q: %w", inv.Name, err)
	}
	return nil
}

// EncodeArgs returns the JSON form of Args, preferring the preserved RawArgs
// when present. Used by providers that need the argument string back.
func (inv *Invocation) EncodeArgs() string {
	if inv.RawArgs != "" {
		return inv.RawArgs
	}
	if len(inv.Args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(inv.Args)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ToolDefinition declaratively exposes a callable tool or sub-agent to the
// oracle. Parameters is a JSON Schema object (minimal subset).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized oracle input produced by the loops.
type Request struct {
	// Instructions is the system prompt for this deciding party.
	Instructions string `json:"instructions"`
	// History is the full role-tagged message history, oldest first.
	History []Message `json:"history"`
	// Tools lists the invocations the oracle may propose.
	Tools []ToolDefinition `json:"tools,omitempty"`
}

// Decision is the oracle's verdict: an invocation to execute next, or a
// direct answer when Invocation is nil.
type Decision struct {
	// Content holds the assistant text accompanying the decision. For a
	// direct answer this is the answer itself.
	Content string `json:"content"`
	// Invocation, when non-nil, requests execution of a named tool/sub-agent.
	Invocation *Invocation `json:"invocation,omitempty"`
	// NeedsReflection is a structured problem signal. When set, the
	// orchestrator applies its reflection policy without scanning Content
	// for trigger terms.
	NeedsReflection bool `json:"needs_reflection,omitempty"`
}

// Info contains metadata about an oracle implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "scripted", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Oracle is the decision strategy consumed by the orchestrator and the
// sub-agents. Decide blocks until a decision is available or ctx expires;
// implementations must not retain req.History.
type Oracle interface {
	Decide(ctx context.Context, req Request) (*Decision, error)
	Info() Info
}
