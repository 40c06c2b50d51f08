// Package dispatch implements the agent communication contract: a single
// request/response envelope shape used uniformly for every sub-agent call and
// every local tool call, a name-keyed handler registry, and a synchronous
// caller that converts timeouts and panics into transport errors the
// orchestrator can retry.
package dispatch

import (
	"encoding/json"
	"fmt"
)

// Status tags an envelope as a successful or failed call.
type Status string

const (
	// StatusSuccess marks an envelope carrying a result payload.
	StatusSuccess Status = "success"
	// StatusError marks an envelope carrying an error description.
	StatusError Status = "error"
)

// Request is the uniform input of a dispatched call: free-form instruction
// text for sub-agents, a structured argument object for direct tools. Both
// fields may be set; handlers read what they need.
type Request struct {
	Instruction string         `json:"instruction,omitempty"`
	Args        map[string]any `json:"args,omitempty"`
}

// Envelope is the uniform response of a dispatched call. Exactly one of
// Response or Error is meaningful, selected by Status. Findings carries
// structured, non-fatal verdicts (e.g. detected conflicts) attached to an
// otherwise successful call.
type Envelope struct {
	Status   Status `json:"status"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
	Findings []any  `json:"findings,omitempty"`
}

// Success builds a success envelope with the given payload.
func Success(response string) Envelope {
	return Envelope{Status: StatusSuccess, Response: response}
}

// Error builds an error envelope with the given description.
func Error(description string) Envelope {
	return Envelope{Status: StatusError, Error: description}
}

// Errorf builds an error envelope from a format string.
func Errorf(format string, args ...any) Envelope {
	return Error(fmt.Sprintf(format, args...))
}

// IsError reports whether the envelope carries an error status.
func (e Envelope) IsError() bool { return e.Status == StatusError }

// JSON renders the envelope as its canonical JSON observation form.
func (e Envelope) JSON() string {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"status":"error","error":%q}`, err.Error())
	}
	return string(b)
}
