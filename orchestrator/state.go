package orchestrator

import (
	"strings"

	"github.com/tempoai/tempo/oracle"
)

// Phase names the orchestration states. One user request walks
// Reasoning→Action→Observation cycles until Finish.
type Phase string

const (
	PhaseReasoning   Phase = "reasoning"
	PhaseAction      Phase = "action"
	PhaseObservation Phase = "observation"
	PhaseReflection  Phase = "reflection"
	PhaseFinish      Phase = "finish"
)

// State is the per-request orchestration state: the role-tagged history, the
// bounded reflection counter and the termination flag. It is created for one
// request and discarded with it; nothing here survives across requests.
type State struct {
	History     []oracle.Message
	Phase       Phase
	Reflections int
	Done        bool

	// Findings accumulates structured verdicts (detected conflicts,
	// preference mismatches) lifted off observation envelopes.
	Findings []any

	maxHistory int
}

func newState(input string, maxHistory int) *State {
	return &State{
		History:    []oracle.Message{{Role: oracle.RoleUser, Content: input}},
		Phase:      PhaseReasoning,
		maxHistory: maxHistory,
	}
}

// Append adds messages and re-applies the history bound.
func (s *State) Append(msgs ...oracle.Message) {
	s.History = append(s.History, msgs...)
	s.truncate()
}

// truncate drops the oldest messages beyond the bound. The opening user
// message is always kept, and an assistant message carrying an invocation is
// dropped together with its paired observation so providers never see an
// orphaned tool result.
func (s *State) truncate() {
	if s.maxHistory <= 0 || len(s.History) <= s.maxHistory {
		return
	}
	for len(s.History) > s.maxHistory && len(s.History) > 1 {
		drop := 1 // index 0 is the opening user message
		if s.History[drop].Call != nil && drop+1 < len(s.History) && s.History[drop+1].Role == oracle.RoleTool {
			s.History = append(s.History[:drop], s.History[drop+2:]...)
			continue
		}
		s.History = append(s.History[:drop], s.History[drop+1:]...)
	}
}

// reflectionTriggers is the default locale-configurable problem vocabulary
// scanned in direct answers.
var reflectionTriggers = []string{"conflict", "problem", "adjust", "redo", "overlap"}

// triggered reports whether content names a problem worth reflecting on.
// The structured NeedsReflection signal is checked by the loop before this
// keyword fallback.
func triggered(content string, terms []string) bool {
	lower := strings.ToLower(content)
	for _, term := range terms {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
