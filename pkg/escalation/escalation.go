// Package escalation decides when an active stage is due for escalation.
//
// Only the scheduling decision lives here. Notifying the escalation target is left to
// whatever executes the published definitions.
package escalation

import (
	"math"
	"time"

	"github.com/dukex/stageflow/pkg/models"
)

// State of an escalation decision.
type State string

const (
	StateUnscheduled State = "unscheduled" // Protocol incomplete, escalation never fires
	StateWaiting     State = "waiting"
	StateDue         State = "due"
)

// Decision is the outcome of evaluating one stage's escalation protocol.
type Decision struct {
	StageID    string           `json:"stage_id"`
	State      State            `json:"state"`
	Deadline   *time.Time       `json:"deadline,omitempty"`
	EscalateTo *models.ActorRef `json:"escalate_to,omitempty"`
}

// Due reports whether the stage should be escalated now.
func (d Decision) Due() bool {
	return d.State == StateDue
}

// Deadline returns when a stage activated at activatedAt escalates, or false if the
// protocol is incomplete.
func Deadline(protocol models.EscalationProtocol, activatedAt time.Time) (time.Time, bool) {
	if !protocol.Complete() {
		return time.Time{}, false
	}

	timeout := time.Duration(math.MaxInt64)
	if protocol.TimeoutMinutes < int(timeout/time.Minute) {
		timeout = time.Duration(protocol.TimeoutMinutes) * time.Minute
	}

	return activatedAt.Add(timeout), true
}

// Decide evaluates the stage's protocol at now. A stage is due once now reaches the
// deadline.
func Decide(stage models.Stage, activatedAt, now time.Time) Decision {
	decision := Decision{StageID: stage.ID, State: StateUnscheduled}

	deadline, ok := Deadline(stage.Escalation, activatedAt)
	if !ok {
		return decision
	}

	decision.Deadline = &deadline

	if now.Before(deadline) {
		decision.State = StateWaiting

		return decision
	}

	target := *stage.Escalation.EscalateTo
	decision.State = StateDue
	decision.EscalateTo = &target

	return decision
}

// Plan computes the deadline of every stage as if each were activated at activatedAt.
// Decisions are in stage order and never due.
func Plan(definition *models.Definition, activatedAt time.Time) []Decision {
	if definition == nil {
		return []Decision{}
	}

	decisions := make([]Decision, 0, len(definition.Stages))

	for _, stage := range definition.Stages {
		decision := Decide(stage, activatedAt, activatedAt)
		if decision.State == StateWaiting {
			target := *stage.Escalation.EscalateTo
			decision.EscalateTo = &target
		}

		decisions = append(decisions, decision)
	}

	return decisions
}
