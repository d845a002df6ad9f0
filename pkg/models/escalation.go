package models

import (
	"errors"
	"math"
	"slices"
	"strconv"
	"strings"
)

// ErrInvalidPreset is returned when a timeout preset is not one of TimeoutPresets.
var ErrInvalidPreset = errors.New("invalid timeout preset")

// TimeoutPresets are the selectable escalation timeouts, in minutes.
var TimeoutPresets = []int{5, 10, 20, 30, 60}

// EscalationProtocol routes a stalled stage to a fallback actor after a timeout.
//
// The timeout comes either from a preset or from a custom HH:MM:SS entry. The two
// sources are mutually exclusive: whichever was written last wins and clears the other.
type EscalationProtocol struct {
	EscalateTo     *ActorRef `json:"escalate_to"`
	TimeoutMinutes int       `json:"timeout_minutes"`
	Preset         int       `json:"preset,omitempty"`
	Custom         string    `json:"custom,omitempty"`
}

// SetEscalateTo sets the actor issues are escalated to.
func (p *EscalationProtocol) SetEscalateTo(actor ActorRef) {
	p.EscalateTo = &actor
}

// SetTimeoutFromPreset selects one of TimeoutPresets and clears any custom entry.
func (p *EscalationProtocol) SetTimeoutFromPreset(minutes int) error {
	if !slices.Contains(TimeoutPresets, minutes) {
		return ErrInvalidPreset
	}

	p.Preset = minutes
	p.Custom = ""
	p.TimeoutMinutes = minutes

	return nil
}

// SetTimeoutFromCustom stores a free-form H:M:S entry and clears any preset.
// An entry that parses to zero minutes leaves the timeout unset.
func (p *EscalationProtocol) SetTimeoutFromCustom(value string) {
	p.Preset = 0
	p.Custom = value
	p.TimeoutMinutes = ParseCustomTimeout(value)
}

// Clear resets the protocol to its zero value.
func (p *EscalationProtocol) Clear() {
	*p = EscalationProtocol{}
}

// Complete reports whether both an escalation target and a positive timeout are set.
func (p EscalationProtocol) Complete() bool {
	return p.EscalateTo != nil && p.TimeoutMinutes > 0
}

// Clone returns a copy that shares no pointers with p.
func (p EscalationProtocol) Clone() EscalationProtocol {
	if p.EscalateTo != nil {
		target := *p.EscalateTo
		p.EscalateTo = &target
	}

	return p
}

// Normalize re-derives TimeoutMinutes from the recorded timeout source of a loaded
// protocol. A valid preset takes precedence over a custom entry. Without either, an
// unknown preset is dropped and a negative timeout is unset.
func (p *EscalationProtocol) Normalize() {
	switch {
	case slices.Contains(TimeoutPresets, p.Preset):
		_ = p.SetTimeoutFromPreset(p.Preset)
	case p.Custom != "":
		p.SetTimeoutFromCustom(p.Custom)
	default:
		p.Preset = 0
		p.TimeoutMinutes = max(p.TimeoutMinutes, 0)
	}
}

// ParseCustomTimeout converts "H:M:S" into whole minutes, flooring any seconds.
// Missing or malformed parts count as zero, so "1:05:30" is 65 and "00:00:10" is 0.
// An entry too large to represent is unset (0).
func ParseCustomTimeout(value string) int {
	parts := strings.Split(strings.TrimSpace(value), ":")

	var fields [3]int

	for i := 0; i < len(fields) && i < len(parts); i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || n < 0 {
			continue
		}

		fields[i] = n
	}

	hours, minutes, seconds := fields[0], fields[1], fields[2]

	total := seconds / 60
	if minutes > math.MaxInt-total {
		return 0
	}

	total += minutes
	if hours > (math.MaxInt-total)/60 {
		return 0
	}

	return total + hours*60
}
