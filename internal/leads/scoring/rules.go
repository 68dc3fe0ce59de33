// Package scoring derives a heuristic risk score and a call brief for a
// lead from its booking timeline, contact notes, and field completeness.
package scoring

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	maxScore          = 100
	rapidChangeWindow = 24 * time.Hour
)

// TimelineEntry is the slice of a timeline event the scorer cares about.
type TimelineEntry struct {
	EventType  string
	OccurredAt time.Time
}

// Input is everything the rules evaluate. It is assembled by the service
// so the rules themselves stay pure and enumerable in tests.
type Input struct {
	Events    []TimelineEntry
	NoteCount int
	HasPhone  bool
	Source    string
}

func (in Input) countEvents(eventType string) int {
	n := 0
	for _, e := range in.Events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

func (in Input) hasEvent(eventType string) bool {
	return in.countEvents(eventType) > 0
}

// hasRapidChanges reports whether any two consecutive events, sorted
// chronologically, occurred less than 24 hours apart.
func (in Input) hasRapidChanges() bool {
	if len(in.Events) < 2 {
		return false
	}
	sorted := make([]TimelineEntry, len(in.Events))
	copy(sorted, in.Events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OccurredAt.Before(sorted[j].OccurredAt) })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].OccurredAt.Sub(sorted[i-1].OccurredAt) < rapidChangeWindow {
			return true
		}
	}
	return false
}

// riskRules is the additive rule table. Each rule returns its full
// contribution so the table reads like the policy it implements.
var riskRules = []struct {
	name   string
	weight func(in Input) int
}{
	{
		name: "reschedules",
		weight: func(in Input) int {
			return 25 * in.countEvents("booking.rescheduled")
		},
	},
	{
		name: "cancellation",
		weight: func(in Input) int {
			if in.hasEvent("booking.cancelled") {
				return 40
			}
			return 0
		},
	},
	{
		name: "unreachable",
		weight: func(in Input) int {
			if in.hasEvent("booking.created") && in.NoteCount == 0 && !in.HasPhone {
				return 15
			}
			return 0
		},
	},
	{
		name: "rapid_changes",
		weight: func(in Input) int {
			if in.hasRapidChanges() {
				return 10
			}
			return 0
		},
	},
}

// Score runs the rule table and clamps the sum to [0,100].
func Score(in Input) int {
	total := 0
	for _, rule := range riskRules {
		total += rule.weight(in)
	}
	if total < 0 {
		return 0
	}
	if total > maxScore {
		return maxScore
	}
	return total
}

// priorityLines maps score thresholds to the closing line of the brief,
// checked highest first.
var priorityLines = []struct {
	threshold int
	line      string
}{
	{70, "High risk: call as soon as possible."},
	{40, "Medium risk: follow up within one business day."},
	{20, "Low risk: Minor issues to clarify on the next call."},
	{0, "Low risk: No major concerns."},
}

func priorityLine(score int) string {
	for _, p := range priorityLines {
		if score >= p.threshold {
			return p.line
		}
	}
	return priorityLines[len(priorityLines)-1].line
}

// BuildSummary renders the call brief: up to three "what happened"
// bullets, up to three "what to say" bullets, and a priority line.
func BuildSummary(in Input, score int) string {
	happened := happenedBullets(in)
	say := sayBullets(in)

	var b strings.Builder
	b.WriteString("What happened:\n")
	for _, line := range happened {
		b.WriteString("- " + line + "\n")
	}
	b.WriteString("\nWhat to say:\n")
	for _, line := range say {
		b.WriteString("- " + line + "\n")
	}
	b.WriteString("\nPriority: " + priorityLine(score))
	return b.String()
}

func happenedBullets(in Input) []string {
	if len(in.Events) == 0 {
		return []string{"No booking events recorded"}
	}

	bullets := make([]string, 0, 3)
	for _, e := range in.Events {
		if e.EventType == "booking.created" {
			bullets = append(bullets, "Booking created on "+e.OccurredAt.Format("2 Jan 2006"))
			break
		}
	}
	if n := in.countEvents("booking.rescheduled"); n > 0 {
		bullets = append(bullets, fmt.Sprintf("Rescheduled %d time(s)", n))
	}
	if in.hasEvent("booking.cancelled") {
		bullets = append(bullets, "Appointment was cancelled")
	}
	if len(bullets) < 3 {
		if in.NoteCount > 0 {
			bullets = append(bullets, fmt.Sprintf("%d contact note(s) on file", in.NoteCount))
		} else if in.Source != "" {
			bullets = append(bullets, "Lead came in via "+in.Source)
		}
	}
	if len(bullets) > 3 {
		bullets = bullets[:3]
	}
	return bullets
}

func sayBullets(in Input) []string {
	bullets := make([]string, 0, 3)
	switch {
	case in.hasEvent("booking.cancelled"):
		bullets = append(bullets, "Ask what led to the cancellation and offer to rebook")
	case in.hasEvent("booking.rescheduled"):
		bullets = append(bullets, "Confirm the current appointment slot still works")
	default:
		bullets = append(bullets, "Confirm the appointment details")
	}
	if !in.HasPhone {
		bullets = append(bullets, "Ask for a phone number to reach them on")
	}
	if in.NoteCount == 0 {
		bullets = append(bullets, "Log the outcome of this call as a note")
	}
	if len(bullets) > 3 {
		bullets = bullets[:3]
	}
	return bullets
}
