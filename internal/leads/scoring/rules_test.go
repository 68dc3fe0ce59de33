package scoring

import (
	"strings"
	"testing"
	"time"
)

func at(day int, hour int) time.Time {
	return time.Date(2026, 3, day, hour, 0, 0, 0, time.UTC)
}

func TestScoreEmptyTimeline(t *testing.T) {
	in := Input{HasPhone: true, NoteCount: 1}
	if got := Score(in); got != 0 {
		t.Fatalf("empty timeline score = %d, want 0", got)
	}
	summary := BuildSummary(in, 0)
	if !strings.Contains(summary, "No booking events recorded") {
		t.Fatalf("summary missing empty-timeline bullet: %q", summary)
	}
	if !strings.Contains(summary, "Low risk: No major concerns.") {
		t.Fatalf("summary missing low-risk priority line: %q", summary)
	}
}

func TestScoreReschedulesAreUncapped(t *testing.T) {
	in := Input{
		HasPhone:  true,
		NoteCount: 1,
		Events: []TimelineEntry{
			{EventType: "booking.rescheduled", OccurredAt: at(1, 10)},
			{EventType: "booking.rescheduled", OccurredAt: at(3, 10)},
			{EventType: "booking.rescheduled", OccurredAt: at(5, 10)},
		},
	}
	if got := Score(in); got != 75 {
		t.Fatalf("three reschedules score = %d, want 75", got)
	}
}

func TestScoreCancellationIsFlat(t *testing.T) {
	in := Input{
		HasPhone:  true,
		NoteCount: 1,
		Events: []TimelineEntry{
			{EventType: "booking.cancelled", OccurredAt: at(1, 10)},
			{EventType: "booking.cancelled", OccurredAt: at(3, 10)},
		},
	}
	// two cancellations still count once, plus no rapid-change pair
	if got := Score(in); got != 40 {
		t.Fatalf("cancellation score = %d, want 40", got)
	}
}

func TestScoreUnreachableLead(t *testing.T) {
	in := Input{
		HasPhone:  false,
		NoteCount: 0,
		Events:    []TimelineEntry{{EventType: "booking.created", OccurredAt: at(1, 10)}},
	}
	if got := Score(in); got != 15 {
		t.Fatalf("unreachable score = %d, want 15", got)
	}

	in.HasPhone = true
	if got := Score(in); got != 0 {
		t.Fatalf("reachable lead score = %d, want 0", got)
	}
}

func TestScoreRapidChangesCountOnce(t *testing.T) {
	in := Input{
		HasPhone:  true,
		NoteCount: 1,
		Events: []TimelineEntry{
			// unsorted on purpose; the rule sorts before pairing
			{EventType: "booking.created", OccurredAt: at(2, 12)},
			{EventType: "booking.rescheduled", OccurredAt: at(2, 9)},
			{EventType: "booking.rescheduled", OccurredAt: at(2, 15)},
		},
	}
	// 2 reschedules (+50) and at least one sub-24h gap (+10, not +20)
	if got := Score(in); got != 60 {
		t.Fatalf("rapid-change score = %d, want 60", got)
	}
}

func TestScoreIsClamped(t *testing.T) {
	events := make([]TimelineEntry, 0, 6)
	for i := 0; i < 6; i++ {
		events = append(events, TimelineEntry{EventType: "booking.rescheduled", OccurredAt: at(i+1, 10)})
	}
	in := Input{HasPhone: true, NoteCount: 1, Events: events}
	if got := Score(in); got != 100 {
		t.Fatalf("score = %d, want clamp at 100", got)
	}
}

func TestHighRiskExample(t *testing.T) {
	in := Input{
		HasPhone:  true,
		NoteCount: 2,
		Events: []TimelineEntry{
			{EventType: "booking.rescheduled", OccurredAt: at(1, 10)},
			{EventType: "booking.rescheduled", OccurredAt: at(4, 10)},
			{EventType: "booking.cancelled", OccurredAt: at(8, 10)},
		},
	}
	score := Score(in)
	if score != 90 {
		t.Fatalf("score = %d, want 90", score)
	}
	summary := BuildSummary(in, score)
	if !strings.Contains(summary, "High risk") {
		t.Fatalf("expected high-risk priority line in %q", summary)
	}
	if !strings.Contains(summary, "Rescheduled 2 time(s)") {
		t.Fatalf("expected reschedule bullet in %q", summary)
	}
	if !strings.Contains(summary, "cancellation") {
		t.Fatalf("expected cancellation advice in %q", summary)
	}
}

func TestSummaryBulletCaps(t *testing.T) {
	in := Input{
		HasPhone:  false,
		NoteCount: 0,
		Events: []TimelineEntry{
			{EventType: "booking.created", OccurredAt: at(1, 10)},
			{EventType: "booking.rescheduled", OccurredAt: at(5, 10)},
			{EventType: "booking.cancelled", OccurredAt: at(9, 10)},
		},
	}
	summary := BuildSummary(in, Score(in))

	sections := strings.Split(summary, "\nWhat to say:\n")
	if len(sections) != 2 {
		t.Fatalf("unexpected summary layout: %q", summary)
	}
	if n := strings.Count(sections[0], "\n- "); n > 3 {
		t.Fatalf("what-happened bullets = %d, want at most 3", n)
	}
	if n := strings.Count(sections[1], "\n- "); n > 3 {
		t.Fatalf("what-to-say bullets = %d, want at most 3", n)
	}
}

func TestPriorityThresholds(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{95, "High risk"},
		{70, "High risk"},
		{55, "Medium risk"},
		{40, "Medium risk"},
		{25, "Minor issues"},
		{10, "No major concerns"},
		{0, "No major concerns"},
	}
	for _, tc := range tests {
		if got := priorityLine(tc.score); !strings.Contains(got, tc.want) {
			t.Fatalf("priorityLine(%d) = %q, want to contain %q", tc.score, got, tc.want)
		}
	}
}
