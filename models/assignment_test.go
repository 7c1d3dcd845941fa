package models

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{AssignmentStatusAssigned, AssignmentStatusAccepted, true},
		{AssignmentStatusAssigned, AssignmentStatusCancelled, true},
		{AssignmentStatusAssigned, AssignmentStatusSubmitted, false},
		{AssignmentStatusAccepted, AssignmentStatusInProgress, true},
		{AssignmentStatusAccepted, AssignmentStatusSubmitted, true},
		{AssignmentStatusInProgress, AssignmentStatusSubmitted, true},
		{AssignmentStatusInProgress, AssignmentStatusAccepted, false},
		{AssignmentStatusSubmitted, AssignmentStatusCompleted, true},
		{AssignmentStatusSubmitted, AssignmentStatusInProgress, true},
		{AssignmentStatusSubmitted, AssignmentStatusCancelled, false},
		{AssignmentStatusCompleted, AssignmentStatusInProgress, false},
		{AssignmentStatusCompleted, AssignmentStatusCancelled, false},
		{AssignmentStatusCancelled, AssignmentStatusAssigned, false},
		{"bogus", AssignmentStatusAccepted, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestActive(t *testing.T) {
	for _, status := range ActiveAssignmentStatuses() {
		a := TaskAssignment{Status: status}
		if !a.Active() {
			t.Errorf("status %q should count against capacity", status)
		}
	}
	cancelled := TaskAssignment{Status: AssignmentStatusCancelled}
	if cancelled.Active() {
		t.Error("cancelled assignment should free its slot")
	}
}

func TestDeadlinePassed(t *testing.T) {
	now := time.Now()

	noDeadline := Task{}
	if noDeadline.DeadlinePassed(now) {
		t.Error("task without deadline can always be submitted")
	}

	future := now.Add(time.Hour)
	open := Task{Deadline: &future}
	if open.DeadlinePassed(now) {
		t.Error("future deadline should not block submission")
	}

	past := now.Add(-time.Minute)
	closed := Task{Deadline: &past}
	if !closed.DeadlinePassed(now) {
		t.Error("past deadline should block submission")
	}
}
