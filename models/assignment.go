package models

import (
	"errors"
	"time"
)

// Assignment workflow statuses. The only legal mutations are the ones listed
// in assignmentTransitions; every handler that touches an assignment status
// must go through CanTransition.
const (
	AssignmentStatusAssigned   = "assigned"
	AssignmentStatusAccepted   = "accepted"
	AssignmentStatusInProgress = "in_progress"
	AssignmentStatusSubmitted  = "submitted"
	AssignmentStatusCompleted  = "completed"
	AssignmentStatusCancelled  = "cancelled"
)

var (
	ErrInvalidTransition = errors.New("assignment is not in a valid state for this action")
	ErrCapacityExceeded  = errors.New("task has reached its maximum number of assignees")
	ErrDeadlinePassed    = errors.New("task deadline has passed")
	ErrAlreadyAssigned   = errors.New("user is already assigned to this task")
	ErrNotAssigned       = errors.New("user has no assignment on this task")
)

// assignmentTransitions maps a status to the statuses reachable from it.
// A rejected submission moves back to in_progress, so there is no separate
// "rejected" row; completed and cancelled are terminal.
var assignmentTransitions = map[string][]string{
	AssignmentStatusAssigned:   {AssignmentStatusAccepted, AssignmentStatusCancelled},
	AssignmentStatusAccepted:   {AssignmentStatusInProgress, AssignmentStatusSubmitted, AssignmentStatusCancelled},
	AssignmentStatusInProgress: {AssignmentStatusSubmitted, AssignmentStatusCancelled},
	AssignmentStatusSubmitted:  {AssignmentStatusCompleted, AssignmentStatusInProgress},
	AssignmentStatusCompleted:  {},
	AssignmentStatusCancelled:  {},
}

// CanTransition reports whether moving an assignment from one status to
// another is allowed by the workflow.
func CanTransition(from, to string) bool {
	for _, next := range assignmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ActiveAssignmentStatuses are the statuses that occupy a capacity slot on a
// task. Cancelled assignments free their slot.
func ActiveAssignmentStatuses() []string {
	return []string{
		AssignmentStatusAssigned,
		AssignmentStatusAccepted,
		AssignmentStatusInProgress,
		AssignmentStatusSubmitted,
		AssignmentStatusCompleted,
	}
}

type TaskAssignment struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	TaskID          uint       `gorm:"not null;uniqueIndex:idx_task_user" json:"task_id"`
	UserID          uint       `gorm:"not null;uniqueIndex:idx_task_user" json:"user_id"`
	Status          string     `gorm:"type:enum('assigned','accepted','in_progress','submitted','completed','cancelled');default:'assigned'" json:"status"`
	SubmissionLink  *string    `gorm:"size:500" json:"submission_link"`
	SubmissionNotes *string    `gorm:"type:text" json:"submission_notes"`
	SubmittedAt     *time.Time `json:"submitted_at"`
	ReviewNotes     *string    `gorm:"type:text" json:"review_notes"`
	ReviewedAt      *time.Time `json:"reviewed_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	PointsAwarded   bool       `gorm:"not null;default:false" json:"points_awarded"`
	CreatedAt       time.Time  `json:"assigned_at"`
	UpdatedAt       time.Time  `json:"-"`
}

func (TaskAssignment) TableName() string {
	return "task_assignments"
}

// Active reports whether the assignment still occupies a capacity slot.
func (a *TaskAssignment) Active() bool {
	return a.Status != AssignmentStatusCancelled
}
