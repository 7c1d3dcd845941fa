package models

import "time"

const (
	TaskTypeIndividual = "individual"
	TaskTypeGroup      = "group"

	TaskStatusOpen      = "open"
	TaskStatusCompleted = "completed"

	// DefaultTaskPoints is credited to an assignee when their submission is
	// approved, unless the task overrides it.
	DefaultTaskPoints = 10
)

type Task struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Title        string     `gorm:"size:150;not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	Priority     string     `gorm:"type:enum('low','medium','high','urgent');default:'medium'" json:"priority"`
	TaskType     string     `gorm:"type:enum('individual','group');default:'individual'" json:"task_type"`
	MaxAssignees int        `gorm:"not null;default:1" json:"max_assignees"`
	Points       uint       `gorm:"not null;default:10" json:"points"`
	Deadline     *time.Time `json:"deadline"`
	Status       string     `gorm:"type:enum('open','completed');default:'open'" json:"status"`
	CommunityID  uint       `gorm:"not null;index" json:"community_id"`
	CreatorID    uint       `gorm:"not null" json:"creator_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Task) TableName() string {
	return "tasks"
}

// DeadlinePassed reports whether the task deadline is in the past. Tasks
// without a deadline never expire.
func (t *Task) DeadlinePassed(now time.Time) bool {
	return t.Deadline != nil && t.Deadline.Before(now)
}
