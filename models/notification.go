package models

import "time"

const (
	NotificationTypeAssignment = "assignment"
	NotificationTypeReview     = "review"
	NotificationTypeCommunity  = "community"
	NotificationTypeEvent      = "event"
)

type Notification struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Title     string    `gorm:"size:150;not null" json:"title"`
	Message   string    `gorm:"type:text" json:"message"`
	Type      string    `gorm:"type:enum('assignment','review','community','event');default:'assignment'" json:"type"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
