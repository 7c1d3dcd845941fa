package models

import "time"

const (
	RoleMember         = "member"
	RoleCommunityAdmin = "community_admin"
	RolePlatformAdmin  = "platform_admin"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FullName  string    `gorm:"size:100;not null" json:"full_name"`
	Email     string    `gorm:"size:150;uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      string    `gorm:"type:enum('member','community_admin','platform_admin');default:'member'" json:"role"`
	Points    uint      `gorm:"not null;default:0" json:"points"`
	Status    string    `gorm:"type:enum('Active','Inactive','Suspend');default:'Active'" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

func (User) TableName() string {
	return "users"
}
