package models

import "time"

type Community struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:100;not null" json:"name"`
	Description   string    `gorm:"type:text" json:"description"`
	CommunityCode string    `gorm:"size:20;uniqueIndex;not null" json:"community_code"`
	CreatorID     uint      `gorm:"not null;index" json:"creator_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"-"`
}

func (Community) TableName() string {
	return "communities"
}

const (
	MembershipRoleMember = "member"
	MembershipRoleAdmin  = "admin"
)

// Membership links a user to a community. Community-level admin rights live
// here, not on the user row.
type Membership struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_member_community" json:"user_id"`
	CommunityID uint      `gorm:"not null;uniqueIndex:idx_member_community" json:"community_id"`
	Role        string    `gorm:"type:enum('member','admin');default:'member'" json:"role"`
	CreatedAt   time.Time `json:"joined_at"`
}

func (Membership) TableName() string {
	return "memberships"
}
