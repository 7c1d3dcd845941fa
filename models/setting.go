package models

import "time"

// Setting is the single application settings row checked by auth handlers.
type Setting struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:100;default:'Loomio'" json:"name"`
	ClosedRegister bool      `gorm:"not null;default:false" json:"closed_register"`
	Maintenance    bool      `gorm:"not null;default:false" json:"maintenance"`
	SupportEmail   string    `gorm:"size:150" json:"support_email"`
	UpdatedAt      time.Time `json:"-"`
}

func (Setting) TableName() string {
	return "settings"
}
