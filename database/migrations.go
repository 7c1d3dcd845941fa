package database

import (
	"gorm.io/gorm"

	"loomio/models"
)

// Migrate runs AutoMigrate for every Loomio entity inside a transaction so a
// failed migration does not leave the schema half-applied.
func Migrate(db *gorm.DB) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := tx.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Community{},
		&models.Membership{},
		&models.Task{},
		&models.TaskAssignment{},
		&models.Notification{},
		&models.Event{},
		&models.Setting{},
	); err != nil {
		tx.Rollback()
		return err
	}
	// jti revocation fallback store, written with raw SQL in utils
	if err := tx.Exec("CREATE TABLE IF NOT EXISTS revoked_tokens (id VARCHAR(64) PRIMARY KEY, revoked_at DATETIME NOT NULL)").Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
