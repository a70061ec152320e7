package db

import (
	"fmt"

	"github.com/fixyhq/fixy/internal/models"
	"gorm.io/gorm"
)

// Migrate applies the schema for all persistent models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.CreditAccount{},
		&models.CreditTransaction{},
		&models.BYOKCredential{},
		&models.Chatroom{},
		&models.ChatroomParticipant{},
		&models.Agent{},
		&models.Message{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	return nil
}
