package models

import "time"

// BYOKCredential stores a user-supplied provider API key, encrypted at rest.
// At most one active row per (user, provider); adding a key for an already
// configured provider updates the existing row.
type BYOKCredential struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index:idx_byok_user_provider"` // Owning user ID.
	User   User   `gorm:"foreignKey:UserID"`                     // Owning user record.

	Provider        string `gorm:"type:varchar(32);not null;index:idx_byok_user_provider"` // Provider identifier.
	APIKeyEncrypted string `gorm:"type:text;not null"`                                     // Encrypted API key with embedded nonce.

	Active bool `gorm:"column:is_active;not null;default:true"` // Soft-deletion flag.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName stores BYOK credentials under the short historical table name.
func (BYOKCredential) TableName() string { return "byok" }
