package models

import "time"

// CreditAccount tracks metered AI usage for a single user. One row per user;
// only the credit ledger mutates it.
type CreditAccount struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;uniqueIndex"` // Owning user ID.
	User   User   `gorm:"foreignKey:UserID"`    // Owning user record.

	// Used is the credits consumed since the last reset; Limit is the
	// allowance for the period.
	Used  float64 `gorm:"type:decimal(20,10);not null;default:0"`
	Limit float64 `gorm:"column:limit_amount;type:decimal(20,10);not null;default:0"`

	ResetDate time.Time `gorm:"not null"` // When the next reset is due.

	NotifiedApproaching bool `gorm:"not null;default:false"` // 80% alert already sent this period.
	NotifiedReached     bool `gorm:"not null;default:false"` // 100% alert already sent this period.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName stores credit accounts under the historical table name.
func (CreditAccount) TableName() string { return "credits" }

// CreditTransaction is an append-only audit record of credit movement.
// Negative amounts are usage, positive amounts are top-ups, zero marks a reset.
type CreditTransaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Related user ID.
	User   User   `gorm:"foreignKey:UserID"` // Related user record.

	Amount      float64 `gorm:"type:decimal(20,10);not null"` // Signed credit delta.
	Description string  `gorm:"type:text;not null"`           // Human-readable reason.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
