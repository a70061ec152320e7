package models

import "time"

// Plan identifies a subscription tier.
type Plan string

// Plan constants define the subscription tiers.
const (
	// PlanTrial is the free evaluation tier.
	PlanTrial Plan = "Trial"
	// PlanPro is the paid individual tier.
	PlanPro Plan = "Pro"
	// PlanElite is the paid tier with bring-your-own-key billing.
	PlanElite Plan = "Elite"
	// PlanTeams is the paid multi-seat tier.
	PlanTeams Plan = "Teams"
)

// IsEliteOrTeams reports whether the plan unlocks elite-gated models.
func (p Plan) IsEliteOrTeams() bool {
	return p == PlanElite || p == PlanTeams
}

// IsPaid reports whether the plan is a paying tier subject to monthly resets.
func (p Plan) IsPaid() bool {
	return p == PlanPro || p == PlanTeams
}

// User represents an end-user account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email    string `gorm:"type:text;not null;uniqueIndex"` // Login email address.
	Name     string `gorm:"type:text"`                      // Display name.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Plan      Plan `gorm:"type:varchar(16);not null;default:'Trial'"` // Active subscription tier.
	TrialUsed bool `gorm:"not null;default:false"`                    // Whether the free trial was consumed.

	BillingCustomerID string `gorm:"type:text"` // Opaque billing collaborator identity.

	Active bool `gorm:"column:is_active;not null;default:true"` // Soft-deactivation flag; never hard-deleted.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
