package models

import "time"

// ChatroomType distinguishes private rooms from multi-member group rooms.
type ChatroomType string

// ChatroomType constants define room kinds.
const (
	// ChatroomPrivate is a room owned and used by a single user.
	ChatroomPrivate ChatroomType = "private"
	// ChatroomGroup is a multi-member room; creation requires the Teams plan.
	ChatroomGroup ChatroomType = "group"
)

// Chatroom is a shared conversation owned by one user.
type Chatroom struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Title string       `gorm:"type:text;not null"`                          // Room title.
	Type  ChatroomType `gorm:"type:varchar(16);not null;default:'private'"` // Room kind.

	OwnerID uint64 `gorm:"not null;index"`     // Creating user ID.
	Owner   User   `gorm:"foreignKey:OwnerID"` // Creating user record.

	Active bool `gorm:"column:is_active;not null;default:true"` // Soft-deletion flag.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last activity timestamp.
}

// ChatroomParticipant links a user to a chatroom they belong to.
type ChatroomParticipant struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ChatroomID uint64   `gorm:"not null;index:idx_participant_room_user"` // Related chatroom ID.
	Chatroom   Chatroom `gorm:"foreignKey:ChatroomID"`                    // Related chatroom record.

	UserID uint64 `gorm:"not null;index:idx_participant_room_user"` // Member user ID.
	User   User   `gorm:"foreignKey:UserID"`                        // Member user record.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Join timestamp.
}
