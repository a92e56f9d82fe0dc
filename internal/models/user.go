package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User is owned by the identity service; the messaging subsystem only reads
// it to render participant and sender summaries.
type User struct {
	ID        string         `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time      `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updatedAt" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index;column:deletedAt" json:"-"`

	Name     string `json:"name"`
	Email    string `gorm:"uniqueIndex" json:"email"`
	Image    string `json:"image"`
	Username string `gorm:"uniqueIndex" json:"username"`
	Role     Role   `gorm:"type:text;default:'USER'" json:"role"`
}

func (User) TableName() string {
	return "User"
}

// UserSummary is the public projection embedded in chat payloads
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Image    string `json:"image"`
	Kind     string `json:"kind"`
}

// Summary projects a user into the shape chat clients render
func (u User) Summary() UserSummary {
	kind := SenderKindUser
	if u.Role == RoleAdmin {
		kind = SenderKindAdmin
	}
	name := u.Name
	if name == "" {
		name = u.Username
	}
	return UserSummary{
		ID:       u.ID,
		Username: u.Username,
		Name:     name,
		Image:    u.Image,
		Kind:     string(kind),
	}
}
