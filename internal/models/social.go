package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserLink represents a follower/following relationship. Two links in
// opposite directions make the users friends.
type UserLink struct {
	ID        string         `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	LinkerID string `gorm:"uniqueIndex:idx_linker_linked" json:"linkerId"` // The user who follows
	LinkedID string `gorm:"uniqueIndex:idx_linker_linked" json:"linkedId"` // The user being followed
}

func (UserLink) TableName() string {
	return "UserLink"
}

func (ul *UserLink) BeforeCreate(tx *gorm.DB) (err error) {
	if ul.ID == "" {
		ul.ID = uuid.New().String()
	}
	return
}

// UserBlock represents one user blocking another
type UserBlock struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	BlockerID string    `gorm:"uniqueIndex:idx_blocker_blocked" json:"blockerId"`
	BlockedID string    `gorm:"uniqueIndex:idx_blocker_blocked" json:"blockedId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (UserBlock) TableName() string {
	return "UserBlock"
}

func (ub *UserBlock) BeforeCreate(tx *gorm.DB) (err error) {
	if ub.ID == "" {
		ub.ID = uuid.New().String()
	}
	return
}
