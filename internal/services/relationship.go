package services

import (
	"context"
	"fmt"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/models"
	"gorm.io/gorm"
)

// RelationshipGate decides whether two users may message each other.
// A false answer is a permission failure, never a retryable condition.
type RelationshipGate interface {
	CanMessage(ctx context.Context, a, b string) (bool, error)
}

// SocialGraphGate answers from the follow and block tables: users are
// friends when each links the other, and a block in either direction wins.
type SocialGraphGate struct {
	db *gorm.DB
}

func NewSocialGraphGate(db *gorm.DB) *SocialGraphGate {
	return &SocialGraphGate{db: db}
}

func (g *SocialGraphGate) CanMessage(ctx context.Context, a, b string) (bool, error) {
	if a == "" || b == "" || a == b {
		return false, nil
	}

	var blocks int64
	err := g.db.WithContext(ctx).
		Model(&models.UserBlock{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&blocks).Error
	if err != nil {
		return false, fmt.Errorf("check blocks: %w", err)
	}
	if blocks > 0 {
		return false, nil
	}

	var links int64
	err = g.db.WithContext(ctx).
		Model(&models.UserLink{}).
		Where("(linker_id = ? AND linked_id = ?) OR (linker_id = ? AND linked_id = ?)", a, b, b, a).
		Count(&links).Error
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return links == 2, nil
}
