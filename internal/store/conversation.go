package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/models"
	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("store: record not found")
	ErrSelfConversation = errors.New("store: a conversation needs two distinct participants")
)

// ConversationStore persists two-party conversations. Uniqueness of the pair
// lives in the schema (idx_conversation_pair), not in this code.
type ConversationStore struct {
	db *gorm.DB
}

func NewConversationStore(db *gorm.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// FindByPair returns the conversation between a and b in either order,
// or nil when none exists.
func (s *ConversationStore) FindByPair(ctx context.Context, a, b string) (*models.Conversation, error) {
	first, second := models.SortPair(a, b)

	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Where("participant_a = ? AND participant_b = ?", first, second).
		Limit(1).
		Find(&conv).Error
	if err != nil {
		return nil, fmt.Errorf("find conversation by pair: %w", err)
	}
	if conv.ID == "" {
		return nil, nil
	}
	return &conv, nil
}

// FindByID returns ErrNotFound when the conversation does not exist
func (s *ConversationStore) FindByID(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).First(&conv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return &conv, nil
}

// Create inserts the conversation for a pair. When a concurrent request wins
// the insert, the unique index rejects ours and the winner's row is returned.
func (s *ConversationStore) Create(ctx context.Context, a, b string) (*models.Conversation, error) {
	if a == "" || b == "" || a == b {
		return nil, ErrSelfConversation
	}
	first, second := models.SortPair(a, b)

	conv := &models.Conversation{ParticipantA: first, ParticipantB: second}
	err := s.db.WithContext(ctx).Create(conv).Error
	if err == nil {
		return conv, nil
	}

	// Lost the race: ErrDuplicatedKey on drivers that translate it, but any
	// failed insert is worth one re-read before giving up.
	existing, findErr := s.FindByPair(ctx, first, second)
	if findErr == nil && existing != nil {
		return existing, nil
	}
	return nil, fmt.Errorf("create conversation: %w", err)
}

// ListForUser pages through a user's conversations, most recent activity first.
// page is 1-based.
func (s *ConversationStore) ListForUser(ctx context.Context, userID string, page, pageSize int) ([]models.Conversation, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var convs []models.Conversation
	err := s.db.WithContext(ctx).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("updated_at DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// ListIDsForUser returns every conversation id the user participates in
func (s *ConversationStore) ListIDsForUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list conversation ids: %w", err)
	}
	return ids, nil
}

// TouchLastMessage refreshes the inbox snapshot and bumps updated_at to the
// message time so the inbox reorders. A snapshot newer than at is kept.
func (s *ConversationStore) TouchLastMessage(ctx context.Context, conversationID, sealedBody, senderID string, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Where("last_message_at IS NULL OR last_message_at <= ?", at).
		UpdateColumns(map[string]interface{}{
			"last_message_body":      sealedBody,
			"last_message_sender_id": senderID,
			"last_message_at":        at,
			"updated_at":             at,
		})
	if res.Error != nil {
		return fmt.Errorf("touch last message: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", conversationID).Count(&count).Error; err != nil {
		return fmt.Errorf("touch last message: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// ScanUnsealedSnapshots returns conversations whose last-message snapshot is
// not in the current sealed format, ordered by id
func (s *ConversationStore) ScanUnsealedSnapshots(ctx context.Context, sealedPrefix, afterID string, limit int) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := s.db.WithContext(ctx).
		Where("id > ? AND last_message_body <> '' AND last_message_body NOT LIKE ?", afterID, sealedPrefix+"%").
		Order("id ASC").
		Limit(limit).
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("scan unsealed snapshots: %w", err)
	}
	return convs, nil
}

// ReplaceSnapshotBody swaps the snapshot body only if it still equals
// oldBody, so a message sent meanwhile is never overwritten
func (s *ConversationStore) ReplaceSnapshotBody(ctx context.Context, id, oldBody, newBody string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ? AND last_message_body = ?", id, oldBody).
		UpdateColumn("last_message_body", newBody)
	if res.Error != nil {
		return false, fmt.Errorf("replace snapshot body: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
