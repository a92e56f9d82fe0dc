package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/models"
	"gorm.io/gorm"
)

const (
	DefaultPageLimit = 30
	MaxPageLimit     = 100
)

// MessageStore is the append-only message log plus per-message reader sets.
// It stores bodies exactly as given; sealing happens above it.
type MessageStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{db: db, now: time.Now}
}

// Append writes one message. created_at is truncated to microseconds so the
// value handed back matches what Postgres stores.
func (s *MessageStore) Append(ctx context.Context, conversationID, senderID string, senderKind models.SenderKind, body string, kind models.MessageKind) (*models.DirectMessage, error) {
	if senderKind == "" {
		senderKind = models.SenderKindUser
	}
	if kind == "" {
		kind = models.MessageKindText
	}

	msg := &models.DirectMessage{
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderKind:     senderKind,
		Body:           body,
		Kind:           kind,
		CreatedAt:      s.now().UTC().Truncate(time.Microsecond),
		ReadBy:         []string{},
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// Page returns up to limit messages older than beforeID (or the newest ones
// when beforeID is empty) in chronological order, and whether older messages
// remain. Messages sharing the cursor's timestamp are split by id, so
// chaining pages never skips or repeats a message.
func (s *MessageStore) Page(ctx context.Context, conversationID, beforeID string, limit int) ([]models.DirectMessage, bool, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	q := s.db.WithContext(ctx).
		Preload("Reads").
		Where("conversation_id = ?", conversationID)

	if beforeID != "" {
		var cursor models.DirectMessage
		err := s.db.WithContext(ctx).
			Select("id", "created_at").
			Where("id = ? AND conversation_id = ?", beforeID, conversationID).
			First(&cursor).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrNotFound
		}
		if err != nil {
			return nil, false, fmt.Errorf("resolve cursor: %w", err)
		}
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	// One extra row tells us whether another page exists
	var msgs []models.DirectMessage
	err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&msgs).Error
	if err != nil {
		return nil, false, fmt.Errorf("page messages: %w", err)
	}

	hasMore := len(msgs) > limit
	if hasMore {
		msgs = msgs[:limit]
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	for i := range msgs {
		if msgs[i].ReadBy == nil {
			msgs[i].ReadBy = []string{}
		}
	}
	return msgs, hasMore, nil
}

// MarkRead adds readerID to the reader set of every message in the
// conversation it did not send and has not read yet. It returns how many
// messages changed; a repeated call returns 0 and changes nothing.
func (s *MessageStore) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	res := s.db.WithContext(ctx).Exec(`
		INSERT INTO direct_message_reads (message_id, reader_id, read_at)
		SELECT m.id, ?, ?
		FROM direct_messages m
		WHERE m.conversation_id = ?
		  AND m.sender_id <> ?
		  AND NOT EXISTS (
			SELECT 1 FROM direct_message_reads r
			WHERE r.message_id = m.id AND r.reader_id = ?
		  )
		ON CONFLICT DO NOTHING`,
		readerID, s.now().UTC(), conversationID, readerID, readerID,
	)
	if res.Error != nil {
		return 0, fmt.Errorf("mark read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CountUnread counts messages in one conversation the user neither sent nor read
func (s *MessageStore) CountUnread(ctx context.Context, conversationID, userID string) (int64, error) {
	counts, err := s.UnreadCounts(ctx, []string{conversationID}, userID)
	if err != nil {
		return 0, err
	}
	return counts[conversationID], nil
}

// UnreadCounts is the batched form of CountUnread used by the inbox.
// Conversations without unread messages are absent from the map.
func (s *MessageStore) UnreadCounts(ctx context.Context, conversationIDs []string, userID string) (map[string]int64, error) {
	counts := make(map[string]int64, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		ConversationID string
		Unread         int64
	}
	err := s.db.WithContext(ctx).
		Table("direct_messages AS m").
		Select("m.conversation_id AS conversation_id, COUNT(*) AS unread").
		Where("m.conversation_id IN ?", conversationIDs).
		Where("m.sender_id <> ?", userID).
		Where("NOT EXISTS (SELECT 1 FROM direct_message_reads r WHERE r.message_id = m.id AND r.reader_id = ?)", userID).
		Group("m.conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}

	for _, r := range rows {
		counts[r.ConversationID] = r.Unread
	}
	return counts, nil
}

// ScanUnsealed returns up to limit messages with id > afterID whose body is
// not in the current sealed format, ordered by id
func (s *MessageStore) ScanUnsealed(ctx context.Context, sealedPrefix, afterID string, limit int) ([]models.DirectMessage, error) {
	var msgs []models.DirectMessage
	err := s.db.WithContext(ctx).
		Where("id > ? AND body <> '' AND body NOT LIKE ?", afterID, sealedPrefix+"%").
		Order("id ASC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("scan unsealed messages: %w", err)
	}
	return msgs, nil
}

// ReplaceBody swaps a stored body only if it still equals oldBody
func (s *MessageStore) ReplaceBody(ctx context.Context, id, oldBody, newBody string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.DirectMessage{}).
		Where("id = ? AND body = ?", id, oldBody).
		UpdateColumn("body", newBody)
	if res.Error != nil {
		return false, fmt.Errorf("replace message body: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
