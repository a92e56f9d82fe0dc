package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/database"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB opens a private in-memory SQLite database per test
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func TestConversationStore_CreateAndFindByPair(t *testing.T) {
	db := setupTestDB(t)
	s := NewConversationStore(db)
	ctx := context.Background()

	conv, err := s.Create(ctx, "user_b", "user_a")
	require.NoError(t, err)
	assert.Equal(t, "user_a", conv.ParticipantA)
	assert.Equal(t, "user_b", conv.ParticipantB)

	found, err := s.FindByPair(ctx, "user_a", "user_b")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, conv.ID, found.ID)

	found, err = s.FindByPair(ctx, "user_b", "user_a")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, conv.ID, found.ID)

	missing, err := s.FindByPair(ctx, "user_a", "user_c")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestConversationStore_RejectsSelfConversation(t *testing.T) {
	s := NewConversationStore(setupTestDB(t))

	_, err := s.Create(context.Background(), "user_a", "user_a")
	assert.ErrorIs(t, err, ErrSelfConversation)
}

func TestConversationStore_UniquePairInSchema(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Conversation{ParticipantA: "a", ParticipantB: "b"}).Error)
	err := db.Create(&models.Conversation{ParticipantA: "a", ParticipantB: "b"}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// Create falls back to the existing row instead of failing
	s := NewConversationStore(db)
	conv, err := s.Create(ctx, "b", "a")
	require.NoError(t, err)

	var count int64
	db.Model(&models.Conversation{}).Count(&count)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, "a", conv.ParticipantA)
}

func TestConversationStore_ConcurrentCreate(t *testing.T) {
	db := setupTestDB(t)
	s := NewConversationStore(db)
	ctx := context.Background()

	const n = 20
	ids := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "alice", "bob"
			if i%2 == 0 {
				a, b = b, a
			}
			conv, err := s.Create(ctx, a, b)
			errs[i] = err
			if conv != nil {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	var count int64
	db.Model(&models.Conversation{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestConversationStore_ListForUserOrdersByActivity(t *testing.T) {
	db := setupTestDB(t)
	s := NewConversationStore(db)
	ctx := context.Background()

	older, _ := s.Create(ctx, "me", "u1")
	newer, _ := s.Create(ctx, "me", "u2")
	_, _ = s.Create(ctx, "u1", "u2")

	now := time.Now().UTC()
	require.NoError(t, s.TouchLastMessage(ctx, older.ID, "enc:x", "u1", now.Add(-time.Hour)))
	require.NoError(t, s.TouchLastMessage(ctx, newer.ID, "enc:y", "me", now))

	convs, err := s.ListForUser(ctx, "me", 1, 10)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, newer.ID, convs[0].ID)
	assert.Equal(t, older.ID, convs[1].ID)
	assert.Equal(t, "enc:y", convs[0].LastMessageBody)
	require.NotNil(t, convs[0].LastMessageSenderID)
	assert.Equal(t, "me", *convs[0].LastMessageSenderID)

	page2, err := s.ListForUser(ctx, "me", 2, 1)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, older.ID, page2[0].ID)
}

func TestConversationStore_TouchMissingConversation(t *testing.T) {
	s := NewConversationStore(setupTestDB(t))

	err := s.TouchLastMessage(context.Background(), "nope", "x", "u", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConversationStore_TouchKeepsNewerSnapshot(t *testing.T) {
	s := NewConversationStore(setupTestDB(t))
	ctx := context.Background()

	conv, err := s.Create(ctx, "me", "u1")
	require.NoError(t, err)

	newer := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.TouchLastMessage(ctx, conv.ID, "enc:newer", "u1", newer))
	// a send that lost the race lands second
	require.NoError(t, s.TouchLastMessage(ctx, conv.ID, "enc:older", "me", newer.Add(-time.Second)))

	got, err := s.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "enc:newer", got.LastMessageBody)
	require.NotNil(t, got.LastMessageSenderID)
	assert.Equal(t, "u1", *got.LastMessageSenderID)
	require.NotNil(t, got.LastMessageAt)
	assert.True(t, got.LastMessageAt.Equal(newer))
	assert.True(t, got.UpdatedAt.Equal(newer))
}

func appendN(t *testing.T, s *MessageStore, convID string, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		sender := "alice"
		if i%3 == 0 {
			sender = "bob"
		}
		msg, err := s.Append(context.Background(), convID, sender, models.SenderKindUser, fmt.Sprintf("m%d", i), models.MessageKindText)
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}
	return ids
}

func collectPages(t *testing.T, s *MessageStore, convID string, limit int) []string {
	t.Helper()
	var pages [][]models.DirectMessage
	cursor := ""
	for {
		msgs, hasMore, err := s.Page(context.Background(), convID, cursor, limit)
		require.NoError(t, err)
		pages = append(pages, msgs)
		if !hasMore {
			break
		}
		require.NotEmpty(t, msgs)
		cursor = msgs[0].ID
	}

	// Pages arrive newest first, each chronological inside
	var ids []string
	for i := len(pages) - 1; i >= 0; i-- {
		for _, m := range pages[i] {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func TestMessageStore_PaginationIsComplete(t *testing.T) {
	db := setupTestDB(t)
	s := NewMessageStore(db)

	want := appendN(t, s, "conv1", 25)
	appendN(t, s, "conv2", 5)

	assert.Equal(t, want, collectPages(t, s, "conv1", 10))
	assert.Equal(t, want, collectPages(t, s, "conv1", 25))
	assert.Equal(t, want, collectPages(t, s, "conv1", 7))
}

func TestMessageStore_PaginationWithSharedTimestamps(t *testing.T) {
	db := setupTestDB(t)
	s := NewMessageStore(db)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	want := appendN(t, s, "conv1", 12)
	assert.Equal(t, want, collectPages(t, s, "conv1", 5))
}

func TestMessageStore_PageReportsHasMore(t *testing.T) {
	db := setupTestDB(t)
	s := NewMessageStore(db)
	ids := appendN(t, s, "conv1", 3)

	msgs, hasMore, err := s.Page(context.Background(), "conv1", "", 3)
	require.NoError(t, err)
	assert.False(t, hasMore)
	assert.Len(t, msgs, 3)
	assert.Equal(t, ids[0], msgs[0].ID)

	msgs, hasMore, err = s.Page(context.Background(), "conv1", "", 2)
	require.NoError(t, err)
	assert.True(t, hasMore)
	assert.Equal(t, []string{ids[1], ids[2]}, []string{msgs[0].ID, msgs[1].ID})
}

func TestMessageStore_PageUnknownCursor(t *testing.T) {
	db := setupTestDB(t)
	s := NewMessageStore(db)
	other := appendN(t, s, "conv2", 1)

	_, _, err := s.Page(context.Background(), "conv1", "missing", 10)
	assert.ErrorIs(t, err, ErrNotFound)

	// A cursor from a different conversation is not accepted either
	_, _, err = s.Page(context.Background(), "conv1", other[0], 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMessageStore_MarkReadIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	s := NewMessageStore(db)
	ctx := context.Background()

	appendN(t, s, "conv1", 6) // bob sends m0 and m3, alice the rest

	n, err := s.MarkRead(ctx, "conv1", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	msgs, _, err := s.Page(ctx, "conv1", "", 10)
	require.NoError(t, err)
	first := readerSets(msgs)

	n, err = s.MarkRead(ctx, "conv1", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	msgs, _, _ = s.Page(ctx, "conv1", "", 10)
	assert.Equal(t, first, readerSets(msgs))

	for _, m := range msgs {
		if m.SenderID == "alice" {
			assert.Empty(t, m.ReadBy, "sender's own messages are never marked")
		} else {
			assert.Equal(t, []string{"alice"}, m.ReadBy)
		}
	}
}

func readerSets(msgs []models.DirectMessage) map[string][]string {
	out := make(map[string][]string, len(msgs))
	for _, m := range msgs {
		out[m.ID] = m.ReadBy
	}
	return out
}

func TestMessageStore_UnreadCounts(t *testing.T) {
	db := setupTestDB(t)
	s := NewMessageStore(db)
	ctx := context.Background()

	appendN(t, s, "conv1", 6) // 4 from alice, 2 from bob
	appendN(t, s, "conv2", 1) // 1 from bob

	counts, err := s.UnreadCounts(ctx, []string{"conv1", "conv2", "conv3"}, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(4), counts["conv1"])
	assert.Equal(t, int64(0), counts["conv2"])
	assert.Equal(t, int64(0), counts["conv3"])

	_, err = s.MarkRead(ctx, "conv1", "bob")
	require.NoError(t, err)

	n, err := s.CountUnread(ctx, "conv1", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = s.CountUnread(ctx, "conv1", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
