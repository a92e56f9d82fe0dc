package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/crypto"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/models"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResealer_UpgradesLegacyAndPlaintext(t *testing.T) {
	f := newFriends(t)
	ctx := context.Background()

	conv, err := f.svc.StartOrGetConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	msgs := store.NewMessageStore(f.db)
	convs := store.NewConversationStore(f.db)

	legacy, err := f.codec.SealLegacy("from the old days")
	require.NoError(t, err)
	_, err = msgs.Append(ctx, conv.ID, "alice", models.SenderKindUser, legacy, models.MessageKindText)
	require.NoError(t, err)
	_, err = msgs.Append(ctx, conv.ID, "bob", models.SenderKindUser, "plain: stored before encryption", models.MessageKindText)
	require.NoError(t, err)
	_, err = msgs.Append(ctx, conv.ID, "bob", models.SenderKindUser, crypto.SealedPrefix+"AAAA", models.MessageKindText)
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, "alice", conv.ID, "already sealed")
	require.NoError(t, err)

	// snapshot left in plaintext by an older writer
	require.NoError(t, convs.TouchLastMessage(ctx, conv.ID, "plain snapshot", "alice", time.Now().UTC().Add(time.Second)))

	report, err := NewResealer(msgs, convs, f.codec, 2, false).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Messages)
	assert.Equal(t, 1, report.Snapshots)
	assert.Equal(t, 0, report.Unreadable)

	var stored []models.DirectMessage
	require.NoError(t, f.db.Order("id").Find(&stored).Error)
	for _, m := range stored {
		assert.True(t, strings.HasPrefix(m.Body, crypto.SealedPrefix), m.Body)
	}

	history, err := f.svc.GetHistory(ctx, "bob", conv.ID, "", 0)
	require.NoError(t, err)
	texts := make([]string, 0, len(history.Messages))
	for _, m := range history.Messages {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"from the old days", "plain: stored before encryption", crypto.Placeholder, "already sealed"}, texts)

	inbox, err := f.svc.ListInbox(ctx, "alice", 1, 20)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "plain snapshot", inbox[0].LastMessage.Text)

	// second pass finds nothing left to do
	report, err = NewResealer(msgs, convs, f.codec, 2, false).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResealReport{}, report)
}

func TestResealer_DryRunLeavesRows(t *testing.T) {
	f := newFriends(t)
	ctx := context.Background()

	conv, err := f.svc.StartOrGetConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	msgs := store.NewMessageStore(f.db)
	_, err = msgs.Append(ctx, conv.ID, "alice", models.SenderKindUser, "plaintext", models.MessageKindText)
	require.NoError(t, err)

	report, err := NewResealer(msgs, store.NewConversationStore(f.db), f.codec, 10, true).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Messages)

	var m models.DirectMessage
	require.NoError(t, f.db.First(&m, "conversation_id = ?", conv.ID).Error)
	assert.Equal(t, "plaintext", m.Body)
}
