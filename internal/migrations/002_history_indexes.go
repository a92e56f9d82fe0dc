package migrations

import (
	"gorm.io/gorm"
)

// Migration002HistoryIndexes adds the descending indexes behind history
// paging and the inbox listing. Postgres only; other dialects rely on the
// ascending indexes from 001.
func Migration002HistoryIndexes() Migration {
	return Migration{
		ID:        "002_history_indexes",
		Name:      "Add descending indexes for history and inbox",
		DependsOn: []string{"001_chat_tables"},
		Up: func(db *gorm.DB) error {
			if db.Dialector.Name() != "postgres" {
				return nil
			}

			// WHERE conversation_id = ? AND (created_at, id) < (?, ?) ORDER BY created_at DESC, id DESC
			if err := db.Exec(`
				CREATE INDEX IF NOT EXISTS idx_dm_history_desc
				ON direct_messages (conversation_id, created_at DESC, id DESC)
			`).Error; err != nil {
				return err
			}

			// unread counts skip the sender's own messages
			return db.Exec(`
				CREATE INDEX IF NOT EXISTS idx_dm_conversation_sender
				ON direct_messages (conversation_id, sender_id)
			`).Error
		},
	}
}
