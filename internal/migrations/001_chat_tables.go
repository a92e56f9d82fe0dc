package migrations

import (
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/database"
	"gorm.io/gorm"
)

// Migration001ChatTables creates the conversation, message and read-receipt
// tables together with the unique pair index
func Migration001ChatTables() Migration {
	return Migration{
		ID:   "001_chat_tables",
		Name: "Create direct messaging tables",
		Up: func(db *gorm.DB) error {
			return database.Migrate(db)
		},
	}
}
