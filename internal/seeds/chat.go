package seeds

import (
	"context"
	"fmt"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/models"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/services"
	"github.com/Xavierrodgriues/vacancyamerica-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DemoUsers are the fixed development accounts. alice and bob are mutual
// friends; carol follows alice one way; dave is linked with bob but blocked
// him, so neither can message the other.
var DemoUsers = []models.User{
	{ID: "00000000-0000-4000-8000-00000000a11c", Username: "alice", Name: "Alice", Email: "alice@demo.local", Role: models.RoleUser},
	{ID: "00000000-0000-4000-8000-000000000b0b", Username: "bob", Name: "Bob", Email: "bob@demo.local", Role: models.RoleUser},
	{ID: "00000000-0000-4000-8000-0000000ca201", Username: "carol", Name: "Carol", Email: "carol@demo.local", Role: models.RoleUser},
	{ID: "00000000-0000-4000-8000-00000000da7e", Username: "dave", Name: "Dave", Email: "dave@demo.local", Role: models.RoleUser},
	{ID: "00000000-0000-4000-8000-0000000ad814", Username: "support", Name: "Support Team", Email: "support@demo.local", Role: models.RoleAdmin},
}

func userID(username string) string {
	for _, u := range DemoUsers {
		if u.Username == username {
			return u.ID
		}
	}
	panic("unknown demo user " + username)
}

// SeedUsers upserts the demo accounts and their social graph
func SeedUsers(db *gorm.DB) error {
	log := logger.Component("seeds")

	for _, u := range DemoUsers {
		u := u
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&u).Error; err != nil {
			return fmt.Errorf("seed user %s: %w", u.Username, err)
		}
	}

	links := [][2]string{
		{"alice", "bob"}, {"bob", "alice"},
		{"carol", "alice"},
		{"bob", "dave"}, {"dave", "bob"},
		{"support", "alice"}, {"alice", "support"},
	}
	for _, l := range links {
		link := models.UserLink{LinkerID: userID(l[0]), LinkedID: userID(l[1])}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
			return fmt.Errorf("seed link %s->%s: %w", l[0], l[1], err)
		}
	}

	block := models.UserBlock{BlockerID: userID("dave"), BlockedID: userID("bob")}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&block).Error; err != nil {
		return fmt.Errorf("seed block: %w", err)
	}

	log.Info().Int("users", len(DemoUsers)).Msg("Demo users seeded")
	return nil
}

// SeedConversations opens the demo conversations through the chat service so
// bodies are sealed exactly as live traffic is
func SeedConversations(ctx context.Context, chat *services.ChatService) error {
	log := logger.Component("seeds")

	script := []struct {
		from, to string
		text     string
	}{
		{"alice", "bob", "Hey Bob, are you coming to the standup?"},
		{"bob", "alice", "Yes, five minutes."},
		{"alice", "bob", "Great, see you there"},
		{"support", "alice", "Welcome aboard! Reply here if you need anything."},
	}

	for _, line := range script {
		conv, err := chat.StartOrGetConversation(ctx, userID(line.from), userID(line.to))
		if err != nil {
			return fmt.Errorf("start %s->%s: %w", line.from, line.to, err)
		}
		if _, err := chat.Send(ctx, userID(line.from), conv.ID, line.text); err != nil {
			return fmt.Errorf("send %s->%s: %w", line.from, line.to, err)
		}
	}

	log.Info().Int("messages", len(script)).Msg("Demo conversations seeded")
	return nil
}
