package main

import (
	"context"
	"fmt"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/config"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/crypto"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/database"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/migrations"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/seeds"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/services"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/store"
	"github.com/Xavierrodgriues/vacancyamerica-backend/pkg/logger"
	"github.com/Xavierrodgriues/vacancyamerica-backend/pkg/utils"
)

// seeder loads demo accounts and conversations into a development database
// and prints a bearer token per account
func main() {
	config.LoadConfig()
	if config.AppConfig.IsProduction() {
		fmt.Println("refusing to seed a production database")
		return
	}
	logger.Init(config.AppConfig.Env)
	database.Connect()

	if err := migrations.NewMigrator(database.DB).Run(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate")
	}

	codec, err := crypto.NewCodec(config.AppConfig.MessageEncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialise message cipher")
	}

	if err := seeds.SeedUsers(database.DB); err != nil {
		logger.Fatal().Err(err).Msg("Failed to seed users")
	}

	chat := services.NewChatService(
		store.NewConversationStore(database.DB),
		store.NewMessageStore(database.DB),
		codec,
		services.NewSocialGraphGate(database.DB),
		services.NewUserDirectory(database.DB),
		nil,
	)
	if err := seeds.SeedConversations(context.Background(), chat); err != nil {
		logger.Fatal().Err(err).Msg("Failed to seed conversations")
	}

	for _, u := range seeds.DemoUsers {
		token, err := utils.GenerateToken(u.ID)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to sign token")
		}
		fmt.Printf("%-8s %s\n", u.Username, token)
	}
}
