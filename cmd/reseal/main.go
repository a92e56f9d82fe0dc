package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/config"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/crypto"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/database"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/services"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/store"
	"github.com/Xavierrodgriues/vacancyamerica-backend/pkg/logger"
)

// reseal upgrades legacy-format and plaintext message bodies to the current
// sealed format. Safe to run while the server is live.
func main() {
	batch := flag.Int("batch", 500, "rows per scan")
	dryRun := flag.Bool("dry-run", false, "count rows without writing")
	flag.Parse()

	config.LoadConfig()
	logger.Init(config.AppConfig.Env)
	database.Connect()

	codec, err := crypto.NewCodec(config.AppConfig.MessageEncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialise message cipher")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := services.NewResealer(
		store.NewMessageStore(database.DB),
		store.NewConversationStore(database.DB),
		codec,
		*batch,
		*dryRun,
	).Run(ctx)
	if err != nil {
		logger.Fatal().Err(err).Interface("report", report).Msg("Reseal aborted")
	}

	logger.Info().
		Bool("dry_run", *dryRun).
		Int("messages", report.Messages).
		Int("snapshots", report.Snapshots).
		Int("unreadable", report.Unreadable).
		Int("skipped", report.Skipped).
		Msg("Reseal complete")
}
