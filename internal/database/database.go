package database

import (
	"log"
	"time"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/config"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// GormConfig is shared by the production connection and the sqlite test
// databases so both translate constraint violations the same way.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func Connect() {
	dsn := config.AppConfig.DatabaseURL
	db, err := gorm.Open(postgres.Open(dsn), GormConfig())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get underlying sql.DB: %v", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	DB = db
	log.Println("Connected to PostgreSQL with connection pooling (max: 25, idle: 10)")
}

// ChatModels lists every table the messaging subsystem owns or reads
func ChatModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.UserLink{},
		&models.UserBlock{},
		&models.Conversation{},
		&models.DirectMessage{},
		&models.MessageRead{},
	}
}

// Migrate creates the chat tables, including the unique pair index that
// keeps one conversation per pair of users.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(ChatModels()...)
}
