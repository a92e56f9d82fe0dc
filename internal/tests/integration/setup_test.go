package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/config"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/crypto"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/database"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/handlers"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/models"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/routes"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/services"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/store"
	"github.com/Xavierrodgriues/vacancyamerica-backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type env struct {
	db     *gorm.DB
	router *gin.Engine
}

// setupEnv builds the full HTTP stack on a private in-memory database
func setupEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	prev := config.AppConfig
	config.AppConfig = &config.Config{JWTSecret: "test_secret_key_12345"}
	t.Cleanup(func() { config.AppConfig = prev })

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	codec, err := crypto.NewCodec("integration-secret")
	require.NoError(t, err)

	chat := services.NewChatService(
		store.NewConversationStore(db),
		store.NewMessageStore(db),
		codec,
		services.NewSocialGraphGate(db),
		services.NewUserDirectory(db),
		nil,
	)

	r := routes.NewRouter(routes.Deps{
		DB:   db,
		Chat: handlers.NewChatHandler(chat, 30),
	})
	return &env{db: db, router: r}
}

// createTestUser inserts a user and returns a signed token for them
func (e *env) createTestUser(t *testing.T, username string, role models.Role) (string, string) {
	t.Helper()
	id := uuid.NewString()
	require.NoError(t, e.db.Create(&models.User{
		ID:       id,
		Username: username,
		Email:    username + "@example.com",
		Role:     role,
	}).Error)

	token, err := utils.GenerateToken(id)
	require.NoError(t, err)
	return id, token
}

func (e *env) link(t *testing.T, a, b string) {
	t.Helper()
	require.NoError(t, e.db.Create(&models.UserLink{LinkerID: a, LinkedID: b}).Error)
	require.NoError(t, e.db.Create(&models.UserLink{LinkerID: b, LinkedID: a}).Error)
}

func (e *env) performRequest(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
