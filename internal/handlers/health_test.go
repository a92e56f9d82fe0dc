package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestHealth(t *testing.T) {
	_, db := setupHandler(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/health", nil)

	Health(db, nil)(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"database":"ok","redis":"not configured"}}`, w.Body.String())
}

func TestHealth_DatabaseDown(t *testing.T) {
	_, db := setupHandler(t)
	sqlDB, _ := db.DB()
	sqlDB.Close()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/health", nil)

	Health(db, nil)(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
