package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/database"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/models"
	"github.com/Xavierrodgriues/vacancyamerica-backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var errTokenRevoked = errors.New("token has been revoked")

// AuthMiddleware resolves the bearer token to an active user and stores the
// id under "userId". Anything else ends the request with 401.
func AuthMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		claims, err := utils.ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		if database.IsTokenBlacklisted(claims.GetJTI()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has been revoked"})
			return
		}

		// soft-deleted users are excluded by gorm
		var user models.User
		if err := db.WithContext(c.Request.Context()).Select("id").First(&user, "id = ?", claims.UserID).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found or inactive"})
			return
		}

		c.Set("userId", claims.UserID)
		c.Set("claims", claims)
		c.Next()
	}
}

// SocketTokenVerifier validates a realtime handshake credential the same
// way AuthMiddleware does and returns the user id
func SocketTokenVerifier(db *gorm.DB) func(token string) (string, error) {
	return func(token string) (string, error) {
		claims, err := utils.ValidateToken(token)
		if err != nil {
			return "", err
		}
		if database.IsTokenBlacklisted(claims.GetJTI()) {
			return "", errTokenRevoked
		}
		var user models.User
		if err := db.Select("id").First(&user, "id = ?", claims.UserID).Error; err != nil {
			return "", err
		}
		return claims.UserID, nil
	}
}
