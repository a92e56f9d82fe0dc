package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func CORSMiddleware(frontendURL string) gin.HandlerFunc {
	origins := []string{"http://localhost:5173"}
	if frontendURL != "" {
		origins = append(origins, frontendURL)
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// AllowedOrigin mirrors the CORS origin list for the socket upgrade check
func AllowedOrigin(frontendURL string) func(origin string) bool {
	return func(origin string) bool {
		return origin == "" || origin == "http://localhost:5173" || (frontendURL != "" && origin == frontendURL)
	}
}
