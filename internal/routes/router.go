package routes

import (
	"strings"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/handlers"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps is everything the HTTP surface needs from main
type Deps struct {
	DB          *gorm.DB
	Redis       *redis.Client
	Chat        *handlers.ChatHandler
	Socket      gin.HandlerFunc
	FrontendURL string
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.ErrorHandlerMiddleware())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORSMiddleware(d.FrontendURL))

	// socket.io polling would trip the general limiter
	r.Use(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/socket.io/") {
			c.Next()
			return
		}
		middleware.GeneralRateLimit()(c)
	})

	api := r.Group("/api")
	RegisterChatRoutes(api, d.Chat, middleware.AuthMiddleware(d.DB))

	r.GET("/health", handlers.Health(d.DB, d.Redis))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if d.Socket != nil {
		r.GET("/socket.io/*any", d.Socket)
		r.POST("/socket.io/*any", d.Socket)
	}
	return r
}
