// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/javajoker/imi-storefront/internal/auth"
	"github.com/javajoker/imi-storefront/internal/config"
	"github.com/javajoker/imi-storefront/internal/handlers"
	"github.com/javajoker/imi-storefront/internal/middleware"
	"github.com/javajoker/imi-storefront/internal/services"
)

const version = "1.0.0"

// Dependencies are the long-lived components the HTTP surface drives.
type Dependencies struct {
	CartService *services.CartService
	Observer    handlers.SessionObserver
	Tokens      handlers.TokenStore
	Decoder     auth.Decoder
	Logger      logrus.FieldLogger
}

func Initialize(cfg *config.Config, deps Dependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	// Initialize handlers
	cartHandler := handlers.NewCartHandler(deps.CartService)
	sessionHandler := handlers.NewSessionHandler(deps.Tokens, deps.Decoder, deps.Observer, deps.CartService)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger))
	r.Use(cors.New(corsConfig(cfg)))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
		r.Use(limiter.Middleware())
	}
	r.Use(middleware.SessionContext(deps.Observer))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": version,
			"session": deps.Observer.Status(),
			"state":   deps.CartService.State(),
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		cart := v1.Group("/cart")
		{
			cart.GET("", cartHandler.GetCart)
			cart.DELETE("", cartHandler.ClearCart)
			cart.POST("/items", cartHandler.AddItem)
			cart.PUT("/items/:id", cartHandler.UpdateItem)
			cart.DELETE("/items/:id", cartHandler.RemoveItem)
			cart.POST("/sync", cartHandler.SyncCart)
			cart.PUT("/drawer", cartHandler.SetDrawer)
		}

		session := v1.Group("/session")
		{
			session.GET("", sessionHandler.GetSession)
			session.POST("", sessionHandler.StartSession)
			session.DELETE("", sessionHandler.EndSession)
		}
	}

	return r
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Accept-Language", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.Server.AllowOrigins) == 0 || cfg.Server.AllowOrigins[0] == "*" {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = cfg.Server.AllowOrigins
	}
	return c
}
