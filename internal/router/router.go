// Package router assembles the HTTP API from its services.
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"coffeeshop/internal/config"
	"coffeeshop/internal/handlers"
	"coffeeshop/internal/lockout"
	"coffeeshop/internal/middleware"
	"coffeeshop/internal/services"
	"coffeeshop/internal/session"
	"coffeeshop/internal/validator"
)

// Deps overrides collaborators, mostly for tests. Zero values select the
// production defaults.
type Deps struct {
	Hasher services.PasswordHasher
	Now    func() time.Time
}

// New builds the gin engine serving the API.
func New(cfg *config.Config, db *gorm.DB, deps Deps) *gin.Engine {
	validator.Register()

	opts := services.Options{
		Policy:  lockout.Policy{MaxAttempts: cfg.LockMaxAttempts, LockDuration: cfg.LockDuration},
		Timeout: cfg.DBTimeout,
		Hasher:  deps.Hasher,
		Now:     deps.Now,
	}

	// Initialize services
	userService := services.NewUserService(db, opts)
	authService := services.NewAuthService(db, opts)
	securityService := services.NewAccountSecurityService(db, opts)
	auditService := services.NewAuditService(db)

	var issuerOpts []session.Option
	if deps.Now != nil {
		issuerOpts = append(issuerOpts, session.WithClock(deps.Now))
	}
	issuer := session.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTTL, issuerOpts...)
	gate := middleware.NewGate(issuer, userService, securityService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, userService, issuer, handlers.CookieOptions{
		Secure:   cfg.CookieSecure,
		SameSite: cfg.SameSite(),
	})
	securityHandler := handlers.NewSecurityHandler(securityService, auditService)
	userHandler := handlers.NewUserHandler(userService, auditService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.Metrics())
	router.Use(middleware.ErrorHandler())
	router.Use(cors(cfg.CORSAllowedOrigin))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", middleware.ScrapeAuth(cfg.MetricsAPIKey), middleware.MetricsHandler())

	// Public routes
	auth := router.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/profile", gate.RequireUnlocked(), authHandler.GetProfile)

	// Owner-or-admin user lookup
	router.GET("/users/:id", gate.Require(), middleware.RequireOwnerOrAdmin("id"), userHandler.GetUser)

	// Admin routes; staff accounts are lock-checked on every request
	admin := router.Group("/admin", gate.RequireUnlocked())

	security := admin.Group("/security")
	security.GET("/stats", middleware.RequireAdminOrViewer(), securityHandler.GetStats)
	security.GET("/locked", middleware.RequireAdminOrViewer(), securityHandler.ListLocked)
	security.GET("/users/:id", middleware.RequireAdminOrViewer(), securityHandler.GetStatus)
	security.POST("/users/:id/lock", middleware.RequireAdmin(), securityHandler.LockAccount)
	security.POST("/users/:id/unlock", middleware.RequireAdmin(), securityHandler.UnlockAccount)
	security.POST("/users/:id/reset-attempts", middleware.RequireAdmin(), securityHandler.ResetAttempts)

	users := admin.Group("/users")
	users.GET("", middleware.RequireAdminOrViewer(), userHandler.ListUsers)
	users.PUT("/:id/role", middleware.RequireAdmin(), userHandler.UpdateRole)
	users.DELETE("/:id", middleware.RequireAdmin(), userHandler.DeleteUser)

	return router
}

// cors allows the storefront origin to send the session cookie.
func cors(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
