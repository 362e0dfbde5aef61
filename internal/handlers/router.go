package handlers

import (
	"context"
	"net/http"
	"time"

	"civic-tracker/internal/config"
	"civic-tracker/internal/database"
	"civic-tracker/internal/middleware"
	"civic-tracker/internal/models"
	"civic-tracker/internal/services"
	"civic-tracker/internal/websocket"
	"civic-tracker/pkg/auth"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Dependencies is everything the router wires into handlers.
// RateLimiter and IssueLimiter are optional.
type Dependencies struct {
	Config        *config.Config
	Store         database.Store
	Hub           *websocket.Hub
	JWTManager    *auth.JWTManager
	Issues        *services.IssueService
	Nearby        *services.NearbyService
	Notifications *services.NotificationService
	Dashboard     *services.DashboardService
	Users         *services.UserService
	RateLimiter   *middleware.RateLimiter
	IssueLimiter  *middleware.IssueLimiter
	Logger        *logrus.Logger
	StartedAt     time.Time
	Version       string
}

func SetupRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	if deps.Logger != nil {
		router.Use(middleware.Logger(deps.Logger))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = deps.Config.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	if deps.RateLimiter != nil {
		router.Use(deps.RateLimiter.RateLimit())
	}

	setupHealthRoutes(router, deps)

	issueHandler := NewIssueHandler(deps.Issues, deps.Nearby)
	notificationHandler := NewNotificationHandler(deps.Notifications)
	authHandler := NewAuthHandler(deps.Users)
	userHandler := NewUserHandler(deps.Users)
	dashboardHandler := NewDashboardHandler(deps.Dashboard)
	wsHandler := NewWebSocketHandler(deps.JWTManager, deps.Hub, deps.Config.AllowedOrigins)

	v1 := router.Group("/api/v1")
	v1.POST("/auth/login", authHandler.Login)

	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(deps.JWTManager))
	{
		createIssue := []gin.HandlerFunc{middleware.RequireOperation(models.OpCreateIssue)}
		if deps.IssueLimiter != nil {
			createIssue = append(createIssue, deps.IssueLimiter.Middleware())
		}
		createIssue = append(createIssue, issueHandler.CreateIssue)

		protected.POST("/issues", createIssue...)
		protected.GET("/issues", issueHandler.GetIssues)
		protected.GET("/issues/nearby", issueHandler.GetNearbyIssues)
		protected.GET("/issues/:id", issueHandler.GetIssue)

		staff := middleware.RequireAnyRole(models.RoleAdmin, models.RoleWorker)
		protected.PATCH("/issues/:id", staff, issueHandler.UpdateIssue)
		protected.PUT("/issues/:id", staff, issueHandler.UpdateIssue)
		protected.POST("/issues/:id/request-resolve", middleware.RequireAnyRole(models.RoleWorker), issueHandler.RequestResolve)

		protected.GET("/dashboard/stats", middleware.RequireOperation(models.OpViewDashboard), dashboardHandler.GetStats)

		protected.GET("/notifications", notificationHandler.GetNotifications)
		protected.GET("/notifications/unread_count", notificationHandler.GetUnreadCount)
		protected.POST("/notifications/mark_all_read", notificationHandler.MarkAllAsRead)
		protected.PATCH("/notifications/:id", notificationHandler.MarkAsRead)

		protected.GET("/users/me", userHandler.GetMe)
		protected.GET("/users", middleware.RequireOperation(models.OpListUsers), userHandler.GetUsers)
	}

	router.GET("/ws/notifications", wsHandler.HandleNotifications)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Endpoint not found",
			"path":    c.Request.URL.Path,
		})
	})

	return router
}

func setupHealthRoutes(router *gin.Engine, deps Dependencies) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
			"uptime":    time.Since(deps.StartedAt).String(),
			"version":   deps.Version,
			"stats": gin.H{
				"websocket_connections": deps.Hub.ConnectionsCount(),
				"online_users":          deps.Hub.OnlineUsersCount(),
			},
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := deps.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ready": true})
	})

	router.GET("/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"alive": true})
	})
}
