package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/prairie-backend/internal/config"
	"github.com/stemsi/prairie-backend/internal/handler"
	"github.com/stemsi/prairie-backend/internal/middleware"
	"github.com/stemsi/prairie-backend/internal/model"
	"github.com/stemsi/prairie-backend/internal/response"
	"github.com/stemsi/prairie-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Variant *handler.VariantHandler
	Grading *handler.GradingHandler
	Sharing *handler.SharingHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background helpers such as the rate limiter sweeper.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{
		"Origin", "Content-Type", "Authorization", "X-Request-ID", middleware.HeaderEffectiveUserID,
	}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Generated files are served as-is; everything else may be compressed.
	brotliConfig := middleware.DefaultBrotliConfig
	brotliConfig.Skipper = func(c *gin.Context) bool {
		return strings.Contains(c.FullPath(), "/files/")
	}
	router.Use(middleware.BrotliWithConfig(brotliConfig))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.GET("/me", middleware.RequireAuth(authService), handlers.Auth.Me)
	}

	// ─── 2. Variant Group (JWT) ────────────────────────────────────────
	fileLimiter := middleware.NewRateLimiter(ctx, cfg.FileRateLimit, time.Minute)

	api := router.Group("/api/v1")
	api.Use(middleware.RequireAuth(authService))
	{
		api.POST("/questions/:question_id/variants", middleware.NoStore(), handlers.Variant.CreateQuestionVariant)
		api.POST("/instance-questions/:iq_id/variant", middleware.NoStore(), handlers.Variant.EnsureInstanceQuestionVariant)
		api.GET("/variants/:variant_id", middleware.NoStore(), handlers.Variant.GetVariant)
		api.GET("/variants/:variant_id/files/:filename",
			fileLimiter.Middleware(),
			middleware.PrivateCacheControl(300),
			handlers.Variant.GetVariantFile,
		)
	}

	// ─── 3. Sharing Group (JWT + Instructor) ───────────────────────────
	sharing := router.Group("/api/v1/courses/:course_id/sharing")
	sharing.Use(
		middleware.RequireAuth(authService),
		middleware.RequireRole(model.RoleInstructor),
	)
	{
		sharing.GET("", handlers.Sharing.GetSharing)
		sharing.POST("/name", handlers.Sharing.ChooseSharingName)
		sharing.POST("/id", handlers.Sharing.RegenerateSharingID)
		sharing.POST("/sets", handlers.Sharing.CreateSharingSet)
		sharing.POST("/sets/:set_id/courses", handlers.Sharing.AddCourseToSharingSet)
		sharing.POST("/sets/:set_id/questions", handlers.Sharing.AddQuestionToSharingSet)
		sharing.DELETE("/sets/:set_id/courses/:consumer_id", handlers.Sharing.RemoveCourseFromSharingSet)
	}

	// ─── 4. External Grader Callbacks ──────────────────────────────────
	grader := router.Group("/api/v1/grading-jobs")
	grader.Use(middleware.RequireGraderSecret(cfg.GraderSecret))
	{
		grader.POST("/:job_id/status", handlers.Grading.UpdateGradingJobStatus)
	}

	// ─── 5. WebSocket Group (variant token auth per message) ───────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/external-grading", handlers.WS.ExternalGradingStream)
	}

	return router
}
