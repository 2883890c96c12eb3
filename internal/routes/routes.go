package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/24f2002329/caniedit/internal/handlers"
	"github.com/24f2002329/caniedit/internal/middleware"
)

// multipartMemory caps how much of an upload gin keeps in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

// Options configures the router beyond the handlers themselves.
type Options struct {
	AllowedOrigins []string
	Auth           *middleware.Authenticator
	Log            *zap.Logger
}

// CORSMiddleware allows the configured frontends to call the API with
// bearer tokens.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowOrigins = []string{"*"}
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func SetupRouter(h *handlers.Handlers, opts Options) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = multipartMemory

	// --- APPLY THE CORS GUARD ---
	// This must be the very first thing the router uses
	router.Use(CORSMiddleware(opts.AllowedOrigins))
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(opts.Log))

	// --- Public Routes ---
	router.GET("/", h.Health)
	router.GET("/plans", h.ListPlans)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/files/:filename", h.DownloadFile)

	// --- Tool Routes (Optional Login) ---
	tool := router.Group("/tool")
	tool.Use(opts.Auth.OptionalAuth())
	{
		tool.POST("/:slug", h.RunTool)
		tool.DELETE("/:slug/:filename", h.DeleteToolFile)
	}

	// --- Protected Routes (Login Required) ---
	auth := router.Group("/")
	auth.Use(opts.Auth.RequireAuth())
	{
		me := auth.Group("/users/me")
		{
			me.GET("", h.GetMe)
			me.PATCH("", h.UpdateMe)
			me.GET("/usage", h.GetMyUsage)
			me.GET("/subscription", h.GetMySubscription)
			me.POST("/delete", h.DeleteMe)
			me.POST("/delete/cancel", h.CancelDeleteMe)
		}

		auth.POST("/subscriptions/starter", h.CreateStarterSubscription)
	}

	return router
}
