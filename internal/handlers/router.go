package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/castiq/config"
	"github.com/mossy-p/castiq/internal/middleware"
	"github.com/mossy-p/castiq/internal/signaling"
	"github.com/mossy-p/castiq/internal/store"
)

// AssetStatus reports render asset availability for /health.
type AssetStatus interface {
	Ready() bool
	Status() map[string]bool
}

// Deps are the collaborators the routes need.
type Deps struct {
	Config   *config.Config
	Registry *signaling.Registry
	Relay    *signaling.Relay
	Presence store.PresenceStore
	Pipeline Pipeline
	Assets   AssetStatus
}

func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestLogger(), gin.Recovery())

	// Global CORS middleware (runs before routing)
	router.Use(OriginFilter(cfg.AllowedOrigins))

	router.GET("/health", Health(d.Assets))

	// WebSocket signaling, also served at / for older clients
	signal := HandleSignaling(d.Registry, d.Relay, d.Presence)
	router.GET("/ws", signal)
	router.GET("/", signal)

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/auth/login", Login(cfg.JWTSecret))
		apiGroup.GET("/peers/:peerId", PeerStatus(d.Registry, d.Presence))
	}

	media := router.Group("")
	jobs := apiGroup.Group("")
	if cfg.AuthRequired {
		media.Use(middleware.JWTAuth(cfg.JWTSecret))
		jobs.Use(middleware.JWTAuth(cfg.JWTSecret))
	}
	{
		media.POST("/upload", Upload(d.Pipeline))
		media.POST("/render", Render(d.Pipeline))
		media.POST("/transcribe", Transcribe(d.Pipeline))
		media.POST("/summarize", Summarize(d.Pipeline))
		media.POST("/summarize/export", ExportSummary(cfg.Pipeline.TempDir))
		jobs.GET("/jobs/:jobId", GetJob(d.Pipeline))
	}

	return router
}

// Health reports "ok", or "degraded" while a render asset is missing.
func Health(assets AssetStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		var detail map[string]bool
		if assets != nil {
			detail = assets.Status()
			if !assets.Ready() {
				status = "degraded"
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": status, "assets": detail})
	}
}
