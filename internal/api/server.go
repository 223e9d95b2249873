package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"habbo-sync/internal/config"
	"habbo-sync/internal/db"
	"habbo-sync/internal/redis"
	"habbo-sync/internal/store"
	"habbo-sync/internal/sync"
)

type Server struct {
	log       *slog.Logger
	db        *db.DB
	redis     *redis.Client
	cfg       config.Config
	router    *gin.Engine
	store     *store.Postgres
	registrar *sync.Registrar
	scheduler *sync.Scheduler
	syncer    sync.UserSyncer
}

func NewServer(log *slog.Logger, dbConn *db.DB, redisClient *redis.Client, cfg config.Config, st *store.Postgres, registrar *sync.Registrar, scheduler *sync.Scheduler, syncer sync.UserSyncer) *Server {
	s := &Server{
		log:       log,
		db:        dbConn,
		redis:     redisClient,
		cfg:       cfg,
		router:    gin.New(),
		store:     st,
		registrar: registrar,
		scheduler: scheduler,
		syncer:    syncer,
	}

	gin.SetMode(gin.ReleaseMode)
	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.loggingMiddleware())
	r.Use(s.inputValidationMiddleware())
	r.Use(s.rateLimitMiddleware())

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.POST("/tracked", s.ensureTracked)
		v1.GET("/tracked/:hotel/:habbo_id", s.getTracked)
		v1.GET("/tracked/:hotel/:habbo_id/activities", s.getActivities)
		v1.GET("/health", s.health)

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(s.adminAuthMiddleware())
		{
			admin.POST("/sync/run", s.runSync)
			admin.POST("/tracked/:hotel/:habbo_id/sync", s.manualSync)
		}
	}

	// Legacy route for load balancer probes
	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 10*time.Second)
}
