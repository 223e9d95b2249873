package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"habbo-sync/internal/habbo"
	"habbo-sync/internal/security"
	"habbo-sync/internal/sync"
)

type trackRequest struct {
	HabboName string `json:"habbo_name"`
	HabboID   string `json:"habbo_id"`
	Hotel     string `json:"hotel"`
}

// ensureTracked registra (ou reativa) o tracking de um usuário e dispara
// um sync imediato em background.
func (s *Server) ensureTracked(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_body", "message": "corpo json invalido"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	action, err := s.registrar.EnsureTracked(ctx, req.HabboName, req.HabboID, req.Hotel)
	if err != nil {
		if errors.Is(err, sync.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		s.log.Error("ensure_tracked_failed", "habbo_id", req.HabboID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"action":    string(action),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// runSync executa um ciclo de batch sync inline e devolve o relatório.
// 200 mesmo com falhas parciais; 500 só se a carga inicial falhar.
func (s *Server) runSync(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Minute)
	defer cancel()

	report, err := s.scheduler.Run(ctx)
	if err != nil {
		s.log.Error("batch_sync_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "sync_load_failed", "message": err.Error()}})
		return
	}

	c.JSON(http.StatusOK, report)
}

// manualSync roda um sync único para um usuário já rastreado.
func (s *Server) manualSync(c *gin.Context) {
	habboID, hotel, ok := s.trackedParams(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	user, err := s.store.FindTracked(ctx, habboID, hotel)
	if err != nil {
		s.log.Error("find_tracked_failed", "habbo_id", habboID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "internal", "message": "internal error"}})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "not_tracked", "message": "usuario nao rastreado"}})
		return
	}

	result := s.syncer.SyncOne(ctx, *user)
	c.JSON(http.StatusOK, result)
}

func (s *Server) getTracked(c *gin.Context) {
	habboID, hotel, ok := s.trackedParams(c)
	if !ok {
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	user, err := s.store.FindTracked(ctx, habboID, hotel)
	if err != nil {
		s.log.Error("find_tracked_failed", "habbo_id", habboID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "internal", "message": "internal error"}})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "not_tracked", "message": "usuario nao rastreado"}})
		return
	}

	snapshot, err := s.store.LoadSnapshot(ctx, habboID, hotel)
	if err != nil {
		s.log.Error("load_snapshot_failed", "habbo_id", habboID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "internal", "message": "internal error"}})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":     user,
		"snapshot": snapshot,
	})
}

func (s *Server) getActivities(c *gin.Context) {
	habboID, hotel, ok := s.trackedParams(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	ctx, cancel := s.ctx(c)
	defer cancel()

	// check cache
	cacheKey := fmt.Sprintf("activities:%s:%s:%d:%d", hotel, habboID, limit, offset)
	if cached, err := s.redis.Get(ctx, cacheKey); err == nil && cached != "" {
		c.Header("X-Cache", "HIT")
		c.Data(http.StatusOK, "application/json", []byte(cached))
		return
	}

	events, err := s.store.ListActivities(ctx, habboID, hotel, limit, offset)
	if err != nil {
		s.log.Error("list_activities_failed", "habbo_id", habboID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "internal", "message": "internal error"}})
		return
	}

	body := gin.H{"habbo_id": habboID, "hotel": hotel, "activities": events}
	if payload, err := json.Marshal(body); err == nil {
		_ = s.redis.Set(ctx, cacheKey, string(payload), 30*time.Second)
	}

	c.JSON(http.StatusOK, body)
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	dbStatus := "connected"
	if err := s.db.Pool.Ping(ctx); err != nil {
		dbStatus = "error"
	}

	redisStatus := "connected"
	if err := s.redis.RDB().Ping(ctx).Err(); err != nil {
		redisStatus = "error"
	}

	status := http.StatusOK
	overall := "healthy"
	if dbStatus != "connected" || redisStatus != "connected" {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status":   overall,
		"database": dbStatus,
		"redis":    redisStatus,
	})
}

// trackedParams valida e normaliza os path params (hotel, habbo_id).
func (s *Server) trackedParams(c *gin.Context) (habboID, hotel string, ok bool) {
	habboID = c.Param("habbo_id")
	if err := security.ValidateHabboID(habboID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_habbo_id", "message": "habbo_id invalido"}})
		return "", "", false
	}

	domain, err := habbo.NormalizeHotel(c.Param("hotel"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_hotel", "message": "hotel desconhecido"}})
		return "", "", false
	}

	return habboID, domain, true
}
