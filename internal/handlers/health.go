package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewHealthHandler(db *gorm.DB, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient}
}

// Health reports liveness.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "catalog-service",
	})
}

// Ready reports readiness: the database must answer; the cache is reported
// but never fails readiness because the service degrades to direct store
// reads without it.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		dbStatus = "unavailable"
	}

	cacheStatus := "disabled"
	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			cacheStatus = "unavailable"
		} else {
			cacheStatus = "ok"
		}
	}

	status := http.StatusOK
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":   dbStatus,
		"database": dbStatus,
		"cache":    cacheStatus,
	})
}
