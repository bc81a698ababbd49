package handler

import (
	"context"
	"net/http"
	"time"

	"carmen/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health returns a JSON health check response.
// Checks DB and Redis connectivity plus the circuit breakers; never exposes
// credentials or internals. An open breaker reports "degraded" but stays 200.
func Health(db *gorm.DB, rdb *redis.Client, breakers ...*infra.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "connected"
		if rdb.Ping(ctx).Err() != nil {
			redisStatus = "error"
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus != "connected" {
			status = http.StatusServiceUnavailable
		}

		overall := "ok"
		snapshots := make([]infra.CBSnapshot, 0, len(breakers))
		for _, b := range breakers {
			snap := b.Snapshot()
			if snap.State != infra.CBClosed.String() {
				overall = "degraded"
			}
			snapshots = append(snapshots, snap)
		}
		if status != http.StatusOK {
			overall = "error"
		}

		c.JSON(status, gin.H{
			"ok":       status == http.StatusOK,
			"status":   overall,
			"db":       dbStatus,
			"redis":    redisStatus,
			"breakers": snapshots,
		})
	}
}
