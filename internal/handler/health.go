package handler

import (
	"context"
	"net/http"
	"time"

	"cashledger/internal/apierror"
	"cashledger/internal/infra"
	"cashledger/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health returns a JSON health check response.
// Checks DB and Redis connectivity and reports breaker states; never exposes
// credentials or internals. An open breaker only degrades reporting, so it
// does not fail the check.
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

		cb := make(map[string]string, len(breakers))
		for _, b := range breakers {
			cb[b.Name()] = b.State().String()
		}

		c.JSON(status, gin.H{
			"ok":       status == http.StatusOK,
			"db":       dbStatus,
			"redis":    redisStatus,
			"breakers": cb,
		})
	}
}

// ── Dead-letter queues (admin) ────────────────────────────────────────────────

type JobsHandler struct{ rdb *redis.Client }

func NewJobsHandler(rdb *redis.Client) *JobsHandler { return &JobsHandler{rdb: rdb} }

// DLQ godoc
// @Summary Number of dead-lettered jobs per queue
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]int64
// @Router /v1/jobs/dlq [get]
func (h *JobsHandler) DLQ(c *gin.Context) {
	c.JSON(http.StatusOK, worker.DLQStats(c.Request.Context(), h.rdb))
}

// Replay godoc
// @Summary Moves dead-lettered jobs of a queue back for processing
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param queue path string true "closing_report or email"
// @Param limit query int false "Max jobs (default 100)"
// @Success 200 {object} map[string]int
// @Router /v1/jobs/dlq/{queue}/replay [post]
func (h *JobsHandler) Replay(c *gin.Context) {
	var queue string
	switch c.Param("queue") {
	case "closing_report":
		queue = worker.QueueClosingReport
	case "email":
		queue = worker.QueueEmail
	default:
		c.JSON(http.StatusNotFound, apierror.New("Unknown queue"))
		return
	}
	n, err := worker.ReplayDLQ(c.Request.Context(), h.rdb, queue, queryInt(c, "limit", 100))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"replayed": n})
}
