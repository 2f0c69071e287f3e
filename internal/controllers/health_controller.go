package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Pinger reports database reachability; *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthController struct {
	db      Pinger
	started time.Time
	now     func() time.Time
	log     logrus.FieldLogger
}

func NewHealthController(db Pinger, log logrus.FieldLogger) *HealthController {
	return &HealthController{db: db, started: time.Now(), now: time.Now, log: log}
}

// Health answers 503 when the database cannot be reached.
func (hc *HealthController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	now := hc.now()
	status, dbStatus, code := "ok", "connected", http.StatusOK
	if err := hc.db.PingContext(ctx); err != nil {
		hc.log.WithError(err).Warn("health check: database unreachable")
		status, dbStatus, code = "degraded", "disconnected", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"success":   code == http.StatusOK,
		"status":    status,
		"uptime":    now.Sub(hc.started).Seconds(),
		"timestamp": now.UTC().Format(time.RFC3339),
		"database":  dbStatus,
	})
}
