package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/boostd/internal/scheduler"
	"go.uber.org/zap"
)

type sweepRunner interface {
	RunOnce(ctx context.Context) (scheduler.Summary, error)
}

// RunScheduler lets an external cron drive one sweep pass. Per-record failures
// are logged; the caller always gets the summary.
func (s *Server) RunScheduler(c *gin.Context) {
	secret := strings.TrimSpace(s.cfg.Scheduler.TriggerSecret)
	if s.sweeper == nil || secret == "" {
		AbortWithError(c, ErrNotFound)
		return
	}

	provided := strings.TrimSpace(c.GetHeader(HeaderSchedulerSecret))
	if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	summary, err := s.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		s.log.Error("scheduler run finished with errors",
			zap.Error(err),
			zap.Int("expired", summary.Expired),
			zap.Int("failed", summary.Failed),
		)
	}

	c.JSON(http.StatusOK, summary)
}
