package notification

import (
	"context"
	"strings"

	obsmetrics "github.com/smallbiznis/boostd/internal/observability/metrics"
	"go.uber.org/zap"
)

type logNotifier struct {
	log        *zap.Logger
	obsMetrics *obsmetrics.Metrics
}

// NewLogNotifier writes notifications to the service log. Used in development.
func NewLogNotifier(log *zap.Logger, metrics *obsmetrics.Metrics) Notifier {
	return &logNotifier{log: log.Named("notifier"), obsMetrics: metrics}
}

func (n *logNotifier) Notify(ctx context.Context, userID string, kind Kind, payload map[string]any) error {
	if strings.TrimSpace(userID) == "" || kind == "" {
		return ErrInvalidNotification
	}
	n.log.Info("notification",
		zap.String("user_id", userID),
		zap.String("kind", string(kind)),
		zap.Any("payload", payload),
	)
	if n.obsMetrics != nil {
		n.obsMetrics.RecordNotification(ctx, DriverLog, string(kind), "sent")
	}
	return nil
}
