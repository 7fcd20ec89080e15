package notification

import (
	"context"
	"strings"

	"github.com/smallbiznis/boostd/internal/config"
	obsmetrics "github.com/smallbiznis/boostd/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	fx.Provide(NewNotifier),
)

type Params struct {
	fx.In

	Lc         fx.Lifecycle
	Cfg        config.Config
	Log        *zap.Logger
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// NewNotifier selects the driver from config. Kafka without brokers falls back to log.
func NewNotifier(p Params) Notifier {
	switch strings.ToLower(strings.TrimSpace(p.Cfg.NotifierDriver)) {
	case DriverNoop:
		return NewNoop()
	case DriverKafka:
		if len(p.Cfg.Kafka.Brokers) == 0 {
			p.Log.Warn("kafka notifier selected without brokers, using log notifier")
			return NewLogNotifier(p.Log, p.ObsMetrics)
		}
		notifier := NewAsyncKafkaNotifier(p.Cfg.Kafka.Brokers, p.Cfg.Kafka.Topic, p.Cfg.Kafka.WriteTimeout, p.Log, p.ObsMetrics)
		p.Lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return notifier.Close()
			},
		})
		return notifier
	default:
		return NewLogNotifier(p.Log, p.ObsMetrics)
	}
}
