package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	"github.com/segmentio/kafka-go"
	obscontext "github.com/smallbiznis/boostd/internal/observability/context"
	obsmetrics "github.com/smallbiznis/boostd/internal/observability/metrics"
	"github.com/smallbiznis/boostd/internal/observability/tracing"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// MessageWriter is the subset of *kafka.Writer used here.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaNotifier struct {
	writer     MessageWriter
	timeout    time.Duration
	log        *zap.Logger
	obsMetrics *obsmetrics.Metrics
	now        func() time.Time
	async      bool
}

const headerKind = "kind"

// NewKafkaWriter returns an async writer. WriteMessages only enqueues; batch
// outcomes are delivered to completion.
func NewKafkaWriter(brokers []string, topic string, timeout time.Duration, completion func([]kafka.Message, error)) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: timeout,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion:   completion,
	}
}

// NewAsyncKafkaNotifier wires an async writer whose delivery results are
// reported through Completed.
func NewAsyncKafkaNotifier(brokers []string, topic string, timeout time.Duration, log *zap.Logger, metrics *obsmetrics.Metrics) *KafkaNotifier {
	n := NewKafkaNotifier(nil, timeout, log, metrics)
	n.writer = NewKafkaWriter(brokers, topic, timeout, n.Completed)
	n.async = true
	return n
}

func NewKafkaNotifier(writer MessageWriter, timeout time.Duration, log *zap.Logger, metrics *obsmetrics.Metrics) *KafkaNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KafkaNotifier{
		writer:     writer,
		timeout:    timeout,
		log:        log.Named("notifier.kafka"),
		obsMetrics: metrics,
		now:        time.Now,
	}
}

// Notify publishes one envelope keyed by seller so a seller's events stay ordered.
func (n *KafkaNotifier) Notify(ctx context.Context, userID string, kind Kind, payload map[string]any) error {
	userID = strings.TrimSpace(userID)
	if userID == "" || kind == "" {
		return ErrInvalidNotification
	}

	value, err := n.encode(ctx, userID, kind, payload)
	if err != nil {
		n.observe(ctx, kind, "failed")
		return err
	}

	msg := kafka.Message{
		Key:   []byte(userID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(slug.Make(string(kind)))},
			{Key: headerKind, Value: []byte(kind)},
		},
	}
	carrier := headerCarrier{headers: &msg.Headers}
	tracing.InjectContext(ctx, carrier)

	writeCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	if err := n.writer.WriteMessages(writeCtx, msg); err != nil {
		n.observe(ctx, kind, "failed")
		return fmt.Errorf("publish %s: %w", kind, err)
	}
	if n.async {
		n.observe(ctx, kind, "queued")
		return nil
	}
	n.observe(ctx, kind, "sent")
	return nil
}

// Completed receives the outcome of an async batch.
func (n *KafkaNotifier) Completed(messages []kafka.Message, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	for i := range messages {
		kind := Kind(headerCarrier{headers: &messages[i].Headers}.Get(headerKind))
		n.observe(context.Background(), kind, outcome)
		if err != nil {
			n.log.Warn("notification delivery failed",
				zap.String("kind", string(kind)),
				zap.String("user_id", string(messages[i].Key)),
				zap.Error(err),
			)
		}
	}
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

func (n *KafkaNotifier) encode(ctx context.Context, userID string, kind Kind, payload map[string]any) ([]byte, error) {
	data, err := structpb.NewStruct(normalizePayload(payload))
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	envelope, err := structpb.NewStruct(map[string]any{
		"id":          ulid.Make().String(),
		"type":        string(kind),
		"user_id":     userID,
		"occurred_at": n.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	envelope.Fields["data"] = structpb.NewStructValue(data)
	if cid := obscontext.CorrelationIDFromContext(ctx); cid != "" {
		envelope.Fields["correlation_id"] = structpb.NewStringValue(cid)
	}
	return protojson.Marshal(envelope)
}

func (n *KafkaNotifier) observe(ctx context.Context, kind Kind, outcome string) {
	if n.obsMetrics == nil {
		return
	}
	n.obsMetrics.RecordNotification(ctx, DriverKafka, string(kind), outcome)
}

// normalizePayload converts values structpb cannot take directly.
func normalizePayload(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		switch v := value.(type) {
		case time.Time:
			out[key] = v.UTC().Format(time.RFC3339)
		case fmt.Stringer:
			out[key] = v.String()
		default:
			if _, err := structpb.NewValue(v); err != nil {
				out[key] = fmt.Sprint(v)
				continue
			}
			out[key] = v
		}
	}
	return out
}

type headerCarrier struct {
	headers *[]kafka.Header
}

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range *c.headers {
		if h.Key == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}
