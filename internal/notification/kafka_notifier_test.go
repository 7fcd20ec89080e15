package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type tierName string

func TestKafkaNotifierPublishesEnvelope(t *testing.T) {
	writer := &fakeWriter{}
	notifier := NewKafkaNotifier(writer, time.Second, zap.NewNop(), nil)
	notifier.now = func() time.Time { return time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC) }

	err := notifier.Notify(context.Background(), "seller-1", KindBoostExpiringSoon, map[string]any{
		"boost_id": snowflake.ID(42),
		"tier":     tierName("daily"),
		"end_date": time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC),
		"hours":    3,
	})
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "seller-1", string(msg.Key))
	assert.Equal(t, "boost-expiring_soon", headerCarrier{headers: &msg.Headers}.Get("event_type"))

	var envelope structpb.Struct
	require.NoError(t, protojson.Unmarshal(msg.Value, &envelope))
	fields := envelope.AsMap()
	assert.Equal(t, "boost.expiring_soon", fields["type"])
	assert.Equal(t, "2026-02-01T09:00:00Z", fields["occurred_at"])
	data := fields["data"].(map[string]any)
	assert.Equal(t, "42", data["boost_id"])
	assert.Equal(t, "daily", data["tier"])
	assert.Equal(t, "2026-02-02T09:00:00Z", data["end_date"])
	assert.Equal(t, float64(3), data["hours"])
}

func TestKafkaNotifierRejectsMissingUser(t *testing.T) {
	notifier := NewKafkaNotifier(&fakeWriter{}, time.Second, zap.NewNop(), nil)
	err := notifier.Notify(context.Background(), " ", KindBoostExpired, nil)
	assert.ErrorIs(t, err, ErrInvalidNotification)
}

func TestKafkaNotifierWrapsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	notifier := NewKafkaNotifier(&fakeWriter{err: boom}, time.Second, zap.NewNop(), nil)
	err := notifier.Notify(context.Background(), "seller-1", KindBoostRenewed, map[string]any{})
	assert.ErrorIs(t, err, boom)
}

func TestKafkaWriterIsAsync(t *testing.T) {
	var got error
	writer := NewKafkaWriter([]string{"localhost:9092"}, "boost-events", time.Second, func(_ []kafka.Message, err error) {
		got = err
	})
	assert.True(t, writer.Async)
	require.NotNil(t, writer.Completion)

	boom := errors.New("broker down")
	writer.Completion(nil, boom)
	assert.ErrorIs(t, got, boom)
}

func TestKafkaNotifierCompletedLogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	writer := &fakeWriter{}
	notifier := NewKafkaNotifier(writer, time.Second, zap.New(core), nil)
	notifier.async = true

	require.NoError(t, notifier.Notify(context.Background(), "seller-1", KindBoostRenewed, map[string]any{}))
	require.Len(t, writer.messages, 1)

	notifier.Completed(writer.messages, nil)
	assert.Equal(t, 0, logs.Len())

	notifier.Completed(writer.messages, errors.New("leader not available"))
	entries := logs.FilterMessage("notification delivery failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, string(KindBoostRenewed), fields["kind"])
	assert.Equal(t, "seller-1", fields["user_id"])
}

func TestHeaderCarrierSetReplaces(t *testing.T) {
	headers := []kafka.Header{}
	carrier := headerCarrier{headers: &headers}
	carrier.Set("traceparent", "a")
	carrier.Set("traceparent", "b")
	assert.Equal(t, []string{"traceparent"}, carrier.Keys())
	assert.Equal(t, "b", carrier.Get("traceparent"))
}
