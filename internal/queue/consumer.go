package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/iliyamo/facility-reservation/internal/logger"
)

// NewAuditLogger returns a JSON zap logger appending to path.  The
// directory is created if missing.
func NewAuditLogger(path string) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir audit log dir: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "logged_at"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// AuditConsumer drains the booking event queue into an audit log.
type AuditConsumer struct {
	URL   string
	Queue string
	Audit *zap.Logger
}

// Run consumes until ctx is cancelled, reconnecting with backoff when
// the broker goes away.  Malformed messages are rejected without
// requeue so one bad payload cannot stall the queue.
func (a *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(a.URL)
		if err != nil {
			logger.WarnKV(ctx, "audit consumer: dial failed", "error", err, "retry_in", backoff.String())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = a.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.WarnKV(ctx, "audit consumer: loop ended, reconnecting", "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (a *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.WarnKV(ctx, "audit consumer: set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(a.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, a.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	logger.InfoKV(ctx, "audit consumer started", "queue", a.Queue)

	for d := range msgs {
		if err := handleMessage(a.Audit, d.Body); err != nil {
			logger.WarnKV(ctx, "audit consumer: rejected message", "error", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// handleMessage writes one audit record per booking event.
func handleMessage(audit *zap.Logger, body []byte) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.EventID == "" || ev.Type == "" || ev.BookingID == 0 {
		return errors.New("event is missing event_id, type or booking_id")
	}
	fields := []zap.Field{
		zap.String("event_id", ev.EventID),
		zap.Uint64("booking_id", ev.BookingID),
		zap.Uint64("facility_id", ev.FacilityID),
		zap.Uint64("requester_id", ev.RequesterID),
		zap.String("organization", ev.Organization),
		zap.String("from", string(ev.From)),
		zap.String("to", string(ev.To)),
		zap.Uint64("actor_id", ev.ActorID),
		zap.String("actor_role", string(ev.ActorRole)),
		zap.Int("schedules", len(ev.Schedules)),
		zap.Time("occurred_at", ev.OccurredAt),
	}
	if ev.Reason != "" {
		fields = append(fields, zap.String("reason", ev.Reason))
	}
	if ev.Billing != nil {
		fields = append(fields,
			zap.Uint64("billing_id", ev.Billing.ID),
			zap.String("billing_status", string(ev.Billing.Status)),
			zap.String("total_amount", ev.Billing.Total.StringFixed(2)),
		)
	}
	audit.Info(ev.Type, fields...)
	return nil
}
