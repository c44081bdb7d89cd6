// Package service holds adapters that connect the booking engine to
// external systems.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/facility-reservation/internal/booking"
	"github.com/iliyamo/facility-reservation/internal/logger"
	"github.com/iliyamo/facility-reservation/internal/queue"
)

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type dialFunc func(queueName string, timeout time.Duration) (channel, io.Closer, error)

// Publisher sends committed booking events to a durable RabbitMQ queue.
// It implements booking.Notifier: failures are logged and never reach
// the request that produced the event.  The connection is opened lazily
// and reopened after a publish error.  Dialing is bounded by the publish
// timeout and runs without holding the lock, so an unreachable broker
// delays each caller by at most that timeout.
type Publisher struct {
	queue   string
	timeout time.Duration
	dial    dialFunc

	mu   sync.Mutex
	ch   channel
	conn io.Closer
}

var _ booking.Notifier = (*Publisher)(nil)

// NewPublisher returns a publisher for the broker at url.
func NewPublisher(url, queueName string) *Publisher {
	return &Publisher{
		queue:   queueName,
		timeout: 5 * time.Second,
		dial: func(q string, timeout time.Duration) (channel, io.Closer, error) {
			conn, err := amqp.DialConfig(url, amqp.Config{
				Heartbeat: 10 * time.Second,
				Locale:    "en_US",
				Dial:      amqp.DefaultDial(timeout),
			})
			if err != nil {
				return nil, nil, fmt.Errorf("dial: %w", err)
			}
			ch, err := conn.Channel()
			if err != nil {
				_ = conn.Close()
				return nil, nil, fmt.Errorf("channel open: %w", err)
			}
			// Durable so messages survive broker restarts.
			if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
				_ = conn.Close()
				return nil, nil, fmt.Errorf("queue declare: %w", err)
			}
			return ch, conn, nil
		},
	}
}

// Notify publishes ev.  The request context may be cancelled as soon as
// the response is written, so publishing detaches from it.
func (p *Publisher) Notify(ctx context.Context, ev booking.Event) {
	msg := queue.NewBookingEvent(ev)
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.Publish(pubCtx, msg); err != nil {
		logger.ErrorKV(ctx, "publish booking event failed",
			"event", msg.Type, "event_id", msg.EventID, "booking_id", msg.BookingID, "error", err)
		return
	}
	logger.DebugKV(ctx, "booking event published", "event", msg.Type, "event_id", msg.EventID)
}

// Publish sends one event as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, ev queue.BookingEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.connect(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return errors.New("publish: connection closed")
	}
	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Type:         ev.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.resetLocked()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// connect dials when there is no open channel.  Concurrent callers may
// dial at the same time; the first channel installed wins and the others
// are closed.
func (p *Publisher) connect() error {
	p.mu.Lock()
	open := p.ch != nil
	p.mu.Unlock()
	if open {
		return nil
	}
	ch, conn, err := p.dial(p.queue, p.timeout)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil
	}
	p.ch, p.conn = ch, conn
	return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}
