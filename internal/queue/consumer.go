package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/madeira/residential-services/internal/repository"
)

// Consumer drains the auth.events queue and persists each event to the
// auth_logs table. It runs a reconnect loop with exponential backoff and
// keeps the server operating through broker outages; malformed messages
// are rejected without requeue to avoid tight redelivery loops.
type Consumer struct {
	url   string
	audit *repository.AuditRepo
	log   zerolog.Logger
}

func NewConsumer(url string, audit *repository.AuditRepo, log zerolog.Logger) *Consumer {
	return &Consumer{url: url, audit: audit, log: log}
}

// Run blocks until ctx is cancelled, reconnecting to the broker as needed.
func (c *Consumer) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("auth-consumer: broker dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := c.consume(ctx, conn); err != nil {
			c.log.Warn().Err(err).Msg("auth-consumer: consume loop ended, reconnecting")
		}
		_ = conn.Close()
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn().Err(err).Msg("auth-consumer: set QoS failed")
	}

	if _, err := ch.QueueDeclare(AuthEventQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(AuthEventQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(ctx, d.Body); err != nil {
				c.log.Warn().Err(err).Msg("auth-consumer: handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var ev AuthEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.UserID == "" || ev.Event == "" {
		return errors.New("event missing user_id or event kind")
	}
	return c.audit.Record(ctx, repository.AuthLog{
		UserID:     ev.UserID,
		Event:      ev.Event,
		IPAddress:  ev.IPAddress,
		UserAgent:  ev.UserAgent,
		DeviceName: ev.DeviceName,
	})
}
