// Package service contains the RabbitMQ publisher for auth events. Errors
// are logged and returned so the auth flow can ignore broker failures
// without interrupting the request.
package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/madeira/residential-services/internal/queue"
)

// AuthEventPublisher publishes AuthEvents to the auth.events queue. It
// dials per publish: auth events are low-volume and a held connection
// would just be one more thing to supervise.
type AuthEventPublisher struct {
	url string
	log zerolog.Logger
}

func NewAuthEventPublisher(url string, log zerolog.Logger) *AuthEventPublisher {
	return &AuthEventPublisher{url: url, log: log}
}

// PublishAuthEvent sends one event, marked persistent so it survives a
// broker restart. Never panics; any error is logged and returned for the
// caller to ignore.
func (p *AuthEventPublisher) PublishAuthEvent(ctx context.Context, ev queue.AuthEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn().Err(err).Msg("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn().Err(err).Msg("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so events survive broker restarts.
	if _, err := ch.QueueDeclare(queue.AuthEventQueue, true, false, false, false, nil); err != nil {
		p.log.Warn().Err(err).Msg("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.AuthEventQueue, false, false, pub); err != nil {
		p.log.Warn().Err(err).Msg("rabbitmq: publish failed")
		return err
	}
	return nil
}
