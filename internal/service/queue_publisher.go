package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/zapshift/parcel-service/internal/queue"
)

// EventPublisher delivers domain events to downstream consumers.
type EventPublisher interface {
	PublishParcelPaid(ctx context.Context, ev queue.ParcelPaidEvent) error
}

// AMQPPublisher publishes events to RabbitMQ.  It opens a connection per
// publish; payment confirmations are rare enough that a pooled
// connection is not worth its reconnect handling.
type AMQPPublisher struct {
	URL         string
	DialTimeout time.Duration
}

// NewAMQPPublisher returns a publisher for the broker at url.
func NewAMQPPublisher(url string) *AMQPPublisher {
	return &AMQPPublisher{URL: url, DialTimeout: 3 * time.Second}
}

// PublishParcelPaid sends ev to the parcel.paid queue as a persistent
// JSON message.
func (p *AMQPPublisher) PublishParcelPaid(ctx context.Context, ev queue.ParcelPaidEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(p.DialTimeout)})
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts; declaring is idempotent.
	if _, err := ch.QueueDeclare(
		queue.ParcelPaidQueue, // name
		true,                  // durable
		false,                 // autoDelete
		false,                 // exclusive
		false,                 // noWait
		nil,                   // args
	); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    ev.TransactionID,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.ParcelPaidQueue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}
