package transport

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQConfig names the connection and queue a RabbitMQConnection
// binds to, mirroring the fields the original connections module took
// for its (unfinished) RabbitMqConnection constructor.
type RabbitMQConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	VHost    string
	Queue    string
}

func (c RabbitMQConfig) url() string {
	user, pass := c.Username, c.Password
	if user == "" {
		user = "guest"
	}
	if pass == "" {
		pass = "guest"
	}
	vhost := c.VHost
	if vhost == "" {
		vhost = "/"
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s", user, pass, c.Host, c.Port, vhost)
}

// RabbitMQConnection is a Receiver and Submitter backed by a single
// AMQP channel bound to one queue, completing the submit-only stub the
// original module left as a todo.
type RabbitMQConnection struct {
	name    string
	queue   string
	conn    *amqp.Connection
	channel *amqp.Channel
	msgs    <-chan amqp.Delivery
}

// DialRabbitMQ connects, opens a channel, declares cfg.Queue durable,
// and starts consuming it.
func DialRabbitMQ(name string, cfg RabbitMQConfig) (*RabbitMQConnection, error) {
	conn, err := amqp.Dial(cfg.url())
	if err != nil {
		return nil, fmt.Errorf("transport: rabbitmq: connect: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: rabbitmq: open channel: %w", err)
	}
	if _, err := channel.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("transport: rabbitmq: declare queue: %w", err)
	}
	msgs, err := channel.Consume(cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("transport: rabbitmq: consume: %w", err)
	}

	return &RabbitMQConnection{
		name:    name,
		queue:   cfg.Queue,
		conn:    conn,
		channel: channel,
		msgs:    msgs,
	}, nil
}

func (r *RabbitMQConnection) Name() string { return r.name }

func (r *RabbitMQConnection) ReceiveOne(ctx context.Context) (any, func(), error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case d, ok := <-r.msgs:
		if !ok {
			return nil, nil, ErrStreamFinished
		}
		var payload any
		if err := json.Unmarshal(d.Body, &payload); err != nil {
			_ = d.Nack(false, false)
			return nil, nil, fmt.Errorf("transport: rabbitmq: decode message: %w", err)
		}
		delivery := d
		return payload, func() { _ = delivery.Ack(false) }, nil
	}
}

func (r *RabbitMQConnection) Submit(ctx context.Context, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("transport: rabbitmq: encode payload: %w", err)
	}
	err = r.channel.PublishWithContext(ctx, "", r.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        encoded,
	})
	if err != nil {
		return fmt.Errorf("transport: rabbitmq: publish: %w", err)
	}
	return nil
}

func (r *RabbitMQConnection) Close() error {
	chErr := r.channel.Close()
	connErr := r.conn.Close()
	if chErr != nil {
		return chErr
	}
	return connErr
}
