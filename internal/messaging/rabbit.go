// internal/messaging/rabbit.go
package messaging

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"leadgen/internal/metrics"
	"leadgen/internal/model"
)

const LeadCapturedType = "lead.captured"

// LeadCapturedEvent is the body published for every newly stored lead.
type LeadCapturedEvent struct {
	Type       string     `json:"type"`
	OccurredAt time.Time  `json:"occurred_at"`
	Lead       model.Lead `json:"lead"`
}

type RabbitClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	log     logrus.FieldLogger

	// amqp channels are not safe for concurrent publishes.
	mu sync.Mutex
}

// NewRabbitClient dials url and declares queue together with its
// dead-letter queue.
func NewRabbitClient(url, queue string, log logrus.FieldLogger) (*RabbitClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to RabbitMQ")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to create channel")
	}

	r := &RabbitClient{
		conn:    conn,
		channel: ch,
		queue:   queue,
		log:     log,
	}
	if err := r.DeclareQueue(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *RabbitClient) GetChannel() *amqp.Channel {
	return r.channel
}

// DeclareQueue creates the durable events queue and its DLQ
func (r *RabbitClient) DeclareQueue() error {
	dlqName := r.queue + "_dlq"

	_, err := r.channel.QueueDeclare(
		dlqName,
		true, false, false, false,
		nil,
	)
	if err != nil {
		return errors.Wrap(err, "declare DLQ")
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlqName,
	}
	_, err = r.channel.QueueDeclare(
		r.queue,
		true, false, false, false,
		args,
	)
	if err != nil {
		return errors.Wrap(err, "declare events queue")
	}

	r.log.WithField("queue", r.queue).Info("rabbitmq queues declared")
	return nil
}

// PublishLead publishes a lead.captured event as a persistent message.
func (r *RabbitClient) PublishLead(lead model.Lead) error {
	body, err := json.Marshal(LeadCapturedEvent{
		Type:       LeadCapturedType,
		OccurredAt: time.Now().UTC(),
		Lead:       lead,
	})
	if err != nil {
		return errors.Wrap(err, "encode lead event")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = r.channel.Publish(
		"",      // default exchange
		r.queue, // routing key (queue name)
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    lead.ID,
			Timestamp:    time.Now().UTC(),
			Type:         LeadCapturedType,
			Body:         body,
		},
	)
	if err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return errors.Wrapf(err, "failed to publish to queue %s", r.queue)
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
	return nil
}

// UpdateQueueDepth refreshes the queue depth gauge.
func (r *RabbitClient) UpdateQueueDepth() {
	r.mu.Lock()
	q, err := r.channel.QueueInspect(r.queue)
	r.mu.Unlock()
	if err != nil {
		r.log.WithError(err).Warn("failed to inspect events queue")
		return
	}
	metrics.EventQueueDepth.Set(float64(q.Messages))
}

// Close cleans up connection and channel
func (r *RabbitClient) Close() error {
	if err := r.channel.Close(); err != nil {
		return err
	}
	return r.conn.Close()
}
