// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/historian/internal/config"
	"github.com/tomtom215/historian/internal/logging"
	"github.com/tomtom215/historian/internal/models"
)

// DefaultTopic carries job lifecycle events.
const DefaultTopic = "history.import.jobs"

// subscriberBuffer is how many decoded events a subscriber may hold before
// publishers wait.
const subscriberBuffer = 64

// ErrBusClosed is returned after Close.
var ErrBusClosed = errors.New("event bus is closed")

// JobEvent is published on every job state transition.
type JobEvent struct {
	EventID        string          `json:"event_id"`
	JobID          string          `json:"job_id"`
	ServerID       string          `json:"server_id"`
	Status         models.JobState `json:"status"`
	TotalFetched   int             `json:"total_fetched"`
	TotalProcessed int             `json:"total_processed"`
	TotalStored    int             `json:"total_stored"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// NewJobEvent snapshots job.
func NewJobEvent(job *models.ImportJob) JobEvent {
	return JobEvent{
		EventID:        watermill.NewUUID(),
		JobID:          job.ID,
		ServerID:       job.ServerID,
		Status:         job.Status,
		TotalFetched:   job.TotalFetched,
		TotalProcessed: job.TotalProcessed,
		TotalStored:    job.TotalStored,
		ErrorMessage:   job.ErrorMessage,
		OccurredAt:     job.UpdatedAt,
	}
}

// Bus publishes job events over a watermill publisher and exposes a typed
// subscription. It implements jobs.Notifier.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
	transport  string
	logger     watermill.LoggerAdapter

	// shared is set when publisher and subscriber are the same GoChannel.
	shared bool

	mu     sync.RWMutex
	closed bool
}

// NewBus builds the transport selected by cfg: NATS when a URL is set,
// otherwise an in-process channel.
func NewBus(cfg *config.EventsConfig) (*Bus, error) {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	if cfg.NATSURL == "" {
		return NewGoChannelBus(topic), nil
	}
	return NewNATSBus(cfg.NATSURL, topic, cfg.MaxReconnects, cfg.ReconnectWait)
}

// NewGoChannelBus creates an in-process bus. Events published with no
// subscriber are dropped. Publish waits for subscribers to take the event,
// so subscribers see transitions in the order they happened.
func NewGoChannelBus(topic string) *Bus {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger())
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            subscriberBuffer,
		BlockPublishUntilSubscriberAck: true,
	}, logger)

	return &Bus{
		publisher:  ch,
		subscriber: ch,
		topic:      topic,
		transport:  "gochannel",
		logger:     logger,
		shared:     true,
	}
}

// NewNATSBus publishes to a NATS server using core NATS subjects. JetStream
// is not required; job events are informational and need no replay.
func NewNATSBus(url, topic string, maxReconnects int, reconnectWait time.Duration) (*Bus, error) {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger())

	natsOpts := []natsgo.Option{
		natsgo.Name("historian"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(maxReconnects),
		natsgo.ReconnectWait(reconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		SubscribersCount: 1,
		CloseTimeout:     5 * time.Second,
		AckWaitTimeout:   5 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}

	return &Bus{
		publisher:  pub,
		subscriber: sub,
		topic:      topic,
		transport:  "nats",
		logger:     logger,
	}, nil
}

// Topic returns the topic events are published on.
func (b *Bus) Topic() string { return b.topic }

// Transport names the underlying pub/sub.
func (b *Bus) Transport() string { return b.transport }

// Publish sends one event.
func (b *Bus) Publish(ctx context.Context, event JobEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal job event: %w", err)
	}
	msg := message.NewMessage(event.EventID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("job_id", event.JobID)
	msg.Metadata.Set("status", string(event.Status))
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set("correlation_id", id)
	}

	return b.publisher.Publish(b.topic, msg)
}

// JobChanged implements jobs.Notifier. Publication failures are logged and
// never propagate to the job.
func (b *Bus) JobChanged(ctx context.Context, job *models.ImportJob) {
	if err := b.Publish(ctx, NewJobEvent(job)); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("job_id", job.ID).Msg("Failed to publish job event")
	}
}

// Subscribe streams decoded events until ctx is cancelled or the bus is
// closed. Undecodable messages are logged and acked. A message is acked
// once it is queued on the returned channel.
func (b *Bus) Subscribe(ctx context.Context) (<-chan JobEvent, error) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return nil, ErrBusClosed
	}

	messages, err := b.subscriber.Subscribe(ctx, b.topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", b.topic, err)
	}

	out := make(chan JobEvent, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range messages {
			var event JobEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				b.logger.Error("Dropping undecodable job event", err, watermill.LogFields{"uuid": msg.UUID})
				msg.Ack()
				continue
			}
			select {
			case out <- event:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

// Close releases the transport.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	if err := b.publisher.Close(); err != nil {
		errs = append(errs, err)
	}
	if !b.shared {
		if err := b.subscriber.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
