package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/richxcame/civic-reports/pkg/logger"
	"go.uber.org/zap"
)

const correlationHeader = "X-Correlation-ID"

// Event is the envelope carried on every subject.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent wraps data in an Event envelope.
func NewEvent(eventType, source string, data interface{}) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}

// Handler processes one event. Returned errors are logged.
type Handler func(ctx context.Context, event *Event) error

// Config holds connection settings.
type Config struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// Bus publishes and consumes events over NATS.
type Bus struct {
	conn *nats.Conn

	mu   sync.Mutex
	subs []*nats.Subscription
}

// New connects to NATS.
func New(cfg Config) (*Bus, error) {
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("eventbus: disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("eventbus: reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	logger.Info("eventbus: connected", zap.String("url", cfg.URL))
	return &Bus{conn: conn}, nil
}

// Publish sends event on subject.
func (b *Bus) Publish(ctx context.Context, subject string, event *Event) error {
	msg, err := encode(ctx, subject, event)
	if err != nil {
		return err
	}
	if err := b.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe delivers events on subject to handler, load-balanced across queue members.
func (b *Bus) Subscribe(ctx context.Context, subject, queue string, handler Handler) error {
	sub, err := b.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		dispatch(ctx, msg, handler)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return nil
}

// Healthy reports whether the connection is up.
func (b *Bus) Healthy() error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("nats status %s", b.conn.Status())
	}
	return nil
}

// Close drains subscriptions and closes the connection.
func (b *Bus) Close() {
	if err := b.conn.Drain(); err != nil {
		logger.Warn("eventbus: drain failed", zap.Error(err))
		b.conn.Close()
	}
}

func encode(ctx context.Context, subject string, event *Event) (*nats.Msg, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		msg.Header.Set(correlationHeader, id)
	}
	return msg, nil
}

func dispatch(ctx context.Context, msg *nats.Msg, handler Handler) {
	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Warn("eventbus: dropping undecodable message", zap.String("subject", msg.Subject), zap.Error(err))
		return
	}

	if msg.Header != nil {
		if id := msg.Header.Get(correlationHeader); id != "" {
			ctx = logger.ContextWithCorrelationID(ctx, id)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			logger.WithContext(ctx).Error("eventbus: handler panicked",
				zap.String("type", event.Type), zap.Any("panic", r))
		}
	}()

	if err := handler(ctx, &event); err != nil {
		logger.WithContext(ctx).Error("eventbus: handler failed",
			zap.String("type", event.Type), zap.String("event_id", event.ID), zap.Error(err))
	}
}
