// Package redis publishes task events to Redis pub/sub channels so that
// real-time delivery services can push them to connected clients.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/taskflow-api/internal/events"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
)

// DefaultChannelPrefix is used when no prefix is configured.
const DefaultChannelPrefix = "taskflow:notifications"

// publishTimeout bounds a single PUBLISH round trip.
const publishTimeout = 2 * time.Second

// Client is the subset of the go-redis client the publisher needs.
type Client interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection with PING.
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Publisher is an events.EventHandler that publishes each event as JSON on
// the channel "<prefix>:<company_id>".
type Publisher struct {
	client Client
	prefix string
	logger *slog.Logger
}

// NewPublisher creates a Publisher. An empty prefix selects
// DefaultChannelPrefix. If logger is nil, a default logger will be used.
func NewPublisher(client Client, prefix string, logger *slog.Logger) *Publisher {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client: client,
		prefix: prefix,
		logger: logger.With(slog.String("component", "redis_publisher")),
	}
}

var _ events.EventHandler = (*Publisher)(nil)

// Channel returns the channel events of a company are published on.
func (p *Publisher) Channel(event *events.TaskEvent) string {
	return p.prefix + ":" + event.CompanyID.String()
}

// HandleEvent implements events.EventHandler.
func (p *Publisher) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	log := logger.FromContextOrDefault(ctx, p.logger)

	payload, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	channel := p.Channel(event)
	receivers, err := p.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		log.Error("failed to publish event",
			slog.String("error", err.Error()),
			slog.String("channel", channel),
			slog.String("event_id", event.ID.String()))
		return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
	}

	log.Debug("event published",
		slog.String("channel", channel),
		slog.String("event_type", event.Type),
		slog.Int64("receivers", receivers))
	return nil
}
