package queue

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Stream defines the interface for publishing and consuming scan events.
type Stream interface {
	// Publish appends an event to the scan history and fans it out to
	// live subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe creates a subscription to a scan's event channel.
	// Returns a channel that receives events until the context is
	// cancelled.
	Subscribe(ctx context.Context, scanID string) (<-chan Event, error)

	// History returns the most recent events for a scan in publish
	// order. A limit of zero or less returns the full history.
	History(ctx context.Context, scanID string, limit int) ([]Event, error)

	// SetStatus records the scan's coarse status.
	SetStatus(ctx context.Context, scanID string, status ScanStatus) error

	// Status returns the recorded scan status, empty when never set.
	Status(ctx context.Context, scanID string) (ScanStatus, error)

	// Close closes the Redis connection.
	Close() error
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration
}

// RedisStream implements the Stream interface using go-redis/v9.
type RedisStream struct {
	client *redis.Client
}

// NewRedisStream creates a new Redis event stream with the given options.
func NewRedisStream(opts RedisOptions) (*RedisStream, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}

	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}

	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStream{client: client}, nil
}

func eventsChannel(scanID string) string { return fmt.Sprintf("scan:%s:events", scanID) }
func historyKey(scanID string) string    { return fmt.Sprintf("scan:%s:history", scanID) }
func statusKey(scanID string) string     { return fmt.Sprintf("scan:%s:status", scanID) }

// Publish appends an event to the scan history and fans it out to live
// subscribers. History is written first so a replay never misses an
// event a live subscriber saw.
func (s *RedisStream) Publish(ctx context.Context, event Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := s.client.RPush(ctx, historyKey(event.ScanID), data).Err(); err != nil {
		return fmt.Errorf("failed to append event to scan %s history: %w", event.ScanID, err)
	}

	if err := s.client.Publish(ctx, eventsChannel(event.ScanID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event for scan %s: %w", event.ScanID, err)
	}

	return nil
}

// Subscribe creates a subscription to a scan's event channel.
func (s *RedisStream) Subscribe(ctx context.Context, scanID string) (<-chan Event, error) {
	pubsub := s.client.Subscribe(ctx, eventsChannel(scanID))

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("failed to subscribe to scan %s: %w", scanID, err)
	}

	eventChan := make(chan Event)

	go func() {
		defer close(eventChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					// Skip malformed payloads but keep the subscription alive
					continue
				}

				select {
				case eventChan <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return eventChan, nil
}

// History returns the most recent events for a scan in publish order.
func (s *RedisStream) History(ctx context.Context, scanID string, limit int) ([]Event, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}

	raw, err := s.client.LRange(ctx, historyKey(scanID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read scan %s history: %w", scanID, err)
	}

	events := make([]Event, 0, len(raw))
	for _, entry := range raw {
		var event Event
		if err := json.Unmarshal([]byte(entry), &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event from scan %s history: %w", scanID, err)
		}
		events = append(events, event)
	}

	return events, nil
}

// SetStatus records the scan's coarse status.
func (s *RedisStream) SetStatus(ctx context.Context, scanID string, status ScanStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid scan status: %q", status)
	}
	if err := s.client.Set(ctx, statusKey(scanID), string(status), 0).Err(); err != nil {
		return fmt.Errorf("failed to set status for scan %s: %w", scanID, err)
	}
	return nil
}

// Status returns the recorded scan status, empty when never set.
func (s *RedisStream) Status(ctx context.Context, scanID string) (ScanStatus, error) {
	val, err := s.client.Get(ctx, statusKey(scanID)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("failed to get status for scan %s: %w", scanID, err)
	}
	return ScanStatus(val), nil
}

// Close closes the Redis connection.
func (s *RedisStream) Close() error {
	return s.client.Close()
}
