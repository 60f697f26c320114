package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventsChannel is the pub/sub channel lifecycle events are published to
const EventsChannel = "homeswift:events"

// Event types
const (
	EventRequestCreated       = "request.created"
	EventInterestShown        = "request.interest_shown"
	EventInterestRemoved      = "request.interest_removed"
	EventProviderAssigned     = "request.provider_assigned"
	EventCompletionConfirmed  = "request.completion_confirmed"
	EventRequestCompleted     = "request.completed"
	EventRequestUpdated       = "request.updated"
	EventPaymentCreated       = "payment.created"
	EventPaymentStatusChanged = "payment.status_changed"
	EventReviewCreated        = "review.created"
	EventDisputeCreated       = "dispute.created"
	EventDisputeUpdated       = "dispute.updated"
	EventTrustScoreUpdated    = "trust_score.updated"
	EventProviderVerification = "provider.verification_changed"
)

// Event is one lifecycle notification for downstream consumers
type Event struct {
	Type       string                 `json:"type"`
	ResourceID uint                   `json:"resource_id"`
	RequestID  string                 `json:"request_id,omitempty"`
	Actor      string                 `json:"actor,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// EventPublisher fans lifecycle events out to subscribers
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// RedisEventPublisher publishes events on a redis pub/sub channel
type RedisEventPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisEventPublisher connects to redisURL and verifies the connection
func NewRedisEventPublisher(redisURL string) (*RedisEventPublisher, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	return &RedisEventPublisher{client: client, channel: EventsChannel}, nil
}

// Publish serializes event and publishes it
func (p *RedisEventPublisher) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

// Close releases the redis connection pool
func (p *RedisEventPublisher) Close() error {
	return p.client.Close()
}

// NoopEventPublisher drops events. Used when REDIS_URL is not configured.
type NoopEventPublisher struct{}

// Publish does nothing
func (NoopEventPublisher) Publish(context.Context, Event) error { return nil }

// MockEventPublisher records published events for testing
type MockEventPublisher struct {
	events []Event
	err    error
	mu     sync.RWMutex
}

// NewMockEventPublisher creates a new mock publisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

// Publish records event, or returns the configured failure
func (m *MockEventPublisher) Publish(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

// FailWith makes every later Publish return err
func (m *MockEventPublisher) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Events returns a copy of the recorded events
func (m *MockEventPublisher) Events() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Types returns the recorded event types in publish order
func (m *MockEventPublisher) Types() []string {
	var types []string
	for _, e := range m.Events() {
		types = append(types, e.Type)
	}
	return types
}
