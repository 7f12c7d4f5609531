package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/asturias-jnll/Capstone2-sub000/internal/models"
)

// Notifier is the delivery contract for workflow events. This service only
// produces events at state-transition commit points; storage and real-time
// push live behind this interface.
type Notifier interface {
	Deliver(ctx context.Context, event models.NotificationEvent) error
}

// DefaultNotificationQueue is the Redis list drained by the external
// notification worker.
const DefaultNotificationQueue = "notification_events"

// RedisNotifier pushes events as JSON onto a Redis list.
type RedisNotifier struct {
	client *redis.Client
	queue  string
}

func NewRedisNotifier(client *redis.Client, queue string) *RedisNotifier {
	if queue == "" {
		queue = DefaultNotificationQueue
	}
	return &RedisNotifier{client: client, queue: queue}
}

func (n *RedisNotifier) Deliver(ctx context.Context, event models.NotificationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.client.RPush(ctx, n.queue, data).Err()
}

// NopNotifier drops events. Used when Redis is not configured.
type NopNotifier struct{}

func (NopNotifier) Deliver(context.Context, models.NotificationEvent) error {
	return nil
}

// RequestNumber derives the human-readable change-request number used in
// notification titles: "CR-" plus the uppercased first eight characters of
// the request id. The same id always yields the same number.
func RequestNumber(requestID string) string {
	prefix := requestID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return "CR-" + strings.ToUpper(prefix)
}
