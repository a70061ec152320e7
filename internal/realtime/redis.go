package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes events through Redis pub/sub so every server
// instance fans out to its own websocket subscribers.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher constructs a RedisPublisher.
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: strings.TrimSpace(prefix)}
}

// PublishRoom implements Publisher.
func (p *RedisPublisher) PublishRoom(ctx context.Context, chatroomID uint64, event Event) error {
	return p.publish(ctx, RoomTopic(chatroomID), event)
}

// PublishUser implements Publisher.
func (p *RedisPublisher) PublishUser(ctx context.Context, userID uint64, event Event) error {
	return p.publish(ctx, UserTopic(userID), event)
}

func (p *RedisPublisher) publish(ctx context.Context, topic string, event Event) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("realtime: publisher not initialized")
	}
	payload, errMarshal := json.Marshal(event)
	if errMarshal != nil {
		return fmt.Errorf("realtime: marshal event: %w", errMarshal)
	}
	if errPublish := p.client.Publish(ctx, p.topicKey(topic), payload).Err(); errPublish != nil {
		return fmt.Errorf("realtime: publish %s: %w", topic, errPublish)
	}
	return nil
}

// topicKey applies the configured key prefix.
func (p *RedisPublisher) topicKey(topic string) string {
	if p.prefix == "" {
		return topic
	}
	return p.prefix + ":" + topic
}

// Subscribe opens a raw Redis subscription for the given topics. The caller
// owns the returned PubSub and must close it.
func (p *RedisPublisher) Subscribe(ctx context.Context, topics ...string) (*redis.PubSub, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("realtime: publisher not initialized")
	}
	keys := make([]string, 0, len(topics))
	for _, topic := range topics {
		keys = append(keys, p.topicKey(topic))
	}
	return p.client.Subscribe(ctx, keys...), nil
}
