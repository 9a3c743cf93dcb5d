package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"mediquiz-backend/internal/models"
)

// Publisher delivers websocket messages to a user's live connections.
type Publisher interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage)
}

func UserChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user_updates:%s", userID.String())
}

// RedisPublisher fans messages out through Redis pub/sub so any server
// instance holding the user's socket can forward them.
type RedisPublisher struct {
	redis *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{redis: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to encode %s message: %v", msg.Type, err)
		return
	}
	if err := p.redis.Publish(ctx, UserChannel(userID), string(data)).Err(); err != nil {
		log.Printf("Failed to publish %s to user %s: %v", msg.Type, userID, err)
	}
}
