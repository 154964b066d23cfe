package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"lawspark-go/internal/model"
)

// ConversationRepository 定义了对话历史记录的操作接口。
type ConversationRepository interface {
	GetHistory(ctx context.Context, userID string) ([]model.ChatMessage, error)
	Append(ctx context.Context, userID string, messages ...model.ChatMessage) error
	Clear(ctx context.Context, userID string) error
}

type redisConversationRepository struct {
	redisClient *redis.Client
	limit       int64
	ttl         time.Duration
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
// 每个用户保留最近 limit 条消息，键在 ttl 后过期。
func NewConversationRepository(redisClient *redis.Client, limit int, ttl time.Duration) ConversationRepository {
	if limit <= 0 {
		limit = 20
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &redisConversationRepository{redisClient: redisClient, limit: int64(limit), ttl: ttl}
}

func historyKey(userID string) string {
	return fmt.Sprintf("lawspark:chat:%s", userID)
}

// GetHistory 从 Redis 获取对话历史记录。
func (r *redisConversationRepository) GetHistory(ctx context.Context, userID string) ([]model.ChatMessage, error) {
	raw, err := r.redisClient.LRange(ctx, historyKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	messages := make([]model.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg model.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal conversation history: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Append 追加消息并裁剪到最近 limit 条，同时刷新过期时间。
func (r *redisConversationRepository) Append(ctx context.Context, userID string, messages ...model.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(messages))
	for _, m := range messages {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation history: %w", err)
		}
		values = append(values, b)
	}

	key := historyKey(userID)
	_, err := r.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, -r.limit, -1)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update conversation history: %w", err)
	}
	return nil
}

func (r *redisConversationRepository) Clear(ctx context.Context, userID string) error {
	return r.redisClient.Del(ctx, historyKey(userID)).Err()
}
