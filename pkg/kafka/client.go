// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"lawspark-go/internal/config"
	"lawspark-go/pkg/log"
	"lawspark-go/pkg/tasks"
)

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.EmbeddingTask) error
}

// Producer 发送向量化任务。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	p := &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}
	log.Info("Kafka 生产者初始化成功")
	return p
}

// PublishEmbeddingTask 以 document_id 为 key 发送任务，保证同一文档的任务落在同一分区。
func (p *Producer) PublishEmbeddingTask(ctx context.Context, task tasks.EmbeddingTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.DocumentID),
		Value: taskBytes,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// AttemptCounter 记录任务失败次数。
type AttemptCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

type redisAttemptCounter struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisAttemptCounter 使用 Redis 计数，计数键 24 小时后过期。
func NewRedisAttemptCounter(rdb *redis.Client) AttemptCounter {
	return &redisAttemptCounter{rdb: rdb, ttl: 24 * time.Hour}
}

func (c *redisAttemptCounter) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err == nil {
		_ = c.rdb.Expire(ctx, key, c.ttl).Err()
	}
	return n, err
}

func (c *redisAttemptCounter) Reset(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

func attemptsKey(documentID string) string {
	return fmt.Sprintf("kafka:attempts:%s", documentID)
}

// retryBackOff 是同一条消息两次处理之间的等待策略。
func retryBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0
	return b
}

// handleMessage 处理一条消息并返回是否应提交 offset。
// FetchMessage 不会重新投递未提交的消息，所以失败的任务在这里原地重试，
// 直到成功或累计失败达到 maxAttempts。只有 ctx 取消时才不提交，留给重启后的消费者。
func handleMessage(ctx context.Context, value []byte, processor TaskProcessor, counter AttemptCounter, maxAttempts int, b backoff.BackOff) bool {
	var task tasks.EmbeddingTask
	if err := json.Unmarshal(value, &task); err != nil {
		// 消息格式错误，直接提交，避免阻塞队列
		log.Errorf("[KafkaConsumer] 无法解析 Kafka 消息: %v, value: %s", err, string(value))
		return true
	}
	key := attemptsKey(task.DocumentID)

	log.Infof("[KafkaConsumer] 开始处理向量化任务: document=%s", task.DocumentID)
	operation := func() error {
		err := processor.Process(ctx, task)
		if err == nil {
			return nil
		}
		log.Errorf("[KafkaConsumer] 处理向量化任务失败: document=%s, error: %v", task.DocumentID, err)
		// 计数保存在 Redis 中，消费者重启后仍然有效
		attempts, incErr := counter.Incr(ctx, key)
		if incErr == nil && attempts >= int64(maxAttempts) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxAttempts-1)), ctx)
	err := backoff.Retry(operation, policy)
	if err == nil {
		log.Infof("[KafkaConsumer] 向量化任务处理成功: document=%s", task.DocumentID)
		_ = counter.Reset(ctx, key)
		return true
	}
	if ctx.Err() != nil {
		log.Warnf("[KafkaConsumer] 消费者退出，任务未提交: document=%s", task.DocumentID)
		return false
	}

	log.Errorf("[KafkaConsumer] 任务多次失败(>=%d)，提交 offset 终止重试: document=%s", maxAttempts, task.DocumentID)
	_ = counter.Reset(ctx, key)
	return true
}

// StartConsumer 启动消费循环，直到 ctx 取消。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor, counter AttemptCounter) {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("[KafkaConsumer] 关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("[KafkaConsumer] 已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("[KafkaConsumer] 收到退出信号，停止消费")
				return
			}
			log.Error("[KafkaConsumer] 从 Kafka 读取消息失败", err)
			return
		}

		log.Infof("[KafkaConsumer] 收到 Kafka 消息: offset %d", m.Offset)
		if handleMessage(ctx, m.Value, processor, counter, maxAttempts, retryBackOff()) {
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("[KafkaConsumer] 提交 Kafka 消息 offset 失败: %v", err)
			}
		}
	}
}
