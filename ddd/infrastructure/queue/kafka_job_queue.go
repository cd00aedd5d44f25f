package queue

import (
	"context"
	"fmt"
)

// Producer kafka 写入端
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// KafkaJobQueue 以资产 ID 为消息键写入 kafka，同一资产的任务落在同一分区
type KafkaJobQueue struct {
	producer Producer
	topic    string
}

// NewKafkaJobQueue 创建 kafka 队列
func NewKafkaJobQueue(producer Producer, topic string) *KafkaJobQueue {
	return &KafkaJobQueue{producer: producer, topic: topic}
}

func (q *KafkaJobQueue) Enqueue(ctx context.Context, key string, body []byte) error {
	if err := q.producer.Produce(ctx, q.topic, []byte(key), body); err != nil {
		return fmt.Errorf("produce to %s: %w", q.topic, err)
	}
	return nil
}
