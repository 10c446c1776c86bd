package mq

import (
	"context"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// EventPublisher 将网关事件发布到固定 topic，分区交由 broker 分配。
type EventPublisher struct {
	producer *kafka.Producer
	topic    string
	timeout  time.Duration
}

func NewEventPublisher(producer *kafka.Producer, topic string, timeout time.Duration) *EventPublisher {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &EventPublisher{producer: producer, topic: topic, timeout: timeout}
}

// Publish 编码并发送一条事件，等待 broker ack。
func (p *EventPublisher) Publish(ctx context.Context, eventType uint32, payload any) error {
	value, err := EncodeEvent(eventType, payload)
	if err != nil {
		return err
	}
	jobs := []*KafkaJob{{
		Topic:     p.topic,
		Partition: kafka.PartitionAny,
		Value:     value,
	}}
	if failed := SendKafkaJobs(ctx, p.producer, jobs, p.timeout); len(failed) > 0 {
		return failed[0].Err
	}
	return nil
}
