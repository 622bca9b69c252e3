package events

import (
	"context"
	"encoding/json"
	"fmt"

	"attesto/internal/platform/kafka/producer"
)

// MessageProducer is the subset of the Kafka producer the publisher needs.
type MessageProducer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaPublisher writes events as JSON records keyed by subject, so all
// events for one wallet or credential land on the same partition.
type KafkaPublisher struct {
	producer    MessageProducer
	topicPrefix string
}

// NewKafkaPublisher maps each Topic to "<prefix>.<topic>".
func NewKafkaPublisher(p MessageProducer, topicPrefix string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topicPrefix: topicPrefix}
}

func (k *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	headers := map[string]string{
		"event_id":   event.ID,
		"event_type": string(event.Topic),
	}
	if event.RequestID != "" {
		headers["request_id"] = event.RequestID
	}
	return k.producer.Produce(ctx, &producer.Message{
		Topic:   k.TopicName(event.Topic),
		Key:     []byte(event.Subject),
		Value:   value,
		Headers: headers,
	})
}

// TopicName is the broker topic an event is written to.
func (k *KafkaPublisher) TopicName(t Topic) string {
	if k.topicPrefix == "" {
		return string(t)
	}
	return k.topicPrefix + "." + string(t)
}
