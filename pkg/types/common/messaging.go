package common

import (
	"context"
	"time"
)

// Message is a consumed message handed to a MessageHandler, decoupled
// from the segmentio/kafka-go wire representation so handlers never
// import the transport package directly.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
	Headers   map[string]string
}

// ProducerMessage is a message queued for publication.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
	Partition int
}

// MessageHandler processes one consumed Message. Returning an error
// triggers the consumer's retry-then-dead-letter policy.
type MessageHandler func(ctx context.Context, msg *Message) error

// BatchItemError reports one failed message within a PublishBatch call.
type BatchItemError struct {
	Index int
	Topic string
	Error error
}

// BatchPublishResult summarizes the outcome of a PublishBatch call.
type BatchPublishResult struct {
	Succeeded int
	Failed    int
	Errors    []BatchItemError
}

// TopicConfig describes the desired state of a Kafka topic for
// TopicManager.CreateTopic/EnsureTopics.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
	CleanupPolicy     string
	MaxMessageBytes   int
	Configs           map[string]string
}
