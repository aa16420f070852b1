package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/turtacn/idock-worker/pkg/types/common"
)

type mockKafkaConn struct {
	createFunc func(topics ...kafka.TopicConfig) error
	deleteFunc func(topics ...string) error
	readFunc   func(topics ...string) ([]kafka.Partition, error)
	closeFunc  func() error
}

func (m *mockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	if m.createFunc != nil {
		return m.createFunc(topics...)
	}
	return nil
}

func (m *mockKafkaConn) DeleteTopics(topics ...string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(topics...)
	}
	return nil
}

func (m *mockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	if m.readFunc != nil {
		return m.readFunc(topics...)
	}
	return nil, nil
}

func (m *mockKafkaConn) Close() error {
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

func newTestTopicManager(mock ConnInterface) *TopicManager {
	return &TopicManager{
		conn:   mock,
		logger: newMockLogger(),
	}
}

func TestTopicConstants(t *testing.T) {
	assert.Equal(t, "docking.slice.completed", TopicSliceCompleted)
	assert.Equal(t, "docking.job.completed", TopicJobCompleted)
	assert.Equal(t, "docking.job.failed", TopicJobFailed)
}

func TestDefaultTopics(t *testing.T) {
	defaults := DefaultTopics()
	assert.Len(t, defaults, 5)
}

func TestCreateTopic_Success(t *testing.T) {
	mock := &mockKafkaConn{
		createFunc: func(topics ...kafka.TopicConfig) error {
			assert.Len(t, topics, 1)
			assert.Equal(t, "test", topics[0].Topic)
			return nil
		},
	}
	m := newTestTopicManager(mock)
	err := m.CreateTopic(context.Background(), common.TopicConfig{Name: "test", NumPartitions: 1, ReplicationFactor: 1})
	assert.NoError(t, err)
}

func TestCreateTopic_ValidatesConfig(t *testing.T) {
	m := newTestTopicManager(&mockKafkaConn{})
	err := m.CreateTopic(context.Background(), common.TopicConfig{Name: ""})
	assert.Error(t, err)
}

func TestDeleteTopic_Success(t *testing.T) {
	mock := &mockKafkaConn{
		deleteFunc: func(topics ...string) error {
			assert.Equal(t, "test", topics[0])
			return nil
		},
	}
	m := newTestTopicManager(mock)
	err := m.DeleteTopic(context.Background(), "test")
	assert.NoError(t, err)
}

func TestEventEnvelope_RoundTrip(t *testing.T) {
	payload := SliceCompletedPayload{JobID: "9f1c2e", SliceIndex: 3, LigandsScored: 480}
	env, err := NewEventEnvelope("docking.slice.completed", "dock-worker", payload)
	assert.NoError(t, err)

	msg, err := env.ToMessage(TopicSliceCompleted)
	assert.NoError(t, err)

	consumed := &common.Message{Value: msg.Value}
	decodedEnv, err := MessageToEventEnvelope(consumed)
	assert.NoError(t, err)

	var decodedPayload SliceCompletedPayload
	err = decodedEnv.DecodePayload(&decodedPayload)
	assert.NoError(t, err)
	assert.Equal(t, "9f1c2e", decodedPayload.JobID)
	assert.Equal(t, 480, decodedPayload.LigandsScored)
}
