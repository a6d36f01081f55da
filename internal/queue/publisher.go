package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tommykeeley-amp/pm-os-sub002/pkg/kafka"
)

const (
	TopicDigestSent  = "pulse.digest_sent"
	TopicTaskCreated = "pulse.task_created"
)

// Publisher relays digest lifecycle events onto the task queue the
// desktop app consumes. Payloads are keyed by slot or source ID so
// consumers can compact per entity.
type Publisher struct {
	producer *kafka.Producer
}

func NewPublisher(producer *kafka.Producer) *Publisher {
	return &Publisher{producer: producer}
}

type digestSentEvent struct {
	Slot      string    `json:"slot"`
	ItemCount int       `json:"itemCount"`
	SentAt    time.Time `json:"sentAt"`
}

type taskCreatedEvent struct {
	SourceID  string    `json:"sourceId"`
	TaskID    string    `json:"taskId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p *Publisher) PublishDigestSent(slot string, itemCount int) error {
	if p == nil || p.producer == nil {
		return nil
	}
	payload, err := json.Marshal(digestSentEvent{
		Slot:      slot,
		ItemCount: itemCount,
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal digest event: %w", err)
	}
	return p.producer.Produce(TopicDigestSent, []byte(slot), payload, nil)
}

func (p *Publisher) PublishTaskCreated(sourceID, taskID string) error {
	if p == nil || p.producer == nil {
		return nil
	}
	payload, err := json.Marshal(taskCreatedEvent{
		SourceID:  sourceID,
		TaskID:    taskID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal task event: %w", err)
	}
	return p.producer.Produce(TopicTaskCreated, []byte(sourceID), payload, nil)
}
