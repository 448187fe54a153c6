package model

import "time"

const (
	AggregateDecision = "decision"

	TopicDecisions = "credit.decisions"
)

type OutboxEvent struct {
	ID          int64     `db:"id"`
	Aggregate   string    `db:"aggregate"`    // e.g. "decision"
	AggregateID string    `db:"aggregate_id"` // decision ULID
	Topic       string    `db:"topic"`
	Payload     []byte    `db:"payload"`
	CreatedAt   time.Time `db:"created_at"`
}
