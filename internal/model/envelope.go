package model

import "time"

// DecisionEnvelope is the payload published to Kafka (via Debezium outbox SMT).
type DecisionEnvelope struct {
	ID        string    `json:"id"`                // decision ULID
	LoanID    *int64    `json:"loan_id,omitempty"` // set when the decision was committed
	Decision  Decision  `json:"decision"`
	DecidedAt time.Time `json:"decided_at"`
}
