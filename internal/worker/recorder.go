package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmehdipour/credit-engine/internal/kafka"
	"github.com/jmehdipour/credit-engine/internal/logger"
	"github.com/jmehdipour/credit-engine/internal/metrics"
	"github.com/jmehdipour/credit-engine/internal/model"
	"github.com/jmehdipour/credit-engine/internal/repository"
	"go.uber.org/zap"
)

// MessageSource is the consumer side of the decisions topic.
type MessageSource interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// DecisionRecorder:
// - fetches decision envelopes from Kafka,
// - buffers them into ClickHouse rows,
// - flushes by size or time and commits offsets only after the insert.
//
// Redelivered decisions collapse on their ID in the ReplacingMergeTree table.
type DecisionRecorder struct {
	Source MessageSource
	Store  repository.CHDecisionsRepository

	BatchSize int           // max buffered messages per flush
	BatchWait time.Duration // max time to wait before flush
	RetryWait time.Duration // pause after a failed flush
}

func NewDecisionRecorder(src MessageSource, store repository.CHDecisionsRepository) *DecisionRecorder {
	return &DecisionRecorder{
		Source:    src,
		Store:     store,
		BatchSize: 500,
		BatchWait: time.Second,
		RetryWait: 2 * time.Second,
	}
}

type batch struct {
	rows []model.DecisionRecord
	msgs []kafka.Message // every fetched message, poison included
}

func (b *batch) reset() {
	b.rows = b.rows[:0]
	b.msgs = b.msgs[:0]
}

// Run blocks until ctx is cancelled, then flushes what is buffered.
func (w *DecisionRecorder) Run(ctx context.Context) error {
	if w.Source == nil || w.Store == nil {
		return errors.New("decision-recorder: source and store are required")
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 500
	}
	if w.BatchWait <= 0 {
		w.BatchWait = time.Second
	}
	if w.RetryWait <= 0 {
		w.RetryWait = 2 * time.Second
	}

	msgCh := make(chan kafka.Message, w.BatchSize)
	go w.fetch(ctx, msgCh)

	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	b := &batch{}
	for {
		if len(b.msgs) >= w.BatchSize {
			if err := w.flush(ctx, b); err != nil {
				select {
				case <-ctx.Done():
					w.drain(ctx, b)
					return nil
				case <-time.After(w.RetryWait):
				}
				continue
			}
		}

		select {
		case <-ctx.Done():
			w.drain(ctx, b)
			return nil

		case m, ok := <-msgCh:
			if !ok {
				w.drain(ctx, b)
				return nil
			}
			w.add(b, m)

		case <-tick.C:
			_ = w.flush(ctx, b)
		}
	}
}

func (w *DecisionRecorder) fetch(ctx context.Context, out chan<- kafka.Message) {
	defer close(out)
	for {
		m, err := w.Source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Log.Warn("recorder: kafka fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}
		select {
		case out <- m:
		case <-ctx.Done():
			return
		}
	}
}

func (w *DecisionRecorder) add(b *batch, m kafka.Message) {
	b.msgs = append(b.msgs, m)

	rec, err := DecodeDecision(m.Value)
	if err != nil {
		// poison: committed with the batch, never stored
		metrics.DecisionsRecordedTotal.WithLabelValues("poison").Inc()
		logger.Log.Warn("recorder: bad decision envelope",
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Error(err),
		)
		return
	}
	b.rows = append(b.rows, rec)
}

// flush inserts the buffered rows and then commits their offsets. On failure
// the batch is kept for the next attempt.
func (w *DecisionRecorder) flush(ctx context.Context, b *batch) error {
	if len(b.msgs) == 0 {
		return nil
	}

	if err := w.Store.InsertBatch(ctx, b.rows); err != nil {
		metrics.DecisionsRecordedTotal.WithLabelValues("failed").Add(float64(len(b.rows)))
		logger.Log.Error("recorder: clickhouse insert failed", zap.Int("rows", len(b.rows)), zap.Error(err))
		return err
	}
	metrics.DecisionsRecordedTotal.WithLabelValues("stored").Add(float64(len(b.rows)))

	if err := w.Source.Commit(ctx, b.msgs...); err != nil {
		// rows are stored; redelivery only rewrites the same IDs
		logger.Log.Error("recorder: kafka commit failed", zap.Int("messages", len(b.msgs)), zap.Error(err))
	}

	logger.Log.Debug("recorder: flushed", zap.Int("rows", len(b.rows)), zap.Int("messages", len(b.msgs)))
	b.reset()
	return nil
}

// drain makes a last flush attempt after shutdown was requested.
func (w *DecisionRecorder) drain(ctx context.Context, b *batch) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	_ = w.flush(dctx, b)
}

// DecodeDecision turns a Kafka value into a ClickHouse row. The outbox
// connector may deliver the payload either as JSON or as a JSON string
// holding it.
func DecodeDecision(value []byte) (model.DecisionRecord, error) {
	value = bytes.TrimSpace(value)
	if len(value) > 0 && value[0] == '"' {
		var inner string
		if err := json.Unmarshal(value, &inner); err != nil {
			return model.DecisionRecord{}, err
		}
		value = []byte(inner)
	}

	var env model.DecisionEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		return model.DecisionRecord{}, err
	}
	if env.ID == "" {
		return model.DecisionRecord{}, errors.New("envelope missing id")
	}
	if env.DecidedAt.IsZero() {
		return model.DecisionRecord{}, fmt.Errorf("decision %s: missing decided_at", env.ID)
	}
	// the decisions table stores these as UInt8 and UInt16
	if s := env.Decision.CreditScore; s < 0 || s > math.MaxUint8 {
		return model.DecisionRecord{}, fmt.Errorf("decision %s: credit score %d out of range", env.ID, s)
	}
	if n := env.Decision.Tenure; n < 1 || n > math.MaxUint16 {
		return model.DecisionRecord{}, fmt.Errorf("decision %s: tenure %d out of range", env.ID, n)
	}
	return model.NewDecisionRecord(env), nil
}
