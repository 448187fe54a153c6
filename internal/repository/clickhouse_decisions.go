package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/credit-engine/internal/model"
	"github.com/jmoiron/sqlx"
)

// DecisionFilter narrows ListDecisions; zero values mean "any".
type DecisionFilter struct {
	CustomerID int64
	Approved   *bool
	Limit      int
	Offset     int
}

// CHDecisionsRepository stores recorded eligibility decisions in ClickHouse.
type CHDecisionsRepository interface {
	InsertBatch(ctx context.Context, rows []model.DecisionRecord) error
	ListDecisions(ctx context.Context, f DecisionFilter) ([]model.DecisionRecord, error)
}

type chDecisionsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHDecisionsRepository(ch *sqlx.DB) CHDecisionsRepository {
	return &chDecisionsRepository{ch: ch}
}

// InsertBatch sends rows as one ClickHouse block: clickhouse-go buffers the
// prepared statement's Execs and ships them on Commit.
func (r *chDecisionsRepository) InsertBatch(ctx context.Context, rows []model.DecisionRecord) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO credit.decisions
		    (id, customer_id, loan_id, credit_score, tier, approved, reason, loan_amount,
		     interest_rate, corrected_interest_rate, tenure, monthly_installment, decided_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, d := range rows {
		if _, err := stmt.ExecContext(ctx,
			d.ID, d.CustomerID, d.LoanID, d.CreditScore, d.Tier, d.Approved, d.Reason, d.LoanAmount,
			d.InterestRate, d.CorrectedInterestRate, d.Tenure, d.MonthlyInstallment, d.DecidedAt,
		); err != nil {
			return fmt.Errorf("append %s: %w", d.ID, err)
		}
	}

	return tx.Commit()
}

func (r *chDecisionsRepository) ListDecisions(ctx context.Context, f DecisionFilter) ([]model.DecisionRecord, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := `
		SELECT id, customer_id, loan_id, credit_score, tier, approved, reason, loan_amount,
		       interest_rate, corrected_interest_rate, tenure, monthly_installment, decided_at
		FROM credit.decisions FINAL
		WHERE 1 = 1
	`
	var args []any

	if f.CustomerID > 0 {
		q += " AND customer_id = ?"
		args = append(args, f.CustomerID)
	}
	if f.Approved != nil {
		q += " AND approved = ?"
		args = append(args, *f.Approved)
	}

	q += " ORDER BY decided_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	var rows []model.DecisionRecord
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
