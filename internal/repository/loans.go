package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmehdipour/credit-engine/internal/model"
	"github.com/jmoiron/sqlx"
)

// LoansRepository defines persistence for the loans table.
type LoansRepository interface {
	ListByCustomer(ctx context.Context, tx *sqlx.Tx, customerID int64) ([]model.Loan, error)
	// GetByID returns (nil, nil) when the loan does not exist.
	GetByID(ctx context.Context, id int64) (*model.Loan, error)
	Insert(ctx context.Context, tx *sqlx.Tx, l *model.Loan) error
	UpsertBatch(ctx context.Context, tx *sqlx.Tx, loans []model.Loan) error
}

type LoansRepositoryImpl struct {
	db *sqlx.DB
}

func NewLoansRepository(db *sqlx.DB) *LoansRepositoryImpl {
	return &LoansRepositoryImpl{db: db}
}

var _ LoansRepository = (*LoansRepositoryImpl)(nil)

const loanColumns = `id, customer_id, loan_amount, tenure, interest_rate, monthly_installment,
	       emis_paid_on_time, start_date, end_date, repayments_left, created_at`

func (r *LoansRepositoryImpl) ListByCustomer(ctx context.Context, tx *sqlx.Tx, customerID int64) ([]model.Loan, error) {
	var rows []model.Loan
	err := sqlx.SelectContext(ctx, ext(r.db, tx), &rows,
		`SELECT `+loanColumns+` FROM loans WHERE customer_id = ? ORDER BY id`, customerID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *LoansRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Loan, error) {
	var l model.Loan
	err := r.db.GetContext(ctx, &l, `SELECT `+loanColumns+` FROM loans WHERE id = ? LIMIT 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Insert writes a newly approved loan and sets its generated ID.
func (r *LoansRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, l *model.Loan) error {
	const q = `
		INSERT INTO loans
		    (customer_id, loan_amount, tenure, interest_rate, monthly_installment,
		     emis_paid_on_time, start_date, end_date, repayments_left, created_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, ?, ?, NOW())
	`
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q,
			l.CustomerID, l.LoanAmount, l.Tenure, l.InterestRate, l.MonthlyInstallment,
			l.EMIsPaidOnTime, l.StartDate, l.EndDate, l.RepaymentsLeft,
		)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		l.ID = id
		return nil
	})
}

// UpsertBatch writes imported loans keyed by their ID in a single statement.
func (r *LoansRepositoryImpl) UpsertBatch(ctx context.Context, tx *sqlx.Tx, loans []model.Loan) error {
	if len(loans) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(loans)*10)

	sb.WriteString(`INSERT INTO loans (id, customer_id, loan_amount, tenure, interest_rate, monthly_installment,
		emis_paid_on_time, start_date, end_date, repayments_left, created_at) VALUES `)
	for i, l := range loans {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW())")
		args = append(args, l.ID, l.CustomerID, l.LoanAmount, l.Tenure, l.InterestRate, l.MonthlyInstallment,
			l.EMIsPaidOnTime, l.StartDate, l.EndDate, l.RepaymentsLeft)
	}
	sb.WriteString(`
		ON DUPLICATE KEY UPDATE
		    customer_id         = VALUES(customer_id),
		    loan_amount         = VALUES(loan_amount),
		    tenure              = VALUES(tenure),
		    interest_rate       = VALUES(interest_rate),
		    monthly_installment = VALUES(monthly_installment),
		    emis_paid_on_time   = VALUES(emis_paid_on_time),
		    start_date          = VALUES(start_date),
		    end_date            = VALUES(end_date),
		    repayments_left     = VALUES(repayments_left)`)

	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, sb.String(), args...)
		return err
	})
}
