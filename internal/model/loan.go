package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Loan is the DB entity persisted in loans table. EMIsPaidOnTime and
// RepaymentsLeft are maintained outside this service.
type Loan struct {
	ID                 int64           `db:"id"`
	CustomerID         int64           `db:"customer_id"`
	LoanAmount         decimal.Decimal `db:"loan_amount"`
	Tenure             int             `db:"tenure"` // months
	InterestRate       float64         `db:"interest_rate"`
	MonthlyInstallment decimal.Decimal `db:"monthly_installment"`
	EMIsPaidOnTime     int             `db:"emis_paid_on_time"`
	StartDate          time.Time       `db:"start_date"`
	EndDate            time.Time       `db:"end_date"`
	RepaymentsLeft     int             `db:"repayments_left"`
	CreatedAt          time.Time       `db:"created_at"`
}

// LoanApplication is a proposed loan; it is never stored as-is.
type LoanApplication struct {
	CustomerID   int64           `json:"customer_id"`
	LoanAmount   decimal.Decimal `json:"loan_amount"`
	InterestRate float64         `json:"interest_rate"` // annual, percent
	Tenure       int             `json:"tenure"`        // months
}
