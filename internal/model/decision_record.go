package model

import "time"

// DecisionRecord is a row of the ClickHouse decisions table. Amounts are
// stored as Float64 there; the decimal values stay authoritative in MySQL.
type DecisionRecord struct {
	ID                    string    `db:"id" json:"id"`
	CustomerID            int64     `db:"customer_id" json:"customer_id"`
	LoanID                *int64    `db:"loan_id" json:"loan_id"`
	CreditScore           uint8     `db:"credit_score" json:"credit_score"`
	Tier                  string    `db:"tier" json:"tier"`
	Approved              bool      `db:"approved" json:"approved"`
	Reason                string    `db:"reason" json:"reason"`
	LoanAmount            float64   `db:"loan_amount" json:"loan_amount"`
	InterestRate          float64   `db:"interest_rate" json:"interest_rate"`
	CorrectedInterestRate float64   `db:"corrected_interest_rate" json:"corrected_interest_rate"`
	Tenure                uint16    `db:"tenure" json:"tenure"`
	MonthlyInstallment    float64   `db:"monthly_installment" json:"monthly_installment"`
	DecidedAt             time.Time `db:"decided_at" json:"decided_at"`
}

func NewDecisionRecord(env DecisionEnvelope) DecisionRecord {
	d := env.Decision
	return DecisionRecord{
		ID:                    env.ID,
		CustomerID:            d.CustomerID,
		LoanID:                env.LoanID,
		CreditScore:           uint8(d.CreditScore),
		Tier:                  d.Tier,
		Approved:              d.Approved,
		Reason:                d.Reason.String(),
		LoanAmount:            d.LoanAmount.InexactFloat64(),
		InterestRate:          d.InterestRate,
		CorrectedInterestRate: d.CorrectedInterestRate,
		Tenure:                uint16(d.Tenure),
		MonthlyInstallment:    d.MonthlyInstallment.InexactFloat64(),
		DecidedAt:             env.DecidedAt,
	}
}
