package model

import "github.com/shopspring/decimal"

type DecisionReason string

const (
	ReasonApproved       DecisionReason = "approved"
	ReasonOverLimit      DecisionReason = "over_limit"
	ReasonLowScore       DecisionReason = "low_score"
	ReasonRateBelowFloor DecisionReason = "rate_below_floor"
	ReasonUnaffordable   DecisionReason = "unaffordable"
)

func (r DecisionReason) String() string { return string(r) }

// Decision is the eligibility engine output for one LoanApplication.
type Decision struct {
	CustomerID            int64           `json:"customer_id"`
	CreditScore           int             `json:"credit_score"`
	Tier                  string          `json:"tier"`
	Approved              bool            `json:"approval"`
	Reason                DecisionReason  `json:"reason"`
	LoanAmount            decimal.Decimal `json:"loan_amount"`
	InterestRate          float64         `json:"interest_rate"`
	CorrectedInterestRate float64         `json:"corrected_interest_rate"`
	Tenure                int             `json:"tenure"`
	MonthlyInstallment    decimal.Decimal `json:"monthly_installment"`
}
