// Package eligibility scores a customer's loan history and decides whether a
// proposed loan is approved, at which rate and for which monthly installment.
//
// The engine is pure: it reads a snapshot of the customer and their loans and
// returns a decision without side effects. Callers own persistence.
package eligibility

import (
	"time"

	"github.com/jmehdipour/credit-engine/internal/model"
	"github.com/shopspring/decimal"
)

type Engine struct {
	policy Policy
	now    func() time.Time
}

type Option func(*Engine)

// WithClock sets the clock used to decide which loans started this year.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(p Policy, opts ...Option) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{policy: p.clone(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Policy() Policy { return e.policy.clone() }

// Score is a credit score together with the figures it was derived from.
type Score struct {
	Value             int
	OverLimit         bool
	TotalCurrentLoans decimal.Decimal
}

// Score rates a customer's history for an additional proposed principal.
// A customer whose loans plus the proposal exceed the approved limit scores 0.
func (e *Engine) Score(c model.Customer, loans []model.Loan, proposed decimal.Decimal) Score {
	total := decimal.Zero
	paidOnTime, recent := 0, 0
	year := e.now().Year()
	for _, l := range loans {
		total = total.Add(l.LoanAmount)
		paidOnTime += l.EMIsPaidOnTime
		if l.StartDate.Year() == year {
			recent++
		}
	}

	if total.Add(proposed).GreaterThan(c.ApprovedLimit) {
		return Score{Value: 0, OverLimit: true, TotalCurrentLoans: total}
	}

	p := e.policy
	volume := total.Div(decimal.NewFromInt(p.VolumeUnit)).Floor().IntPart()
	raw := int64(paidOnTime*p.PaidOnTimeWeight) +
		int64(len(loans)*p.LoanCountWeight) +
		int64(recent*p.RecentLoanWeight) +
		volume

	return Score{Value: clamp(raw, p.MaxScore), TotalCurrentLoans: total}
}

func clamp(v int64, max int) int {
	if v < 0 {
		return 0
	}
	if v > int64(max) {
		return max
	}
	return int(v)
}

// Decide runs score, tier, installment and affordability in that order.
// The installment uses the corrected rate when the tier reported one.
func (e *Engine) Decide(c model.Customer, loans []model.Loan, app model.LoanApplication) (model.Decision, error) {
	if err := validate(c, app); err != nil {
		return model.Decision{}, err
	}

	score := e.Score(c, loans, app.LoanAmount)
	tier := e.policy.TierFor(score.Value)
	out := tier.Apply(app.InterestRate)

	approved := out.Approved && !score.OverLimit
	reason := model.ReasonApproved
	switch {
	case score.OverLimit:
		reason = model.ReasonOverLimit
	case out.RateCorrected:
		reason = model.ReasonRateBelowFloor
	case !out.Approved:
		reason = model.ReasonLowScore
	}

	emi, err := installment(app.LoanAmount, app.Tenure, out.CorrectedRate)
	if err != nil {
		return model.Decision{}, err
	}
	ceiling := c.MonthlySalary.Mul(decimal.NewFromFloat(e.policy.AffordabilityRatio))
	if emi.GreaterThan(ceiling) && approved {
		approved = false
		reason = model.ReasonUnaffordable
	}

	return model.Decision{
		CustomerID:            c.ID,
		CreditScore:           score.Value,
		Tier:                  tier.Name,
		Approved:              approved,
		Reason:                reason,
		LoanAmount:            app.LoanAmount,
		InterestRate:          app.InterestRate,
		CorrectedInterestRate: out.CorrectedRate,
		Tenure:                app.Tenure,
		MonthlyInstallment:    emi.Round(2),
	}, nil
}

// ApprovedLimit is the borrowing limit granted at registration: the monthly
// income times LimitMultiplier, rounded half-to-even to LimitRounding.
func ApprovedLimit(p Policy, monthlyIncome decimal.Decimal) decimal.Decimal {
	unit := decimal.NewFromInt(p.LimitRounding)
	raw := monthlyIncome.Mul(decimal.NewFromInt(p.LimitMultiplier))
	return raw.Div(unit).RoundBank(0).Mul(unit)
}
