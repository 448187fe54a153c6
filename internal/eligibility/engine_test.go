package eligibility_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/credit-engine/internal/eligibility"
	"github.com/jmehdipour/credit-engine/internal/model"
)

var (
	today    = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	lastYear = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	thisYear = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
)

func newEngine(t *testing.T) *eligibility.Engine {
	t.Helper()
	e, err := eligibility.New(eligibility.DefaultPolicy(), eligibility.WithClock(func() time.Time { return today }))
	require.NoError(t, err)
	return e
}

func customer(limit, salary int64) model.Customer {
	return model.Customer{
		ID:            7,
		MonthlySalary: decimal.NewFromInt(salary),
		ApprovedLimit: decimal.NewFromInt(limit),
	}
}

func loan(amount int64, paidOnTime int, start time.Time) model.Loan {
	return model.Loan{LoanAmount: decimal.NewFromInt(amount), EMIsPaidOnTime: paidOnTime, StartDate: start}
}

func application(amount int64, rate float64, tenure int) model.LoanApplication {
	return model.LoanApplication{CustomerID: 7, LoanAmount: decimal.NewFromInt(amount), InterestRate: rate, Tenure: tenure}
}

// history40 scores 5*5 + 1*10 + 0 + 500000/100000 = 40.
func history40() []model.Loan {
	return []model.Loan{loan(500_000, 5, lastYear)}
}

func TestNew_RejectsInvalidPolicy(t *testing.T) {
	p := eligibility.DefaultPolicy()
	p.Tiers = nil
	_, err := eligibility.New(p)
	assert.ErrorIs(t, err, eligibility.ErrInvalidPolicy)
}

func TestEngine_PolicyIsCopied(t *testing.T) {
	p := eligibility.DefaultPolicy()
	e, err := eligibility.New(p)
	require.NoError(t, err)

	p.Tiers[0].Name = "changed"
	got := e.Policy()
	got.Tiers[1].Name = "changed too"

	assert.Equal(t, "prime", e.Policy().Tiers[0].Name)
	assert.Equal(t, "standard", e.Policy().Tiers[1].Name)
}

func TestScore_NoHistory(t *testing.T) {
	s := newEngine(t).Score(customer(3_600_000, 100_000), nil, decimal.NewFromInt(1_000_000))
	assert.Equal(t, 0, s.Value)
	assert.False(t, s.OverLimit)
	assert.True(t, s.TotalCurrentLoans.IsZero())
}

func TestScore_Signals(t *testing.T) {
	e := newEngine(t)
	c := customer(10_000_000, 100_000)

	loans := []model.Loan{
		loan(250_000, 2, lastYear),
		loan(150_000, 1, thisYear),
	}
	// paid 3*5=15, count 2*10=20, recent 1*10=10, volume 400000/100000=4
	s := e.Score(c, loans, decimal.NewFromInt(100_000))
	assert.Equal(t, 49, s.Value)
	assert.True(t, s.TotalCurrentLoans.Equal(decimal.NewFromInt(400_000)))
}

func TestScore_VolumeUsesIntegerDivision(t *testing.T) {
	s := newEngine(t).Score(customer(10_000_000, 0), []model.Loan{loan(199_999, 0, lastYear)}, decimal.Zero)
	// count 10 + volume 1
	assert.Equal(t, 11, s.Value)
}

func TestScore_ClampedToMax(t *testing.T) {
	loans := []model.Loan{loan(100_000, 30, thisYear), loan(100_000, 30, thisYear)}
	s := newEngine(t).Score(customer(10_000_000, 0), loans, decimal.Zero)
	assert.Equal(t, 100, s.Value)
}

func TestScore_NeverNegative(t *testing.T) {
	s := newEngine(t).Score(customer(10_000_000, 0), []model.Loan{loan(0, -10, lastYear)}, decimal.Zero)
	assert.Equal(t, 0, s.Value)
}

func TestScore_OverLimitIsZero(t *testing.T) {
	e := newEngine(t)
	c := customer(1_000_000, 100_000)
	loans := []model.Loan{loan(900_000, 50, thisYear)}

	s := e.Score(c, loans, decimal.NewFromInt(100_001))
	assert.Equal(t, 0, s.Value)
	assert.True(t, s.OverLimit)

	// exactly at the limit is not over it
	s = e.Score(c, loans, decimal.NewFromInt(100_000))
	assert.False(t, s.OverLimit)
	assert.Equal(t, 100, s.Value)
}

func TestScore_MonotonicInPaidOnTime(t *testing.T) {
	e := newEngine(t)
	c := customer(10_000_000, 0)

	prev := -1
	for paid := 0; paid <= 30; paid++ {
		s := e.Score(c, []model.Loan{loan(300_000, paid, lastYear)}, decimal.NewFromInt(50_000))
		assert.GreaterOrEqual(t, s.Value, prev, "paid=%d", paid)
		assert.GreaterOrEqual(t, s.Value, 0)
		assert.LessOrEqual(t, s.Value, 100)
		prev = s.Value
	}
}

func TestDecide_ScenarioA_NoHistoryDeclined(t *testing.T) {
	d, err := newEngine(t).Decide(customer(3_600_000, 100_000), nil, application(1_000_000, 10, 12))
	require.NoError(t, err)

	assert.Equal(t, 0, d.CreditScore)
	assert.Equal(t, "declined", d.Tier)
	assert.False(t, d.Approved)
	assert.Equal(t, model.ReasonLowScore, d.Reason)
	assert.Equal(t, 10.0, d.CorrectedInterestRate)
}

func TestDecide_ScenarioB_PrimeApproved(t *testing.T) {
	// paid 5*5 + count 2*10 + volume 10 = 55
	loans := []model.Loan{loan(500_000, 3, lastYear), loan(500_000, 2, lastYear)}
	app := application(500_000, 14, 36)

	d, err := newEngine(t).Decide(customer(5_000_000, 100_000), loans, app)
	require.NoError(t, err)

	assert.Equal(t, 55, d.CreditScore)
	assert.Equal(t, "prime", d.Tier)
	assert.True(t, d.Approved)
	assert.Equal(t, model.ReasonApproved, d.Reason)
	assert.Equal(t, 14.0, d.InterestRate)
	assert.Equal(t, 14.0, d.CorrectedInterestRate)
	assert.Equal(t, 36, d.Tenure)

	want, err := eligibility.Installment(app.LoanAmount, 36, 14)
	require.NoError(t, err)
	assert.True(t, want.Equal(d.MonthlyInstallment), "want %s got %s", want, d.MonthlyInstallment)
	assert.Equal(t, "17088.81", d.MonthlyInstallment.StringFixed(2))
}

func TestDecide_ScenarioC_RateCorrectedAndRejected(t *testing.T) {
	d, err := newEngine(t).Decide(customer(5_000_000, 1_000_000), history40(), application(100_000, 10, 12))
	require.NoError(t, err)

	assert.Equal(t, 40, d.CreditScore)
	assert.False(t, d.Approved)
	assert.Equal(t, model.ReasonRateBelowFloor, d.Reason)
	assert.Equal(t, 10.0, d.InterestRate)
	assert.Equal(t, 13.0, d.CorrectedInterestRate)

	// installment is computed with the corrected rate
	want, err := eligibility.Installment(decimal.NewFromInt(100_000), 12, 13)
	require.NoError(t, err)
	assert.True(t, want.Equal(d.MonthlyInstallment))
}

func TestDecide_ScenarioD_SubmittedRateAboveFloor(t *testing.T) {
	d, err := newEngine(t).Decide(customer(5_000_000, 1_000_000), history40(), application(100_000, 15, 12))
	require.NoError(t, err)

	assert.Equal(t, 40, d.CreditScore)
	assert.True(t, d.Approved)
	assert.Equal(t, 15.0, d.CorrectedInterestRate)
}

func TestDecide_ScenarioE_AffordabilityVeto(t *testing.T) {
	loans := []model.Loan{loan(500_000, 3, lastYear), loan(500_000, 2, lastYear)}
	// installment ~17,088.81 > 0.5 * 30,000
	d, err := newEngine(t).Decide(customer(5_000_000, 30_000), loans, application(500_000, 14, 36))
	require.NoError(t, err)

	assert.Equal(t, "prime", d.Tier)
	assert.False(t, d.Approved)
	assert.Equal(t, model.ReasonUnaffordable, d.Reason)
}

func TestDecide_AffordabilityBoundaryIsInclusive(t *testing.T) {
	// zero rate: 120,000 / 12 = 10,000 == 0.5 * 20,000
	loans := []model.Loan{loan(500_000, 3, lastYear), loan(500_000, 2, lastYear)}
	d, err := newEngine(t).Decide(customer(5_000_000, 20_000), loans, application(120_000, 0, 12))
	require.NoError(t, err)
	assert.True(t, d.Approved)
	assert.Equal(t, "10000.00", d.MonthlyInstallment.StringFixed(2))
}

func TestDecide_OverLimitNeverApproved(t *testing.T) {
	e := newEngine(t)
	loans := []model.Loan{loan(3_000_000, 40, thisYear)}

	for _, amount := range []int64{600_001, 1_000_000, 5_000_000} {
		d, err := e.Decide(customer(3_600_000, 10_000_000), loans, application(amount, 20, 24))
		require.NoError(t, err)
		assert.Equal(t, 0, d.CreditScore, "amount %d", amount)
		assert.False(t, d.Approved, "amount %d", amount)
		assert.Equal(t, model.ReasonOverLimit, d.Reason)
	}
}

func TestDecide_InvalidInput(t *testing.T) {
	e := newEngine(t)
	c := customer(3_600_000, 100_000)

	_, err := e.Decide(c, nil, application(100_000, 10, 0))
	assert.ErrorIs(t, err, eligibility.ErrInvalidInput)

	_, err = e.Decide(c, nil, application(-5, 10, 12))
	assert.ErrorIs(t, err, eligibility.ErrInvalidInput)

	c.MonthlySalary = decimal.NewFromInt(-1)
	_, err = e.Decide(c, nil, application(100_000, 10, 12))
	assert.ErrorIs(t, err, eligibility.ErrInvalidInput)
}

func TestDecide_ExtremeTermsReturnErrorsNotPanics(t *testing.T) {
	e := newEngine(t)
	c := customer(1_000_000, 50_000)

	assert.NotPanics(t, func() {
		_, err := e.Decide(c, nil, application(100_000, 24, 50_000))
		assert.ErrorIs(t, err, eligibility.ErrInvalidInput)

		_, err = e.Decide(c, nil, application(100_000, 1e308, 12))
		assert.ErrorIs(t, err, eligibility.ErrInvalidInput)
	})

	d, err := e.Decide(c, nil, application(100_000, 24, eligibility.MaxTenure))
	require.NoError(t, err)
	assert.Equal(t, "2000.00", d.MonthlyInstallment.StringFixed(2))
	assert.False(t, d.Approved)
}
