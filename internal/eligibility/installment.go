package eligibility

import (
	"math"

	"github.com/shopspring/decimal"
)

// Installment returns the fixed monthly payment for an amortized loan, rounded
// to 2 decimal places. A zero rate pays the principal off in equal parts.
func Installment(principal decimal.Decimal, tenure int, annualRate float64) (decimal.Decimal, error) {
	if err := validateTerms(principal, tenure, annualRate); err != nil {
		return decimal.Zero, err
	}
	emi, err := installment(principal, tenure, annualRate)
	if err != nil {
		return decimal.Zero, err
	}
	return emi.Round(2), nil
}

//	r   = annualRate / 100 / 12
//	emi = P * r * (1+r)^n / ((1+r)^n - 1) = P * r / (1 - (1+r)^-n)
//
// The second form tends to P*r for long tenures instead of overflowing.
func installment(principal decimal.Decimal, tenure int, annualRate float64) (decimal.Decimal, error) {
	r := (annualRate / 100) / 12
	if 1+r == 1 {
		return principal.Div(decimal.NewFromInt(int64(tenure))), nil
	}
	denom := 1 - math.Pow(1+r, -float64(tenure))
	emi := principal.InexactFloat64() * r / denom
	if denom <= 0 || math.IsNaN(emi) || math.IsInf(emi, 0) {
		return decimal.Zero, invalid("installment for %s over %d months at %v%% is not representable", principal, tenure, annualRate)
	}
	return decimal.NewFromFloat(emi), nil
}
