package eligibility

import (
	"errors"
	"fmt"
	"math"

	"github.com/jmehdipour/credit-engine/internal/model"
	"github.com/shopspring/decimal"
)

// ErrInvalidInput marks applications the engine refuses to evaluate.
// Ineligible applications are not errors.
var ErrInvalidInput = errors.New("invalid input")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// MaxTenure is the longest loan, in months, the engine evaluates.
const MaxTenure = 1200

func validateTerms(principal decimal.Decimal, tenure int, rate float64) error {
	if tenure < 1 {
		return invalid("tenure must be at least 1 month, got %d", tenure)
	}
	if tenure > MaxTenure {
		return invalid("tenure must be at most %d months, got %d", MaxTenure, tenure)
	}
	if principal.IsNegative() {
		return invalid("loan amount must not be negative, got %s", principal)
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return invalid("malformed interest rate %v", rate)
	}
	return nil
}

func validate(c model.Customer, app model.LoanApplication) error {
	if err := validateTerms(app.LoanAmount, app.Tenure, app.InterestRate); err != nil {
		return err
	}
	if c.MonthlySalary.IsNegative() {
		return invalid("monthly salary must not be negative, got %s", c.MonthlySalary)
	}
	return nil
}
