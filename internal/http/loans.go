package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/jmehdipour/credit-engine/internal/model"
	"github.com/labstack/echo/v4"
)

var errNoCustomer = errors.New("customer_id is required")

func bindApplication(c echo.Context) (model.LoanApplication, error) {
	var app model.LoanApplication
	if err := c.Bind(&app); err != nil {
		return app, err
	}
	if app.CustomerID <= 0 {
		return app, errNoCustomer
	}
	return app, nil
}

func checkEligibilityHandler(svc Lending) echo.HandlerFunc {
	return func(c echo.Context) error {
		app, err := bindApplication(c)
		if err != nil {
			return badRequest(c, "customer_id, loan_amount, interest_rate and tenure are required")
		}

		res, err := svc.CheckEligibility(c.Request().Context(), app)
		if err != nil {
			return serviceError(c, err)
		}

		d := res.Decision
		return c.JSON(http.StatusOK, map[string]any{
			"decision_id":             res.DecisionID,
			"customer_id":             d.CustomerID,
			"credit_score":            d.CreditScore,
			"tier":                    d.Tier,
			"approval":                d.Approved,
			"reason":                  d.Reason,
			"interest_rate":           d.InterestRate,
			"corrected_interest_rate": d.CorrectedInterestRate,
			"tenure":                  d.Tenure,
			"monthly_installment":     d.MonthlyInstallment,
		})
	}
}

func createLoanHandler(svc Lending) echo.HandlerFunc {
	return func(c echo.Context) error {
		app, err := bindApplication(c)
		if err != nil {
			return badRequest(c, "customer_id, loan_amount, interest_rate and tenure are required")
		}

		res, err := svc.CreateLoan(c.Request().Context(), app)
		if err != nil {
			return serviceError(c, err)
		}

		d := res.Decision
		if res.Loan == nil {
			return c.JSON(http.StatusOK, map[string]any{
				"loan_id":             nil,
				"decision_id":         res.DecisionID,
				"customer_id":         d.CustomerID,
				"loan_approved":       false,
				"reason":              d.Reason,
				"message":             "Loan not approved",
				"monthly_installment": d.MonthlyInstallment,
			})
		}

		return c.JSON(http.StatusCreated, map[string]any{
			"loan_id":             res.Loan.ID,
			"decision_id":         res.DecisionID,
			"customer_id":         d.CustomerID,
			"loan_approved":       true,
			"message":             "Loan approved",
			"monthly_installment": res.Loan.MonthlyInstallment,
		})
	}
}

func viewLoanHandler(svc Lending) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("loan_id"), 10, 64)
		if err != nil || id <= 0 {
			return badRequest(c, "invalid loan_id")
		}

		details, err := svc.GetLoan(c.Request().Context(), id)
		if err != nil {
			return serviceError(c, err)
		}

		l, cu := details.Loan, details.Customer
		return c.JSON(http.StatusOK, map[string]any{
			"loan_id": l.ID,
			"customer": map[string]any{
				"id":           cu.ID,
				"first_name":   cu.FirstName,
				"last_name":    cu.LastName,
				"phone_number": cu.PhoneNumber,
				"age":          cu.Age,
			},
			"loan_amount":         l.LoanAmount,
			"interest_rate":       l.InterestRate,
			"monthly_installment": l.MonthlyInstallment,
			"tenure":              l.Tenure,
		})
	}
}

type loanItem struct {
	LoanID             int64   `json:"loan_id"`
	LoanAmount         string  `json:"loan_amount"`
	InterestRate       float64 `json:"interest_rate"`
	MonthlyInstallment string  `json:"monthly_installment"`
	RepaymentsLeft     int     `json:"repayments_left"`
}

func viewLoansHandler(svc Lending) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("customer_id"), 10, 64)
		if err != nil || id <= 0 {
			return badRequest(c, "invalid customer_id")
		}

		loans, err := svc.ListCustomerLoans(c.Request().Context(), id)
		if err != nil {
			return serviceError(c, err)
		}

		out := make([]loanItem, 0, len(loans))
		for _, l := range loans {
			out = append(out, loanItem{
				LoanID:             l.ID,
				LoanAmount:         l.LoanAmount.StringFixed(2),
				InterestRate:       l.InterestRate,
				MonthlyInstallment: l.MonthlyInstallment.StringFixed(2),
				RepaymentsLeft:     l.RepaymentsLeft,
			})
		}
		return c.JSON(http.StatusOK, out)
	}
}
