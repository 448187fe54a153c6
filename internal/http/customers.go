package http

import (
	"encoding/json"
	"net/http"

	"github.com/jmehdipour/credit-engine/internal/service/lending"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// phoneField accepts a phone number sent either as a JSON string or a number.
type phoneField string

func (p *phoneField) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = phoneField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*p = phoneField(n.String())
	return nil
}

type registerReq struct {
	FirstName     string          `json:"first_name"`
	LastName      string          `json:"last_name"`
	Age           int             `json:"age"`
	MonthlyIncome decimal.Decimal `json:"monthly_income"`
	PhoneNumber   phoneField      `json:"phone_number"`
}

func registerHandler(svc Lending) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req registerReq
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "malformed body")
		}

		cu, err := svc.RegisterCustomer(c.Request().Context(), lending.Registration{
			FirstName:     req.FirstName,
			LastName:      req.LastName,
			Age:           req.Age,
			PhoneNumber:   string(req.PhoneNumber),
			MonthlyIncome: req.MonthlyIncome,
		})
		if err != nil {
			return serviceError(c, err)
		}

		return c.JSON(http.StatusCreated, map[string]any{
			"customer_id":    cu.ID,
			"name":           cu.FullName(),
			"age":            cu.Age,
			"monthly_income": cu.MonthlySalary,
			"approved_limit": cu.ApprovedLimit,
			"phone_number":   cu.PhoneNumber,
		})
	}
}
