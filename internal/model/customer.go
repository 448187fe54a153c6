package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	ID            int64           `db:"id"`
	FirstName     string          `db:"first_name"`
	LastName      string          `db:"last_name"`
	Age           int             `db:"age"`
	PhoneNumber   string          `db:"phone_number"`
	MonthlySalary decimal.Decimal `db:"monthly_salary"`
	ApprovedLimit decimal.Decimal `db:"approved_limit"` // fixed at registration
	CurrentDebt   decimal.Decimal `db:"current_debt"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func (c Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}
