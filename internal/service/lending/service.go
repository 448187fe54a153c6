// Package lending wires the eligibility engine to the customer and loan
// stores: it loads the snapshot the engine needs, commits approved loans and
// records every decision to the outbox.
package lending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/credit-engine/internal/eligibility"
	"github.com/jmehdipour/credit-engine/internal/logger"
	"github.com/jmehdipour/credit-engine/internal/metrics"
	"github.com/jmehdipour/credit-engine/internal/model"
	"github.com/jmehdipour/credit-engine/internal/repository"
	"github.com/jmehdipour/credit-engine/internal/util"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrLoanNotFound     = errors.New("loan not found")

	// ErrInvalidInput is shared with the engine so callers check one sentinel.
	ErrInvalidInput = eligibility.ErrInvalidInput
)

type Service struct {
	tx        repository.TxRunner
	customers repository.CustomersRepository
	loans     repository.LoansRepository
	outbox    repository.OutboxRepository
	engine    *eligibility.Engine
	now       func() time.Time
}

func New(
	tx repository.TxRunner,
	customersRepo repository.CustomersRepository,
	loansRepo repository.LoansRepository,
	outboxRepo repository.OutboxRepository,
	engine *eligibility.Engine,
) *Service {
	return &Service{
		tx:        tx,
		customers: customersRepo,
		loans:     loansRepo,
		outbox:    outboxRepo,
		engine:    engine,
		now:       time.Now,
	}
}

// Registration is the input of RegisterCustomer.
type Registration struct {
	FirstName     string
	LastName      string
	Age           int
	PhoneNumber   string
	MonthlyIncome decimal.Decimal
}

// RegisterCustomer creates a customer whose approved limit is derived from the
// monthly income once, here, and never recomputed.
func (s *Service) RegisterCustomer(ctx context.Context, r Registration) (*model.Customer, error) {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.PhoneNumber = util.NormalizePhone(r.PhoneNumber)

	switch {
	case r.FirstName == "" || r.LastName == "":
		return nil, fmt.Errorf("%w: first_name and last_name are required", ErrInvalidInput)
	case r.PhoneNumber == "":
		return nil, fmt.Errorf("%w: phone_number is required", ErrInvalidInput)
	case r.Age < 0:
		return nil, fmt.Errorf("%w: age must not be negative", ErrInvalidInput)
	case r.MonthlyIncome.IsNegative():
		return nil, fmt.Errorf("%w: monthly_income must not be negative", ErrInvalidInput)
	}

	c := &model.Customer{
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Age:           r.Age,
		PhoneNumber:   r.PhoneNumber,
		MonthlySalary: r.MonthlyIncome,
		ApprovedLimit: eligibility.ApprovedLimit(s.engine.Policy(), r.MonthlyIncome),
		CurrentDebt:   decimal.Zero,
	}
	if err := s.customers.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("insert customer: %w", err)
	}
	return c, nil
}

// Result is a decision plus, for CreateLoan, the committed loan.
type Result struct {
	DecisionID string
	Decision   model.Decision
	Loan       *model.Loan // nil unless a loan was created
}

// CheckEligibility decides an application without committing a loan.
func (s *Service) CheckEligibility(ctx context.Context, app model.LoanApplication) (Result, error) {
	c, err := s.customers.GetByID(ctx, nil, app.CustomerID)
	if err != nil {
		return Result{}, fmt.Errorf("get customer: %w", err)
	}
	if c == nil {
		return Result{}, ErrCustomerNotFound
	}

	history, err := s.loans.ListByCustomer(ctx, nil, c.ID)
	if err != nil {
		return Result{}, fmt.Errorf("list loans: %w", err)
	}

	d, err := s.engine.Decide(*c, history, app)
	if err != nil {
		return Result{}, err
	}

	res := Result{DecisionID: util.NewID(s.now()), Decision: d}
	if err := s.record(ctx, nil, res); err != nil {
		return Result{}, err
	}
	observe(res)
	return res, nil
}

// CreateLoan decides an application and, if approved, commits the loan. The
// customer row stays locked while its loans are read and the new one written,
// so concurrent applications of one customer are decided one after another.
func (s *Service) CreateLoan(ctx context.Context, app model.LoanApplication) (Result, error) {
	var res Result
	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		c, err := s.customers.GetForUpdate(ctx, tx, app.CustomerID)
		if err != nil {
			return fmt.Errorf("lock customer: %w", err)
		}
		if c == nil {
			return ErrCustomerNotFound
		}

		history, err := s.loans.ListByCustomer(ctx, tx, c.ID)
		if err != nil {
			return fmt.Errorf("list loans: %w", err)
		}

		d, err := s.engine.Decide(*c, history, app)
		if err != nil {
			return err
		}

		now := s.now()
		res = Result{DecisionID: util.NewID(now), Decision: d}

		if d.Approved {
			start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
			loan := &model.Loan{
				CustomerID:         c.ID,
				LoanAmount:         d.LoanAmount,
				Tenure:             d.Tenure,
				InterestRate:       d.CorrectedInterestRate,
				MonthlyInstallment: d.MonthlyInstallment,
				EMIsPaidOnTime:     0,
				StartDate:          start,
				EndDate:            start.AddDate(0, d.Tenure, 0),
				RepaymentsLeft:     d.Tenure,
			}
			if err := s.loans.Insert(ctx, tx, loan); err != nil {
				return fmt.Errorf("insert loan: %w", err)
			}
			res.Loan = loan
		}

		return s.record(ctx, tx, res)
	})
	if err != nil {
		return Result{}, err
	}

	observe(res)
	if res.Loan != nil {
		metrics.LoansCreatedTotal.Inc()
		logger.Log.Info("loan created",
			zap.Int64("loan_id", res.Loan.ID),
			zap.Int64("customer_id", res.Loan.CustomerID),
			zap.String("decision_id", res.DecisionID),
		)
	}
	return res, nil
}

// record writes the decision to the outbox for the analytics stream.
func (s *Service) record(ctx context.Context, tx *sqlx.Tx, res Result) error {
	env := model.DecisionEnvelope{
		ID:        res.DecisionID,
		Decision:  res.Decision,
		DecidedAt: s.now().UTC(),
	}
	if res.Loan != nil {
		id := res.Loan.ID
		env.LoanID = &id
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	if err := s.outbox.Insert(ctx, tx, model.OutboxEvent{
		Aggregate:   model.AggregateDecision,
		AggregateID: res.DecisionID,
		Topic:       model.TopicDecisions,
		Payload:     payload,
	}); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}

// observe counts and logs a decision once it is durable.
func observe(res Result) {
	d := res.Decision
	metrics.DecisionsTotal.WithLabelValues(d.Tier, metrics.Outcome(d.Approved)).Inc()
	logger.Log.Debug("decision",
		zap.String("id", res.DecisionID),
		zap.Int64("customer_id", d.CustomerID),
		zap.Int("score", d.CreditScore),
		zap.String("tier", d.Tier),
		zap.Bool("approved", d.Approved),
		zap.String("reason", d.Reason.String()),
	)
}

// LoanDetails is a loan together with its borrower.
type LoanDetails struct {
	Loan     model.Loan
	Customer model.Customer
}

func (s *Service) GetLoan(ctx context.Context, id int64) (LoanDetails, error) {
	l, err := s.loans.GetByID(ctx, id)
	if err != nil {
		return LoanDetails{}, fmt.Errorf("get loan: %w", err)
	}
	if l == nil {
		return LoanDetails{}, ErrLoanNotFound
	}

	c, err := s.customers.GetByID(ctx, nil, l.CustomerID)
	if err != nil {
		return LoanDetails{}, fmt.Errorf("get customer: %w", err)
	}
	if c == nil {
		return LoanDetails{}, ErrCustomerNotFound
	}
	return LoanDetails{Loan: *l, Customer: *c}, nil
}

func (s *Service) ListCustomerLoans(ctx context.Context, customerID int64) ([]model.Loan, error) {
	c, err := s.customers.GetByID(ctx, nil, customerID)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if c == nil {
		return nil, ErrCustomerNotFound
	}

	loans, err := s.loans.ListByCustomer(ctx, nil, customerID)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	return loans, nil
}
