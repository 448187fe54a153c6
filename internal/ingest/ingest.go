// Package ingest loads customers and their loan history from the XLSX exports
// the lending team maintains.
package ingest

import (
	"context"
	"fmt"
	"io"
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

const (
	KindCustomers = "customers"
	KindLoans     = "loans"
)

var (
	customerColumns = []string{"First Name", "Last Name", "Phone Number", "Monthly Salary"}
	loanColumns     = []string{"Customer ID", "Loan ID", "Loan Amount", "Tenure", "Interest Rate", "EMIs paid on Time"}
)

// RowError is a row that could not be imported.
type RowError struct {
	Row int    `json:"row"`
	Err string `json:"error"`
}

// Report summarises one import run.
type Report struct {
	Kind     string     `json:"kind"`
	Imported int        `json:"imported"`
	Skipped  int        `json:"skipped"`
	Failed   int        `json:"failed"`
	Errors   []RowError `json:"errors,omitempty"`
}

func (r *Report) fail(rw row, err error) {
	r.Failed++
	r.Errors = append(r.Errors, RowError{Row: rw.num, Err: err.Error()})
}

func (r *Report) observe() {
	metrics.IngestRowsTotal.WithLabelValues(r.Kind, "imported").Add(float64(r.Imported))
	metrics.IngestRowsTotal.WithLabelValues(r.Kind, "skipped").Add(float64(r.Skipped))
	metrics.IngestRowsTotal.WithLabelValues(r.Kind, "failed").Add(float64(r.Failed))
	logger.Log.Info("ingest finished",
		zap.String("kind", r.Kind),
		zap.Int("imported", r.Imported),
		zap.Int("skipped", r.Skipped),
		zap.Int("failed", r.Failed),
	)
}

type Importer struct {
	tx        repository.TxRunner
	customers repository.CustomersRepository
	loans     repository.LoansRepository
	policy    eligibility.Policy
	batchSize int
	now       func() time.Time
}

func NewImporter(
	tx repository.TxRunner,
	customersRepo repository.CustomersRepository,
	loansRepo repository.LoansRepository,
	policy eligibility.Policy,
	batchSize int,
) *Importer {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Importer{
		tx:        tx,
		customers: customersRepo,
		loans:     loansRepo,
		policy:    policy,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// ImportCustomers upserts every valid customer row in one transaction. A row
// without Approved Limit gets the registration limit for its salary.
func (im *Importer) ImportCustomers(ctx context.Context, r io.Reader) (Report, error) {
	rep := Report{Kind: KindCustomers}
	rows, err := readSheet(r, customerColumns...)
	if err != nil {
		return rep, err
	}

	parsed := make([]model.Customer, 0, len(rows))
	parsedRows := make([]row, 0, len(rows))
	phones := make([]string, 0, len(rows))
	for _, rw := range rows {
		c, err := parseCustomer(rw, im.policy)
		if err != nil {
			rep.fail(rw, err)
			continue
		}
		parsed = append(parsed, c)
		parsedRows = append(parsedRows, rw)
		phones = append(phones, c.PhoneNumber)
	}

	owners, err := im.customers.IDsByPhone(ctx, phones)
	if err != nil {
		return rep, fmt.Errorf("lookup phones: %w", err)
	}
	customers := make([]model.Customer, 0, len(parsed))
	for i, c := range parsed {
		if err := claimPhone(owners, c); err != nil {
			rep.fail(parsedRows[i], err)
			continue
		}
		customers = append(customers, c)
	}

	err = im.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		for _, c := range customers {
			if err := im.customers.Upsert(ctx, tx, c); err != nil {
				return fmt.Errorf("upsert customer %s: %w", c.PhoneNumber, err)
			}
		}
		return nil
	})
	if err != nil {
		return rep, err
	}

	rep.Imported = len(customers)
	rep.observe()
	return rep, nil
}

// claimPhone rejects a customer whose phone is held by a different customer,
// either in the store or earlier in the file. An owner of 0 is a row of this
// file that has no ID yet.
func claimPhone(owners map[string]int64, c model.Customer) error {
	owner, taken := owners[c.PhoneNumber]
	if taken && c.ID > 0 && owner != c.ID {
		if owner == 0 {
			return fmt.Errorf("phone %s is used by an earlier row", c.PhoneNumber)
		}
		return fmt.Errorf("phone %s belongs to customer %d", c.PhoneNumber, owner)
	}
	if !taken || c.ID > 0 {
		owners[c.PhoneNumber] = c.ID
	}
	return nil
}

func parseCustomer(rw row, p eligibility.Policy) (model.Customer, error) {
	var c model.Customer
	var err error

	if c.ID, err = rw.optWhole("Customer ID"); err != nil {
		return c, err
	}
	c.FirstName = rw.str("First Name")
	c.LastName = rw.str("Last Name")
	if c.FirstName == "" {
		return c, fmt.Errorf("First Name is empty")
	}
	c.PhoneNumber = util.NormalizePhone(rw.str("Phone Number"))
	if c.PhoneNumber == "" {
		return c, fmt.Errorf("Phone Number is empty")
	}
	age, err := rw.optWhole("Age")
	if err != nil {
		return c, err
	}
	c.Age = int(age)

	if c.MonthlySalary, err = rw.money("Monthly Salary"); err != nil {
		return c, err
	}
	if c.MonthlySalary.IsNegative() {
		return c, fmt.Errorf("Monthly Salary must not be negative")
	}

	if rw.str("Approved Limit") == "" {
		c.ApprovedLimit = eligibility.ApprovedLimit(p, c.MonthlySalary)
	} else if c.ApprovedLimit, err = rw.money("Approved Limit"); err != nil {
		return c, err
	}
	c.CurrentDebt = decimal.Zero
	return c, nil
}

// ImportLoans upserts loan history keyed by Loan ID. Loans of customers that
// are not in the store are skipped.
func (im *Importer) ImportLoans(ctx context.Context, r io.Reader) (Report, error) {
	rep := Report{Kind: KindLoans}
	rows, err := readSheet(r, loanColumns...)
	if err != nil {
		return rep, err
	}

	today := im.today()
	loans := make([]model.Loan, 0, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, rw := range rows {
		l, err := parseLoan(rw, today)
		if err != nil {
			rep.fail(rw, err)
			continue
		}
		loans = append(loans, l)
		ids = append(ids, l.CustomerID)
	}

	known, err := im.customers.ExistingIDs(ctx, ids)
	if err != nil {
		return rep, fmt.Errorf("lookup customers: %w", err)
	}
	kept := loans[:0]
	for _, l := range loans {
		if _, ok := known[l.CustomerID]; !ok {
			rep.Skipped++
			logger.Log.Debug("ingest: unknown customer", zap.Int64("customer_id", l.CustomerID), zap.Int64("loan_id", l.ID))
			continue
		}
		kept = append(kept, l)
	}

	err = im.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		for start := 0; start < len(kept); start += im.batchSize {
			end := min(start+im.batchSize, len(kept))
			if err := im.loans.UpsertBatch(ctx, tx, kept[start:end]); err != nil {
				return fmt.Errorf("upsert loans %d..%d: %w", start, end, err)
			}
		}
		return nil
	})
	if err != nil {
		return rep, err
	}

	rep.Imported = len(kept)
	rep.observe()
	return rep, nil
}

func parseLoan(rw row, today time.Time) (model.Loan, error) {
	var l model.Loan
	var err error

	if l.CustomerID, err = rw.whole("Customer ID"); err != nil {
		return l, err
	}
	if l.ID, err = rw.whole("Loan ID"); err != nil {
		return l, err
	}
	if l.LoanAmount, err = rw.money("Loan Amount"); err != nil {
		return l, err
	}
	tenure, err := rw.whole("Tenure")
	if err != nil {
		return l, err
	}
	l.Tenure = int(tenure)
	if l.InterestRate, err = rw.rate("Interest Rate"); err != nil {
		return l, err
	}
	if rw.str("Monthly payment") != "" {
		if l.MonthlyInstallment, err = rw.money("Monthly payment"); err != nil {
			return l, err
		}
	}
	emis, err := rw.whole("EMIs paid on Time")
	if err != nil {
		return l, err
	}
	l.EMIsPaidOnTime = int(emis)

	if l.StartDate, err = rw.date("Date of Approval", today); err != nil {
		return l, err
	}
	if l.EndDate, err = rw.date("End Date", today); err != nil {
		return l, err
	}
	l.RepaymentsLeft = max(0, l.Tenure-l.EMIsPaidOnTime)
	return l, nil
}

func (im *Importer) today() time.Time {
	y, m, d := im.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
