package ingest

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jmehdipour/credit-engine/internal/eligibility"
	"github.com/jmehdipour/credit-engine/internal/model"
)

type noTx struct{}

func (noTx) InTx(_ context.Context, fn func(tx *sqlx.Tx) error) error { return fn(nil) }

type stubCustomers struct {
	upserted []model.Customer
	known    map[int64]struct{}
	phones   map[string]int64
	err      error
}

func (s *stubCustomers) Create(context.Context, *model.Customer) error { return nil }
func (s *stubCustomers) GetByID(context.Context, *sqlx.Tx, int64) (*model.Customer, error) {
	return nil, nil
}
func (s *stubCustomers) GetForUpdate(context.Context, *sqlx.Tx, int64) (*model.Customer, error) {
	return nil, nil
}

func (s *stubCustomers) Upsert(_ context.Context, _ *sqlx.Tx, c model.Customer) error {
	if s.err != nil {
		return s.err
	}
	s.upserted = append(s.upserted, c)
	return nil
}

func (s *stubCustomers) ExistingIDs(_ context.Context, ids []int64) (map[int64]struct{}, error) {
	out := map[int64]struct{}{}
	for _, id := range ids {
		if _, ok := s.known[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (s *stubCustomers) IDsByPhone(_ context.Context, phones []string) (map[string]int64, error) {
	out := map[string]int64{}
	for _, p := range phones {
		if id, ok := s.phones[p]; ok {
			out[p] = id
		}
	}
	return out, nil
}

type stubLoans struct {
	batches [][]model.Loan
}

func (s *stubLoans) ListByCustomer(context.Context, *sqlx.Tx, int64) ([]model.Loan, error) {
	return nil, nil
}
func (s *stubLoans) GetByID(context.Context, int64) (*model.Loan, error) { return nil, nil }
func (s *stubLoans) Insert(context.Context, *sqlx.Tx, *model.Loan) error { return nil }

func (s *stubLoans) UpsertBatch(_ context.Context, _ *sqlx.Tx, loans []model.Loan) error {
	s.batches = append(s.batches, append([]model.Loan(nil), loans...))
	return nil
}

func (s *stubLoans) all() []model.Loan {
	var out []model.Loan
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func workbook(t *testing.T, rows ...[]any) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

var customerHeader = []any{"Customer ID", "First Name", "Last Name", "Age", "Phone Number", "Monthly Salary", "Approved Limit"}

var loanHeader = []any{"Customer ID", "Loan ID", "Loan Amount", "Tenure", "Interest Rate", "Monthly payment",
	"EMIs paid on Time", "Date of Approval", "End Date"}

func newImporter(c *stubCustomers, l *stubLoans, batch int) *Importer {
	im := NewImporter(noTx{}, c, l, eligibility.DefaultPolicy(), batch)
	im.now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }
	return im
}

func TestImportCustomers(t *testing.T) {
	customers := &stubCustomers{}
	im := newImporter(customers, &stubLoans{}, 0)

	rep, err := im.ImportCustomers(context.Background(), workbook(t,
		customerHeader,
		[]any{1, "Aaron", "Garcia", 63, "9629317944", 9000, 3240000},
		[]any{"", "Mia", "Lee", 29, "+44 7700 900123", 50000, ""},
		[]any{3, "", "Nobody", 40, 123, 1000, 36000},
		[]any{4, "Zed", "Bad", 33, 555, "lots", 100},
	))
	require.NoError(t, err)

	assert.Equal(t, KindCustomers, rep.Kind)
	assert.Equal(t, 2, rep.Imported)
	assert.Equal(t, 2, rep.Failed)
	require.Len(t, rep.Errors, 2)
	assert.Equal(t, 4, rep.Errors[0].Row)
	assert.Equal(t, 5, rep.Errors[1].Row)

	require.Len(t, customers.upserted, 2)
	aaron := customers.upserted[0]
	assert.Equal(t, int64(1), aaron.ID)
	assert.Equal(t, "9629317944", aaron.PhoneNumber)
	assert.Equal(t, 63, aaron.Age)
	assert.True(t, aaron.ApprovedLimit.Equal(decimal.NewFromInt(3_240_000)))
	assert.True(t, aaron.CurrentDebt.IsZero())

	mia := customers.upserted[1]
	assert.Zero(t, mia.ID)
	assert.Equal(t, "+447700900123", mia.PhoneNumber)
	assert.True(t, mia.ApprovedLimit.Equal(decimal.NewFromInt(1_800_000)), "computed limit %s", mia.ApprovedLimit)
}

func TestImportCustomers_PhoneOwnedByAnotherCustomer(t *testing.T) {
	customers := &stubCustomers{phones: map[string]int64{"9629317944": 1}}
	im := newImporter(customers, &stubLoans{}, 0)

	rep, err := im.ImportCustomers(context.Background(), workbook(t,
		customerHeader,
		[]any{1, "Aaron", "Garcia", 63, "9629317944", 9000, ""},  // same customer, refreshed
		[]any{2, "Eve", "Impostor", 30, "9629317944", 9000, ""},  // would overwrite customer 1
		[]any{"", "Aaron", "Garcia", 64, "9629317944", 9500, ""}, // no ID, matched on phone
		[]any{3, "Mia", "Lee", 29, "7700900123", 5000, ""},
		[]any{4, "Max", "Lee", 31, "7700900123", 5000, ""}, // taken by the row above
		[]any{"", "Ann", "New", 22, "5550001", 1000, ""},
		[]any{5, "Bob", "New", 25, "5550001", 1000, ""}, // taken by an ID-less row
	))
	require.NoError(t, err)

	assert.Equal(t, 4, rep.Imported)
	assert.Equal(t, 3, rep.Failed)
	require.Len(t, rep.Errors, 3)
	assert.Equal(t, RowError{Row: 3, Err: "phone 9629317944 belongs to customer 1"}, rep.Errors[0])
	assert.Equal(t, RowError{Row: 6, Err: "phone 7700900123 belongs to customer 3"}, rep.Errors[1])
	assert.Equal(t, RowError{Row: 8, Err: "phone 5550001 is used by an earlier row"}, rep.Errors[2])

	ids := make([]int64, 0, len(customers.upserted))
	for _, c := range customers.upserted {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []int64{1, 0, 3, 0}, ids)
}

func TestImportCustomers_MissingColumn(t *testing.T) {
	im := newImporter(&stubCustomers{}, &stubLoans{}, 0)

	_, err := im.ImportCustomers(context.Background(), workbook(t,
		[]any{"Customer ID", "First Name", "Last Name"},
		[]any{1, "Aaron", "Garcia"},
	))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Phone Number")
}

func TestImportCustomers_StoreError(t *testing.T) {
	errDB := errors.New("db down")
	im := newImporter(&stubCustomers{err: errDB}, &stubLoans{}, 0)

	_, err := im.ImportCustomers(context.Background(), workbook(t,
		customerHeader,
		[]any{1, "Aaron", "Garcia", 63, "9629317944", 9000, 3240000},
	))
	assert.ErrorIs(t, err, errDB)
}

func TestImportCustomers_NotAWorkbook(t *testing.T) {
	im := newImporter(&stubCustomers{}, &stubLoans{}, 0)
	_, err := im.ImportCustomers(context.Background(), bytes.NewReader([]byte("id,name\n1,x\n")))
	assert.Error(t, err)
}

func TestImportLoans(t *testing.T) {
	customers := &stubCustomers{known: map[int64]struct{}{1: {}, 2: {}}}
	loans := &stubLoans{}
	im := newImporter(customers, loans, 2)

	rep, err := im.ImportLoans(context.Background(), workbook(t,
		loanHeader,
		[]any{1, 8638, 900000, 138, 16.06, 24236, 5, "2024-01-15", "2035-07-15"},
		[]any{1, 8639, 100000, 12, 9.5, 8769, 20, "", ""},
		[]any{2, 9000, 50000, 6, 0, 8334, 6, "2026-03-01", "2026-09-01"},
		[]any{99, 9001, 50000, 6, 10, 8600, 1, "2026-03-01", "2026-09-01"},
		[]any{2, "x", 50000, 6, 10, 8600, 1, "2026-03-01", "2026-09-01"},
	))
	require.NoError(t, err)

	assert.Equal(t, KindLoans, rep.Kind)
	assert.Equal(t, 3, rep.Imported)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, 1, rep.Failed)
	assert.Len(t, loans.batches, 2)

	all := loans.all()
	require.Len(t, all, 3)

	first := all[0]
	assert.Equal(t, int64(8638), first.ID)
	assert.Equal(t, 16.06, first.InterestRate)
	assert.Equal(t, 133, first.RepaymentsLeft)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), first.StartDate)
	assert.True(t, first.MonthlyInstallment.Equal(decimal.NewFromInt(24236)))

	// paid more EMIs than the tenure, no dates
	second := all[1]
	assert.Equal(t, 0, second.RepaymentsLeft)
	today := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, today, second.StartDate)
	assert.Equal(t, today, second.EndDate)
}

func TestRowDate(t *testing.T) {
	def := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := map[string]time.Time{
		"":           def,
		"2024-02-29": time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		"11-15-19":   time.Date(2019, 11, 15, 0, 0, 0, 0, time.UTC),
		"3/7/2021":   time.Date(2021, 3, 7, 0, 0, 0, 0, time.UTC),
		"45292":      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			r := row{values: map[string]string{"date of approval": in}}
			got, err := r.date("Date of Approval", def)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	_, err := row{values: map[string]string{"end date": "someday"}}.date("End Date", def)
	assert.Error(t, err)
}

func TestRowWhole(t *testing.T) {
	r := row{values: map[string]string{"tenure": "12.0", "age": "12.5"}}

	n, err := r.whole("Tenure")
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	_, err = r.whole("Age")
	assert.Error(t, err)

	n, err = r.optWhole("Customer ID")
	require.NoError(t, err)
	assert.Zero(t, n)
}
