package lending

import (
	"context"
	"errors"
	"sort"

	"github.com/jmehdipour/credit-engine/internal/model"
	"github.com/jmoiron/sqlx"
)

type fakeTx struct {
	calls     int
	commitErr error // returned after fn succeeds, as a failed COMMIT would
}

func (f *fakeTx) InTx(_ context.Context, fn func(tx *sqlx.Tx) error) error {
	f.calls++
	if err := fn(nil); err != nil {
		return err
	}
	return f.commitErr
}

type fakeCustomers struct {
	rows   map[int64]model.Customer
	nextID int64
	locked []int64
	err    error
}

func newFakeCustomers(cs ...model.Customer) *fakeCustomers {
	f := &fakeCustomers{rows: map[int64]model.Customer{}, nextID: 100}
	for _, c := range cs {
		f.rows[c.ID] = c
	}
	return f
}

func (f *fakeCustomers) Create(_ context.Context, c *model.Customer) error {
	if f.err != nil {
		return f.err
	}
	f.nextID++
	c.ID = f.nextID
	f.rows[c.ID] = *c
	return nil
}

func (f *fakeCustomers) GetByID(_ context.Context, _ *sqlx.Tx, id int64) (*model.Customer, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeCustomers) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Customer, error) {
	f.locked = append(f.locked, id)
	return f.GetByID(ctx, tx, id)
}

func (f *fakeCustomers) Upsert(_ context.Context, _ *sqlx.Tx, c model.Customer) error {
	f.rows[c.ID] = c
	return nil
}

func (f *fakeCustomers) ExistingIDs(_ context.Context, ids []int64) (map[int64]struct{}, error) {
	out := map[int64]struct{}{}
	for _, id := range ids {
		if _, ok := f.rows[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (f *fakeCustomers) IDsByPhone(_ context.Context, phones []string) (map[string]int64, error) {
	out := map[string]int64{}
	for _, p := range phones {
		for id, c := range f.rows {
			if c.PhoneNumber == p {
				out[p] = id
			}
		}
	}
	return out, nil
}

type fakeLoans struct {
	rows   map[int64]model.Loan
	nextID int64
	err    error
}

func newFakeLoans(ls ...model.Loan) *fakeLoans {
	f := &fakeLoans{rows: map[int64]model.Loan{}, nextID: 1000}
	for _, l := range ls {
		f.rows[l.ID] = l
	}
	return f
}

func (f *fakeLoans) ListByCustomer(_ context.Context, _ *sqlx.Tx, customerID int64) ([]model.Loan, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Loan
	for _, l := range f.rows {
		if l.CustomerID == customerID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeLoans) GetByID(_ context.Context, id int64) (*model.Loan, error) {
	l, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (f *fakeLoans) Insert(_ context.Context, _ *sqlx.Tx, l *model.Loan) error {
	if f.err != nil {
		return f.err
	}
	f.nextID++
	l.ID = f.nextID
	f.rows[l.ID] = *l
	return nil
}

func (f *fakeLoans) UpsertBatch(_ context.Context, _ *sqlx.Tx, loans []model.Loan) error {
	for _, l := range loans {
		f.rows[l.ID] = l
	}
	return nil
}

type fakeOutbox struct {
	events []model.OutboxEvent
	err    error
}

func (f *fakeOutbox) Insert(_ context.Context, _ *sqlx.Tx, ev model.OutboxEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

var errDB = errors.New("db down")
