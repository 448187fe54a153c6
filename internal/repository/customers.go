package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmehdipour/credit-engine/internal/model"
	"github.com/jmoiron/sqlx"
)

type CustomersRepository interface {
	Create(ctx context.Context, c *model.Customer) error
	// GetByID returns (nil, nil) when the customer does not exist.
	GetByID(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Customer, error)
	// GetForUpdate locks the customer row until tx ends.
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Customer, error)
	Upsert(ctx context.Context, tx *sqlx.Tx, c model.Customer) error
	ExistingIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error)
	// IDsByPhone maps each stored phone number among phones to its customer.
	IDsByPhone(ctx context.Context, phones []string) (map[string]int64, error)
}

type CustomersRepositoryImpl struct {
	db *sqlx.DB
}

func NewCustomersRepository(db *sqlx.DB) *CustomersRepositoryImpl {
	return &CustomersRepositoryImpl{db: db}
}

var _ CustomersRepository = (*CustomersRepositoryImpl)(nil)

const customerColumns = `id, first_name, last_name, age, phone_number, monthly_salary,
	       approved_limit, current_debt, created_at, updated_at`

func (r *CustomersRepositoryImpl) Create(ctx context.Context, c *model.Customer) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO customers
		    (first_name, last_name, age, phone_number, monthly_salary, approved_limit, current_debt, created_at, updated_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
	`, c.FirstName, c.LastName, c.Age, c.PhoneNumber, c.MonthlySalary, c.ApprovedLimit, c.CurrentDebt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (r *CustomersRepositoryImpl) GetByID(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Customer, error) {
	return r.get(ctx, ext(r.db, tx), `SELECT `+customerColumns+` FROM customers WHERE id = ? LIMIT 1`, id)
}

func (r *CustomersRepositoryImpl) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Customer, error) {
	if tx == nil {
		return nil, errors.New("get for update: tx required")
	}
	return r.get(ctx, tx, `SELECT `+customerColumns+` FROM customers WHERE id = ? FOR UPDATE`, id)
}

func (r *CustomersRepositoryImpl) get(ctx context.Context, q sqlx.QueryerContext, query string, id int64) (*model.Customer, error) {
	var c model.Customer
	err := sqlx.GetContext(ctx, q, &c, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Upsert inserts or refreshes an imported customer. Rows with an ID keep it;
// rows without one are matched on the unique phone number. A row whose ID is
// new but whose phone belongs to another customer would update that customer,
// so callers check IDsByPhone first.
func (r *CustomersRepositoryImpl) Upsert(ctx context.Context, tx *sqlx.Tx, c model.Customer) error {
	var id any
	if c.ID > 0 {
		id = c.ID
	}
	const q = `
		INSERT INTO customers
		    (id, first_name, last_name, age, phone_number, monthly_salary, approved_limit, current_debt, created_at, updated_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE
		    first_name     = VALUES(first_name),
		    last_name      = VALUES(last_name),
		    age            = VALUES(age),
		    phone_number   = VALUES(phone_number),
		    monthly_salary = VALUES(monthly_salary),
		    approved_limit = VALUES(approved_limit),
		    current_debt   = VALUES(current_debt),
		    updated_at     = VALUES(updated_at)
	`
	_, err := ext(r.db, tx).ExecContext(ctx, q,
		id, c.FirstName, c.LastName, c.Age, c.PhoneNumber, c.MonthlySalary, c.ApprovedLimit, c.CurrentDebt,
	)
	return err
}

func (r *CustomersRepositoryImpl) ExistingIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error) {
	out := make(map[int64]struct{}, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT id FROM customers WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}

	var found []int64
	if err := r.db.SelectContext(ctx, &found, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, id := range found {
		out[id] = struct{}{}
	}
	return out, nil
}

func (r *CustomersRepositoryImpl) IDsByPhone(ctx context.Context, phones []string) (map[string]int64, error) {
	out := make(map[string]int64, len(phones))
	if len(phones) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT id, phone_number FROM customers WHERE phone_number IN (?)`, phones)
	if err != nil {
		return nil, err
	}

	var found []struct {
		ID    int64  `db:"id"`
		Phone string `db:"phone_number"`
	}
	if err := r.db.SelectContext(ctx, &found, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, f := range found {
		out[f.Phone] = f.ID
	}
	return out, nil
}
