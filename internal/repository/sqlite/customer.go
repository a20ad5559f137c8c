package sqlite

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/detailing-api/internal/model"
	"github.com/jwalitptl/detailing-api/internal/repository"
)

var customerColumns = []string{"id", "name", "email", "phone", "address", "notes", "created_at", "updated_at"}

const customerConflict = "a customer with this email already exists"

type customerRepository struct {
	BaseRepository
}

func NewCustomerRepository(db *sqlx.DB) repository.CustomerRepository {
	return &customerRepository{NewBaseRepository(db)}
}

func (r *customerRepository) selectCustomers() sq.SelectBuilder {
	return r.sq.Select(customerColumns...).From("customers")
}

func (r *customerRepository) list(ctx context.Context, b sq.SelectBuilder) ([]*model.Customer, error) {
	query, args, err := b.OrderBy("created_at DESC", "id DESC").ToSql()
	if err != nil {
		return nil, err
	}
	customers := []*model.Customer{}
	if err := r.db.SelectContext(ctx, &customers, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return customers, nil
}

func (r *customerRepository) List(ctx context.Context) ([]*model.Customer, error) {
	return r.list(ctx, r.selectCustomers())
}

// Search matches term against name, email and phone, case-insensitively.
func (r *customerRepository) Search(ctx context.Context, term string) ([]*model.Customer, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return r.List(ctx)
	}
	pattern := "%" + likeEscaper.Replace(term) + "%"
	return r.list(ctx, r.selectCustomers().Where(sq.Or{
		sq.Expr(`name LIKE ? ESCAPE '\'`, pattern),
		sq.Expr(`email LIKE ? ESCAPE '\'`, pattern),
		sq.Expr(`phone LIKE ? ESCAPE '\'`, pattern),
	}))
}

// likeEscaper makes LIKE wildcards in a search term match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *customerRepository) get(ctx context.Context, where sq.Sqlizer) (*model.Customer, error) {
	query, args, err := r.selectCustomers().Where(where).ToSql()
	if err != nil {
		return nil, err
	}
	var customer model.Customer
	if err := r.db.GetContext(ctx, &customer, query, args...); err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &customer, nil
}

func (r *customerRepository) Get(ctx context.Context, id int64) (*model.Customer, error) {
	return r.get(ctx, sq.Eq{"id": id})
}

// GetByEmail relies on the column's NOCASE collation for case-insensitive matching.
func (r *customerRepository) GetByEmail(ctx context.Context, email string) (*model.Customer, error) {
	return r.get(ctx, sq.Eq{"email": strings.TrimSpace(email)})
}

func (r *customerRepository) Create(ctx context.Context, customer *model.Customer) (*model.Customer, error) {
	now := r.now()
	query, args, err := r.sq.Insert("customers").
		Columns("name", "email", "phone", "address", "notes", "created_at", "updated_at").
		Values(customer.Name, customer.Email, customer.Phone, customer.Address, customer.Notes, now, now).
		ToSql()
	if err != nil {
		return nil, err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "create customer", customerConflict)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read customer id: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *customerRepository) Update(ctx context.Context, id int64, patch model.CustomerPatch) (*model.Customer, error) {
	if patch.IsEmpty() {
		return r.Get(ctx, id)
	}

	b := r.sq.Update("customers").Where(sq.Eq{"id": id})
	set := func(column string, v *string) {
		if v != nil {
			b = b.Set(column, *v)
		}
	}
	set("name", patch.Name)
	set("email", patch.Email)
	set("phone", patch.Phone)
	setOptional := func(column string, v *string) {
		if v != nil && *v == "" {
			b = b.Set(column, nil)
			return
		}
		set(column, v)
	}
	setOptional("address", patch.Address)
	setOptional("notes", patch.Notes)

	query, args, err := b.Set("updated_at", r.now()).ToSql()
	if err != nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "update customer", customerConflict)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, nil
	}
	return r.Get(ctx, id)
}

func (r *customerRepository) Delete(ctx context.Context, id int64) (*model.Customer, error) {
	customer, err := r.Get(ctx, id)
	if err != nil || customer == nil {
		return nil, err
	}

	query, args, err := r.sq.Delete("customers").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to delete customer: %w", err)
	}
	return customer, nil
}
