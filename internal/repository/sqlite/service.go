package sqlite

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/detailing-api/internal/model"
	"github.com/jwalitptl/detailing-api/internal/repository"
)

var serviceColumns = []string{"id", "name", "description", "price", "created_at", "updated_at"}

const serviceConflict = "a service with this name already exists"

type serviceRepository struct {
	BaseRepository
}

func NewServiceRepository(db *sqlx.DB) repository.ServiceRepository {
	return &serviceRepository{NewBaseRepository(db)}
}

func (r *serviceRepository) List(ctx context.Context) ([]*model.Service, error) {
	query, args, err := r.sq.Select(serviceColumns...).From("services").OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	services := []*model.Service{}
	if err := r.db.SelectContext(ctx, &services, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

func (r *serviceRepository) Get(ctx context.Context, id int64) (*model.Service, error) {
	query, args, err := r.sq.Select(serviceColumns...).From("services").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	var service model.Service
	if err := r.db.GetContext(ctx, &service, query, args...); err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &service, nil
}

// Create inserts the service and returns the row as stored.
func (r *serviceRepository) Create(ctx context.Context, service *model.Service) (*model.Service, error) {
	now := r.now()
	query, args, err := r.sq.Insert("services").
		Columns("name", "description", "price", "created_at", "updated_at").
		Values(service.Name, service.Description, service.Price, now, now).
		ToSql()
	if err != nil {
		return nil, err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "create service", serviceConflict)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read service id: %w", err)
	}
	return r.Get(ctx, id)
}

// Update sets only the fields present in patch. An empty patch returns the
// current row untouched.
func (r *serviceRepository) Update(ctx context.Context, id int64, patch model.ServicePatch) (*model.Service, error) {
	if patch.IsEmpty() {
		return r.Get(ctx, id)
	}

	b := r.sq.Update("services").Where(sq.Eq{"id": id})
	if patch.Name != nil {
		b = b.Set("name", *patch.Name)
	}
	if patch.Description != nil {
		b = b.Set("description", *patch.Description)
	}
	if patch.Price != nil {
		b = b.Set("price", *patch.Price)
	}
	query, args, err := b.Set("updated_at", r.now()).ToSql()
	if err != nil {
		return nil, err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "update service", serviceConflict)
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

// Delete removes the service and returns its last stored state.
func (r *serviceRepository) Delete(ctx context.Context, id int64) (*model.Service, error) {
	service, err := r.Get(ctx, id)
	if err != nil || service == nil {
		return nil, err
	}

	query, args, err := r.sq.Delete("services").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to delete service: %w", err)
	}
	return service, nil
}
