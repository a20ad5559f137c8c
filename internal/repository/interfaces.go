package repository

import (
	"context"

	"github.com/jwalitptl/detailing-api/internal/model"
)

// Lookups of a missing id return (nil, nil). Uniqueness violations are
// reported as a typed conflict error.
type (
	ServiceRepository interface {
		List(ctx context.Context) ([]*model.Service, error)
		Get(ctx context.Context, id int64) (*model.Service, error)
		Create(ctx context.Context, service *model.Service) (*model.Service, error)
		Update(ctx context.Context, id int64, patch model.ServicePatch) (*model.Service, error)
		Delete(ctx context.Context, id int64) (*model.Service, error)
	}

	CustomerRepository interface {
		List(ctx context.Context) ([]*model.Customer, error)
		Search(ctx context.Context, term string) ([]*model.Customer, error)
		Get(ctx context.Context, id int64) (*model.Customer, error)
		GetByEmail(ctx context.Context, email string) (*model.Customer, error)
		Create(ctx context.Context, customer *model.Customer) (*model.Customer, error)
		Update(ctx context.Context, id int64, patch model.CustomerPatch) (*model.Customer, error)
		Delete(ctx context.Context, id int64) (*model.Customer, error)
	}
)
