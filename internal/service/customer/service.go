package customer

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/detailing-api/internal/email"
	"github.com/jwalitptl/detailing-api/internal/model"
	"github.com/jwalitptl/detailing-api/internal/repository"
	apperrors "github.com/jwalitptl/detailing-api/pkg/errors"
	"github.com/jwalitptl/detailing-api/pkg/messaging"
	"github.com/jwalitptl/detailing-api/pkg/metrics"
)

const entity = "customer"

type CustomerServicer interface {
	ListCustomers(ctx context.Context) ([]*model.Customer, error)
	SearchCustomers(ctx context.Context, term string) ([]*model.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*model.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*model.Customer, error)
	CreateCustomer(ctx context.Context, customer *model.Customer) (*model.Customer, error)
	UpdateCustomer(ctx context.Context, id int64, patch model.CustomerPatch) (*model.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) (*model.Customer, error)
}

type Service struct {
	repo      repository.CustomerRepository
	emailSvc  email.Service
	publisher messaging.Publisher
	channel   string
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

type Option func(*Service)

func WithPublisher(p messaging.Publisher, channel string) Option {
	return func(s *Service) {
		s.publisher = p
		s.channel = channel
	}
}

// WithEmail sends a notification for every new customer.
func WithEmail(e email.Service) Option {
	return func(s *Service) { s.emailSvc = e }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(repo repository.CustomerRepository, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		emailSvc:  email.Noop{},
		publisher: messaging.Noop{},
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ListCustomers(ctx context.Context) ([]*model.Customer, error) {
	customers, err := s.repo.List(ctx)
	s.metrics.ObserveDB(entity, "list", err)
	return customers, err
}

func (s *Service) SearchCustomers(ctx context.Context, term string) ([]*model.Customer, error) {
	customers, err := s.repo.Search(ctx, term)
	s.metrics.ObserveDB(entity, "search", err)
	return customers, err
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	customer, err := s.repo.Get(ctx, id)
	s.metrics.ObserveDB(entity, "get", err)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, apperrors.NewNotFound("Customer", nil)
	}
	return customer, nil
}

func (s *Service) GetCustomerByEmail(ctx context.Context, address string) (*model.Customer, error) {
	customer, err := s.repo.GetByEmail(ctx, normalizeEmail(address))
	s.metrics.ObserveDB(entity, "get_by_email", err)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, apperrors.NewNotFound("Customer", nil)
	}
	return customer, nil
}

func (s *Service) CreateCustomer(ctx context.Context, customer *model.Customer) (*model.Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	customer.Email = normalizeEmail(customer.Email)
	customer.Phone = strings.TrimSpace(customer.Phone)
	customer.Address = trimOptional(customer.Address)
	customer.Notes = trimOptional(customer.Notes)

	created, err := s.repo.Create(ctx, customer)
	s.metrics.ObserveDB(entity, "create", err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "created", created.ID, created)
	if err := s.emailSvc.SendNewCustomer(ctx, created); err != nil {
		s.log.Warn().Err(err).Int64("id", created.ID).Msg("failed to send new customer notification")
	}
	return created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id int64, patch model.CustomerPatch) (*model.Customer, error) {
	if patch.Name != nil {
		*patch.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Email != nil {
		*patch.Email = normalizeEmail(*patch.Email)
	}
	if patch.Phone != nil {
		*patch.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.Address != nil {
		*patch.Address = strings.TrimSpace(*patch.Address)
	}
	if patch.Notes != nil {
		*patch.Notes = strings.TrimSpace(*patch.Notes)
	}

	updated, err := s.repo.Update(ctx, id, patch)
	s.metrics.ObserveDB(entity, "update", err)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperrors.NewNotFound("Customer", nil)
	}

	if !patch.IsEmpty() {
		s.publish(ctx, "updated", updated.ID, updated)
	}
	return updated, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	deleted, err := s.repo.Delete(ctx, id)
	s.metrics.ObserveDB(entity, "delete", err)
	if err != nil {
		return nil, err
	}
	if deleted == nil {
		return nil, apperrors.NewNotFound("Customer", nil)
	}

	s.publish(ctx, "deleted", deleted.ID, deleted)
	return deleted, nil
}

func (s *Service) publish(ctx context.Context, action string, id int64, payload interface{}) {
	event := messaging.NewEvent(entity, action, id, payload)
	if err := s.publisher.Publish(ctx, s.channel, event); err != nil {
		s.log.Warn().Err(err).Str("event", event.Type).Int64("id", id).Msg("failed to publish event")
	}
}

func normalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// trimOptional treats a blank optional field as absent.
func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
