package catalog

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/detailing-api/internal/model"
	"github.com/jwalitptl/detailing-api/internal/repository"
	apperrors "github.com/jwalitptl/detailing-api/pkg/errors"
	"github.com/jwalitptl/detailing-api/pkg/messaging"
	"github.com/jwalitptl/detailing-api/pkg/metrics"
)

const entity = "service"

type CatalogServicer interface {
	ListServices(ctx context.Context) ([]*model.Service, error)
	GetService(ctx context.Context, id int64) (*model.Service, error)
	CreateService(ctx context.Context, service *model.Service) (*model.Service, error)
	UpdateService(ctx context.Context, id int64, patch model.ServicePatch) (*model.Service, error)
	DeleteService(ctx context.Context, id int64) (*model.Service, error)
}

type Service struct {
	repo      repository.ServiceRepository
	publisher messaging.Publisher
	channel   string
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

type Option func(*Service)

// WithPublisher announces every change on channel.
func WithPublisher(p messaging.Publisher, channel string) Option {
	return func(s *Service) {
		s.publisher = p
		s.channel = channel
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(repo repository.ServiceRepository, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		publisher: messaging.Noop{},
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ListServices(ctx context.Context) ([]*model.Service, error) {
	services, err := s.repo.List(ctx)
	s.metrics.ObserveDB(entity, "list", err)
	return services, err
}

func (s *Service) GetService(ctx context.Context, id int64) (*model.Service, error) {
	service, err := s.repo.Get(ctx, id)
	s.metrics.ObserveDB(entity, "get", err)
	if err != nil {
		return nil, err
	}
	if service == nil {
		return nil, apperrors.NewNotFound("Service", nil)
	}
	return service, nil
}

func (s *Service) CreateService(ctx context.Context, service *model.Service) (*model.Service, error) {
	service.Name = strings.TrimSpace(service.Name)
	service.Description = strings.TrimSpace(service.Description)

	created, err := s.repo.Create(ctx, service)
	s.metrics.ObserveDB(entity, "create", err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "created", created.ID, created)
	return created, nil
}

func (s *Service) UpdateService(ctx context.Context, id int64, patch model.ServicePatch) (*model.Service, error) {
	trim(patch.Name)
	trim(patch.Description)

	updated, err := s.repo.Update(ctx, id, patch)
	s.metrics.ObserveDB(entity, "update", err)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperrors.NewNotFound("Service", nil)
	}

	if !patch.IsEmpty() {
		s.publish(ctx, "updated", updated.ID, updated)
	}
	return updated, nil
}

func (s *Service) DeleteService(ctx context.Context, id int64) (*model.Service, error) {
	deleted, err := s.repo.Delete(ctx, id)
	s.metrics.ObserveDB(entity, "delete", err)
	if err != nil {
		return nil, err
	}
	if deleted == nil {
		return nil, apperrors.NewNotFound("Service", nil)
	}

	s.publish(ctx, "deleted", deleted.ID, deleted)
	return deleted, nil
}

// publish never fails the request; the write has already committed.
func (s *Service) publish(ctx context.Context, action string, id int64, payload interface{}) {
	event := messaging.NewEvent(entity, action, id, payload)
	if err := s.publisher.Publish(ctx, s.channel, event); err != nil {
		s.log.Warn().Err(err).Str("event", event.Type).Int64("id", id).Msg("failed to publish event")
	}
}

func trim(v *string) {
	if v != nil {
		*v = strings.TrimSpace(*v)
	}
}
