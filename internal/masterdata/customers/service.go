package customers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/odyssey-smb/internal/masterdata/shared"
)

// CacheInvalidator is notified after writes that change dashboard counts.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

type Service struct {
	repo   Repository
	cache  CacheInvalidator
	logger *slog.Logger
}

func NewService(repo Repository, cache CacheInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Customer, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	if id <= 0 {
		return Customer{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, customer Customer) (Customer, error) {
	customer, err := s.validate(customer)
	if err != nil {
		return Customer{}, err
	}
	created, err := s.repo.Create(ctx, customer)
	if err != nil {
		return Customer{}, fmt.Errorf("create customer: %w", err)
	}
	s.bump(ctx)
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, customer Customer) (Customer, error) {
	if id <= 0 {
		return Customer{}, shared.ErrInvalidID
	}
	customer, err := s.validate(customer)
	if err != nil {
		return Customer{}, err
	}
	return s.repo.Update(ctx, id, customer)
}

// Delete removes a customer that no order or quotation references.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

func (s *Service) validate(c Customer) (Customer, error) {
	var err error
	if c.Code, err = shared.Required("code", c.Code); err != nil {
		return Customer{}, err
	}
	if c.Name, err = shared.Required("name", c.Name); err != nil {
		return Customer{}, err
	}
	if c.Email, err = shared.OptionalEmail(c.Email); err != nil {
		return Customer{}, err
	}
	if c.CreditLimit.Valid && c.CreditLimit.Decimal.IsNegative() {
		return Customer{}, fmt.Errorf("%w: credit limit must not be negative", shared.ErrValidation)
	}
	return c, nil
}

func (s *Service) bump(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("customer cache bump", slog.Any("error", err))
	}
}
