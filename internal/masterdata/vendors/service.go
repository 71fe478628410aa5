package vendors

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Vendor, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Vendor, error) {
	if id <= 0 {
		return Vendor{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, vendor Vendor) (Vendor, error) {
	vendor, err := s.validate(vendor)
	if err != nil {
		return Vendor{}, err
	}
	created, err := s.repo.Create(ctx, vendor)
	if err != nil {
		return Vendor{}, fmt.Errorf("create vendor: %w", err)
	}
	s.bump(ctx)
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, vendor Vendor) (Vendor, error) {
	if id <= 0 {
		return Vendor{}, shared.ErrInvalidID
	}
	vendor, err := s.validate(vendor)
	if err != nil {
		return Vendor{}, err
	}
	return s.repo.Update(ctx, id, vendor)
}

// Delete removes a vendor that no purchase order or request references.
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

func (s *Service) validate(v Vendor) (Vendor, error) {
	var err error
	if v.Code, err = shared.Required("code", v.Code); err != nil {
		return Vendor{}, err
	}
	if v.Name, err = shared.Required("name", v.Name); err != nil {
		return Vendor{}, err
	}
	if v.Email, err = shared.OptionalEmail(v.Email); err != nil {
		return Vendor{}, err
	}
	if v.PaymentTerms < 0 {
		return Vendor{}, fmt.Errorf("%w: payment terms must not be negative", shared.ErrValidation)
	}
	return v, nil
}

func (s *Service) bump(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("vendor cache bump", slog.Any("error", err))
	}
}
