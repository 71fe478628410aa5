package warehouses

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Warehouse, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Warehouse, error) {
	if id <= 0 {
		return Warehouse{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	warehouse, err := s.validate(warehouse)
	if err != nil {
		return Warehouse{}, err
	}
	created, err := s.repo.Create(ctx, warehouse)
	if err != nil {
		return Warehouse{}, fmt.Errorf("create warehouse: %w", err)
	}
	s.bump(ctx)
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, warehouse Warehouse) (Warehouse, error) {
	if id <= 0 {
		return Warehouse{}, shared.ErrInvalidID
	}
	warehouse, err := s.validate(warehouse)
	if err != nil {
		return Warehouse{}, err
	}
	return s.repo.Update(ctx, id, warehouse)
}

// Delete removes a warehouse that no ledger row or order references.
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

func (s *Service) validate(w Warehouse) (Warehouse, error) {
	var err error
	if w.Code, err = shared.Required("code", w.Code); err != nil {
		return Warehouse{}, err
	}
	if w.Name, err = shared.Required("name", w.Name); err != nil {
		return Warehouse{}, err
	}
	w.Address = strings.TrimSpace(w.Address)
	return w, nil
}

func (s *Service) bump(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("warehouse cache bump", slog.Any("error", err))
	}
}
