package classinstance

import (
	"context"
	"errors"
	"time"

	"github.com/jilaboon/rafit-sub000/internal/apperror"
)

type Service interface {
	Create(ctx context.Context, req CreateClassRequest) (*ClassInstance, error)
	GetWithAvailability(ctx context.Context, id int) (*WithAvailability, error)
	ListUpcoming(ctx context.Context, tenantID int, from time.Time) ([]ClassInstance, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{
		repo: repo,
	}
}

func (s *service) Create(ctx context.Context, req CreateClassRequest) (*ClassInstance, error) {
	if !req.EndsAt.After(req.StartsAt) {
		return nil, apperror.ErrInvalidInput.Withf("ends_at must be after starts_at")
	}
	if req.Capacity < 1 || req.WaitlistLimit < 0 || req.CreditCost < 0 {
		return nil, apperror.ErrInvalidInput.Withf("capacity must be at least 1 and limits non-negative")
	}
	return s.repo.Create(ctx, req)
}

func (s *service) GetWithAvailability(ctx context.Context, id int) (*WithAvailability, error) {
	c, err := s.repo.GetWithAvailability(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.ErrNotFound.Withf("class instance %d not found", id)
	}
	return c, err
}

func (s *service) ListUpcoming(ctx context.Context, tenantID int, from time.Time) ([]ClassInstance, error) {
	return s.repo.ListUpcoming(ctx, tenantID, from)
}
