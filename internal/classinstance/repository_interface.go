package classinstance

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, req CreateClassRequest) (*ClassInstance, error)
	GetByID(ctx context.Context, id int) (*ClassInstance, error)
	GetForUpdate(ctx context.Context, id int) (*ClassInstance, error)
	MarkCancelled(ctx context.Context, id int, at time.Time, reason string) error
	GetWithAvailability(ctx context.Context, id int) (*WithAvailability, error)
	ListUpcoming(ctx context.Context, tenantID int, from time.Time) ([]ClassInstance, error)
}
