package membership

import "context"

type Repository interface {
	GetByID(ctx context.Context, id int) (*Membership, error)
	GetForUpdate(ctx context.Context, id int) (*Membership, error)
	GetActiveForCustomer(ctx context.Context, tenantID, customerID int) (*Membership, error)
	AdjustBalance(ctx context.Context, id int, unit Unit, delta int) (int, error)
}
