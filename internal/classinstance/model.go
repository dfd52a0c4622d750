package classinstance

import "time"

type ClassInstance struct {
	ID            int        `db:"id" json:"id"`
	TenantID      int        `db:"tenant_id" json:"tenant_id"`
	Title         string     `db:"title" json:"title"`
	StartsAt      time.Time  `db:"starts_at" json:"starts_at"`
	EndsAt        time.Time  `db:"ends_at" json:"ends_at"`
	Capacity      int        `db:"capacity" json:"capacity"`
	WaitlistLimit int        `db:"waitlist_limit" json:"waitlist_limit"`
	CreditCost    int        `db:"credit_cost" json:"credit_cost"`
	IsCancelled   bool       `db:"is_cancelled" json:"is_cancelled"`
	CancelledAt   *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelReason  *string    `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

type WithAvailability struct {
	ClassInstance
	ConfirmedCount  int  `db:"confirmed_count" json:"confirmed_count"`
	WaitlistedCount int  `db:"waitlisted_count" json:"waitlisted_count"`
	FreeSeats       int  `db:"-" json:"free_seats"`
	WaitlistOpen    bool `db:"-" json:"waitlist_open"`
}

type CreateClassRequest struct {
	TenantID      int       `json:"tenant_id" binding:"required,min=1"`
	Title         string    `json:"title" binding:"required"`
	StartsAt      time.Time `json:"starts_at" binding:"required"`
	EndsAt        time.Time `json:"ends_at" binding:"required,gtfield=StartsAt"`
	Capacity      int       `json:"capacity" binding:"required,min=1"`
	WaitlistLimit int       `json:"waitlist_limit" binding:"min=0"`
	CreditCost    int       `json:"credit_cost" binding:"omitempty,min=1"`
}
