package admin

import (
	"context"

	"github.com/curamind/curamind/internal/contract"
)

type VerificationRepository interface {
	// ListDoctors pages through registrations with the given verified flag,
	// oldest application first.
	ListDoctors(ctx context.Context, verified bool, limit, offset int) ([]*Applicant, int, error)
	GetPending(ctx context.Context, id int64) (*Applicant, error)
	// MarkVerified fails with a conflict if the doctor was verified meanwhile.
	MarkVerified(ctx context.Context, id int64) error
	// DeleteApplicant removes an unverified doctor account.
	DeleteApplicant(ctx context.Context, id int64) error
	Stats(ctx context.Context) (contract.DashboardStats, error)
	// WithinTx runs fn in one transaction. Repositories that read their
	// connection from ctx join it.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
