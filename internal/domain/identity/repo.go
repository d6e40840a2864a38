package identity

import "context"

type AccountRepository interface {
	Create(ctx context.Context, a *Account) error
	// CreateDoctor stores the account and an unverified doctor profile together.
	CreateDoctor(ctx context.Context, a *Account, app DoctorApplication) error
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	SetPassword(ctx context.Context, id int64, hash string, mustChange bool) error
	DoctorVerified(ctx context.Context, id int64) (bool, error)
}

type OTPRepository interface {
	// Issue stores o and retires every earlier unused code of the account.
	Issue(ctx context.Context, o *OTP) error
	// Active returns the account's newest unused code.
	Active(ctx context.Context, accountID int64) (*OTP, error)
	// MarkUsed retires the code; false means it was already used.
	MarkUsed(ctx context.Context, id int64) (bool, error)
}
