package identity

import (
	"time"

	"github.com/curamind/curamind/internal/contract"
)

const dobLayout = "2006-01-02"

type Account struct {
	ID                 int64
	Role               contract.Role
	Email              string
	PasswordHash       string
	FullName           string
	Phone              string
	Address            string
	DOB                *time.Time
	MustChangePassword bool
	CreatedAt          time.Time
}

func (a *Account) Principal() contract.Principal {
	return contract.Principal{
		ID:          a.ID,
		Role:        a.Role,
		Email:       a.Email,
		DisplayName: a.FullName,
		Contact:     a.Phone,
		FirstLogin:  a.MustChangePassword,
	}
}

func (a *Account) Profile() contract.UserProfile {
	return contract.UserProfile{
		FullName: a.FullName,
		Email:    a.Email,
		Phone:    a.Phone,
		Address:  a.Address,
		Role:     a.Role,
	}
}

// DoctorApplication is the doctor-only part of a sign-up.
type DoctorApplication struct {
	Specialization string
	LicenseNo      string
}

// OTP is a one-time password-reset code. Only its bcrypt hash is stored.
type OTP struct {
	ID        int64
	AccountID int64
	CodeHash  string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

func (o *OTP) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
