package admin

import (
	"time"

	"github.com/curamind/curamind/internal/contract"
)

// Applicant is a doctor registration, pending review or already verified.
type Applicant struct {
	ID             int64
	Name           string
	Email          string
	Phone          string
	LicenseNo      string
	Specialization string
	Verified       bool
	AppliedAt      time.Time
}

func (a *Applicant) ToContract() contract.PendingDoctor {
	return contract.PendingDoctor{
		ID:             a.ID,
		Name:           a.Name,
		Email:          a.Email,
		LicenseNo:      a.LicenseNo,
		Specialization: a.Specialization,
		Phone:          a.Phone,
		Verified:       a.Verified,
		AppliedAt:      a.AppliedAt,
	}
}
