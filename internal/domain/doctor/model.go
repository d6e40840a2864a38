package doctor

import (
	"time"

	"github.com/curamind/curamind/internal/contract"
)

// Profile is a doctor account joined with its practice details.
type Profile struct {
	ID             int64
	Name           string
	Email          string
	Phone          string
	Specialization string
	LicenseNo      string
	Hospital       string
	Bio            string
	Available      bool
	Verified       bool
	VerifiedAt     *time.Time
	CreatedAt      time.Time
}

func (p *Profile) ToContract() contract.DoctorProfile {
	return contract.DoctorProfile{
		ID:             p.ID,
		Name:           p.Name,
		Specialization: p.Specialization,
		Hospital:       p.Hospital,
		Bio:            p.Bio,
		Phone:          p.Phone,
		Available:      p.Available,
		Verified:       p.Verified,
	}
}

// Apply copies the fields present in the update onto p.
func (p *Profile) Apply(u contract.DoctorUpdateRequest) {
	if u.Available != nil {
		p.Available = *u.Available
	}
	if u.Bio != nil {
		p.Bio = *u.Bio
	}
	if u.Hospital != nil {
		p.Hospital = *u.Hospital
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
}
