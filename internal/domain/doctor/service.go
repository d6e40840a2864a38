package doctor

import (
	"context"
	"strings"

	"github.com/curamind/curamind/internal/contract"
	"github.com/curamind/curamind/internal/platform/apperr"
)

type Service struct {
	profiles ProfileRepository
}

func NewService(profiles ProfileRepository) *Service {
	return &Service{profiles: profiles}
}

// ListAvailable never returns nil; no match is an empty list.
func (s *Service) ListAvailable(ctx context.Context, specialty string) ([]contract.DoctorProfile, error) {
	profiles, err := s.profiles.ListAvailable(ctx, strings.TrimSpace(specialty))
	if err != nil {
		return nil, err
	}
	out := make([]contract.DoctorProfile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.ToContract())
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Profile, error) {
	return s.profiles.GetByID(ctx, id)
}

// Update applies the doctor's own changes. Unverified doctors cannot make
// themselves available.
func (s *Service) Update(ctx context.Context, id int64, u contract.DoctorUpdateRequest) (*Profile, error) {
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Phone != nil {
		trimmed := strings.TrimSpace(*u.Phone)
		if trimmed == "" {
			return nil, apperr.Invalid("phone must not be empty")
		}
		u.Phone = &trimmed
	}
	p.Apply(u)
	if p.Available && !p.Verified {
		return nil, apperr.Forbidden("doctor account is pending verification")
	}
	if err := s.profiles.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
