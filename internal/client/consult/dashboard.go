package consult

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/curamind/curamind/internal/contract"
)

type DashboardTransport interface {
	DoctorProfile(ctx context.Context) (contract.DoctorProfile, error)
	DoctorConsultations(ctx context.Context) ([]contract.Consultation, error)
}

type Dashboard struct {
	Profile       contract.DoctorProfile
	Consultations []contract.Consultation
}

// LoadDashboard fetches the doctor's profile and queue concurrently.
func LoadDashboard(ctx context.Context, t DashboardTransport) (Dashboard, error) {
	var d Dashboard
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := t.DoctorProfile(ctx)
		d.Profile = p
		return err
	})
	g.Go(func() error {
		list, err := t.DoctorConsultations(ctx)
		d.Consultations = list
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}
