// Package directory lists the doctors a patient can request a consultation
// from.
package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/curamind/curamind/internal/client/triage"
	"github.com/curamind/curamind/internal/contract"
)

// ErrEmergency is returned when an emergency outcome is offered for matching.
var ErrEmergency = errors.New("directory: emergency outcomes are not matched to doctors")

type Lister interface {
	AvailableDoctors(ctx context.Context, specialty string) ([]contract.DoctorProfile, error)
}

type Directory struct {
	lister Lister
	logger zerolog.Logger
}

func New(l Lister, logger zerolog.Logger) *Directory {
	return &Directory{lister: l, logger: logger}
}

// ListAvailable returns verified, available doctors. An empty result is not
// an error. api.ErrUnauthenticated is passed through unchanged.
func (d *Directory) ListAvailable(ctx context.Context, specialty string) ([]contract.DoctorProfile, error) {
	docs, err := d.lister.AvailableDoctors(ctx, strings.TrimSpace(specialty))
	if err != nil {
		return nil, err
	}
	eligible := lo.Filter(docs, func(doc contract.DoctorProfile, _ int) bool {
		return doc.Verified && doc.Available
	})
	if dropped := len(docs) - len(eligible); dropped > 0 {
		d.logger.Warn().Int("dropped", dropped).Msg("directory returned ineligible doctors")
	}
	return eligible, nil
}

// Match lists doctors for a completed triage. The specialty hint is tried
// first; if nobody matches it the full list is returned.
func (d *Directory) Match(ctx context.Context, outcome triage.Complete) ([]contract.DoctorProfile, error) {
	if outcome.Route() == triage.RouteEmergency {
		return nil, ErrEmergency
	}
	if outcome.Specialty != "" {
		docs, err := d.ListAvailable(ctx, outcome.Specialty)
		if err != nil || len(docs) > 0 {
			return docs, err
		}
	}
	return d.ListAvailable(ctx, "")
}
