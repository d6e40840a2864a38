// Package consult implements the patient and doctor halves of the
// consultation handshake over polling.
package consult

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/curamind/curamind/internal/client/session"
)

var (
	ErrMissingTriage = errors.New("consult: no completed triage session to attach")
	ErrInFlight      = errors.New("consult: action already in flight")
)

type RequestTransport interface {
	RequestConsultation(ctx context.Context, doctorID, triageID int64) (int64, error)
}

// Requester sends consultation requests for the cached triage session.
type Requester struct {
	transport RequestTransport
	session   *session.Store
	logger    zerolog.Logger

	mu       sync.Mutex
	inFlight map[int64]bool
}

func NewRequester(t RequestTransport, s *session.Store, logger zerolog.Logger) *Requester {
	return &Requester{transport: t, session: s, logger: logger, inFlight: make(map[int64]bool)}
}

// Request asks doctorID to take the last completed triage. It fails before
// any network call when no triage id is cached.
func (r *Requester) Request(ctx context.Context, doctorID int64) (int64, error) {
	triageID, ok := r.session.LastTriage()
	if !ok {
		return 0, ErrMissingTriage
	}

	r.mu.Lock()
	if r.inFlight[doctorID] {
		r.mu.Unlock()
		return 0, ErrInFlight
	}
	r.inFlight[doctorID] = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.inFlight, doctorID)
		r.mu.Unlock()
	}()

	id, err := r.transport.RequestConsultation(ctx, doctorID, triageID)
	if err != nil {
		return 0, err
	}
	r.logger.Info().
		Int64("consultation_id", id).
		Int64("doctor_id", doctorID).
		Int64("triage_id", triageID).
		Msg("consultation requested")
	return id, nil
}

// InFlight reports whether a request to doctorID is outstanding.
func (r *Requester) InFlight(doctorID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight[doctorID]
}
