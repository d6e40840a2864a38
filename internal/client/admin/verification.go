// Package admin is the client side of doctor verification.
package admin

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/curamind/curamind/internal/contract"
)

var (
	ErrReasonRequired = errors.New("admin: a rejection reason from the list is required")
	ErrNoteRequired   = errors.New("admin: a note is required when the reason is Other")
	ErrInFlight       = errors.New("admin: decision already in flight")
)

type Transport interface {
	PendingDoctors(ctx context.Context, limit, offset int) (contract.PendingDoctorPage, error)
	DecideDoctor(ctx context.Context, id int64, req contract.DecisionRequest) (contract.MessageBody, error)
	DashboardStats(ctx context.Context) (contract.DashboardStats, error)
}

type Verification struct {
	transport Transport
	logger    zerolog.Logger

	mu       sync.Mutex
	inFlight map[int64]bool
}

func NewVerification(t Transport, logger zerolog.Logger) *Verification {
	return &Verification{transport: t, logger: logger, inFlight: make(map[int64]bool)}
}

func (v *Verification) ListPending(ctx context.Context, limit, offset int) (contract.PendingDoctorPage, error) {
	page, err := v.transport.PendingDoctors(ctx, limit, offset)
	if err != nil {
		return contract.PendingDoctorPage{}, err
	}
	if page.Data == nil {
		page.Data = []contract.PendingDoctor{}
	}
	return page, nil
}

func (v *Verification) Verify(ctx context.Context, doctorID int64) (string, error) {
	return v.decide(ctx, doctorID, contract.DecisionRequest{Action: contract.ActionVerify})
}

// Reject validates the reason locally before anything is sent.
func (v *Verification) Reject(ctx context.Context, doctorID int64, reason contract.RejectReason, note string) (string, error) {
	if !reason.Valid() {
		return "", ErrReasonRequired
	}
	note = strings.TrimSpace(note)
	if reason.NeedsNote() && note == "" {
		return "", ErrNoteRequired
	}
	return v.decide(ctx, doctorID, contract.DecisionRequest{Action: contract.ActionReject, Reason: reason, Note: note})
}

func (v *Verification) InFlight(doctorID int64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inFlight[doctorID]
}

func (v *Verification) Stats(ctx context.Context) (contract.DashboardStats, error) {
	return v.transport.DashboardStats(ctx)
}

func (v *Verification) decide(ctx context.Context, doctorID int64, req contract.DecisionRequest) (string, error) {
	v.mu.Lock()
	if v.inFlight[doctorID] {
		v.mu.Unlock()
		return "", ErrInFlight
	}
	v.inFlight[doctorID] = true
	v.mu.Unlock()

	defer func() {
		v.mu.Lock()
		delete(v.inFlight, doctorID)
		v.mu.Unlock()
	}()

	body, err := v.transport.DecideDoctor(ctx, doctorID, req)
	if err != nil {
		return "", err
	}
	v.logger.Info().Int64("doctor_id", doctorID).Str("action", string(req.Action)).Msg("doctor application decided")
	return body.Message, nil
}
