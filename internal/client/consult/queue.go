package consult

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/curamind/curamind/internal/client/api"
	"github.com/curamind/curamind/internal/client/poll"
	"github.com/curamind/curamind/internal/contract"
)

type QueueTransport interface {
	DoctorConsultations(ctx context.Context) ([]contract.Consultation, error)
	Respond(ctx context.Context, id int64, decision contract.Decision) (contract.ConsultationStatus, error)
}

// Queue is the doctor's view of their consultations. Polls and local
// decisions are merged so a row's status never moves backwards.
type Queue struct {
	transport QueueTransport
	loop      poll.Loop
	logger    zerolog.Logger

	mu       sync.Mutex
	rows     map[int64]contract.Consultation
	order    []int64
	inFlight map[int64]bool
}

func NewQueue(t QueueTransport, loop poll.Loop, logger zerolog.Logger) *Queue {
	if loop.Fatal == nil {
		loop.Fatal = api.IsFatal
	}
	if loop.Name == "" {
		loop.Name = "doctor_queue"
	}
	// The queue lives as long as the dashboard does.
	loop.Immediate = true
	loop.MaxDuration = 0
	return &Queue{
		transport: t,
		loop:      loop,
		logger:    logger,
		rows:      make(map[int64]contract.Consultation),
		inFlight:  make(map[int64]bool),
	}
}

// Refresh fetches the queue once and merges it.
func (q *Queue) Refresh(ctx context.Context) error {
	list, err := q.transport.DoctorConsultations(ctx)
	if err != nil {
		return err
	}
	q.merge(list)
	return nil
}

// Run re-polls until ctx is cancelled or the session expires.
func (q *Queue) Run(ctx context.Context) error {
	return q.loop.Run(ctx, func(ctx context.Context) (bool, error) {
		return false, q.Refresh(ctx)
	})
}

func (q *Queue) merge(list []contract.Consultation) {
	q.mu.Lock()
	defer q.mu.Unlock()
	order := make([]int64, 0, len(list))
	for _, c := range list {
		if prev, ok := q.rows[c.ID]; ok && prev.Status.Rank() > c.Status.Rank() {
			q.logger.Debug().
				Int64("consultation_id", c.ID).
				Str("local", string(prev.Status)).
				Str("polled", string(c.Status)).
				Msg("ignoring stale status")
			c.Status = prev.Status
		}
		q.rows[c.ID] = c
		order = append(order, c.ID)
	}
	q.order = order
}

// Rows returns the queue in server order.
func (q *Queue) Rows() []contract.Consultation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]contract.Consultation, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.rows[id])
	}
	return out
}

// Pending returns the rows still awaiting a decision.
func (q *Queue) Pending() []contract.Consultation {
	var out []contract.Consultation
	for _, c := range q.Rows() {
		if c.Status == contract.StatusPending {
			out = append(out, c)
		}
	}
	return out
}

func (q *Queue) Get(id int64) (contract.Consultation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	c, ok := q.rows[id]
	return c, ok
}

// InFlight reports whether a decision on id is outstanding.
func (q *Queue) InFlight(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight[id]
}

// CanRespond reports whether accept or reject should be offered for id.
func (q *Queue) CanRespond(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	c, ok := q.rows[id]
	return ok && c.Status == contract.StatusPending && !q.inFlight[id]
}

// Respond sends a decision. The row is locked against a second decision
// before the request goes out, and takes the server's status as soon as it
// answers. A conflict means another session decided first; the queue is
// refreshed so the row shows the winner.
func (q *Queue) Respond(ctx context.Context, id int64, decision contract.Decision) (contract.ConsultationStatus, error) {
	q.mu.Lock()
	if q.inFlight[id] {
		q.mu.Unlock()
		return "", ErrInFlight
	}
	q.inFlight[id] = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		delete(q.inFlight, id)
		q.mu.Unlock()
	}()

	status, err := q.transport.Respond(ctx, id, decision)
	if err != nil {
		if api.IsConflict(err) {
			if rerr := q.Refresh(ctx); rerr != nil {
				q.logger.Debug().Err(rerr).Msg("queue refresh after conflict failed")
			}
		}
		return "", err
	}

	q.mu.Lock()
	if c, ok := q.rows[id]; ok && status.Rank() >= c.Status.Rank() {
		c.Status = status
		q.rows[id] = c
	}
	q.mu.Unlock()

	q.logger.Info().Int64("consultation_id", id).Str("status", string(status)).Msg("consultation decided")
	return status, nil
}
