package consult

import (
	"context"

	"github.com/curamind/curamind/internal/client/api"
	"github.com/curamind/curamind/internal/client/poll"
	"github.com/curamind/curamind/internal/contract"
)

type Next int

const (
	NextChat Next = iota
	NextDoctorMatching
	NextDashboard
)

func (n Next) String() string {
	switch n {
	case NextChat:
		return "chat"
	case NextDoctorMatching:
		return "doctor_matching"
	}
	return "dashboard"
}

type Outcome struct {
	ConsultationID int64
	Status         contract.ConsultationStatus
	Next           Next
}

func outcomeFor(id int64, s contract.ConsultationStatus) Outcome {
	o := Outcome{ConsultationID: id, Status: s, Next: NextDashboard}
	switch s {
	case contract.StatusAccepted:
		o.Next = NextChat
	case contract.StatusRejected:
		o.Next = NextDoctorMatching
	}
	return o
}

type StatusTransport interface {
	ConsultationStatus(ctx context.Context, id int64) (contract.ConsultationStatus, error)
}

// WaitingRoom is the patient side: poll until the doctor decides.
type WaitingRoom struct {
	transport StatusTransport
	loop      poll.Loop
}

// NewWaitingRoom polls with loop. A nil Fatal is replaced by api.IsFatal.
func NewWaitingRoom(t StatusTransport, loop poll.Loop) *WaitingRoom {
	if loop.Fatal == nil {
		loop.Fatal = api.IsFatal
	}
	if loop.Name == "" {
		loop.Name = "consultation_status"
	}
	return &WaitingRoom{transport: t, loop: loop}
}

// Wait returns once the consultation settles. No status call is made after
// it returns.
func (w *WaitingRoom) Wait(ctx context.Context, consultationID int64) (Outcome, error) {
	var settled contract.ConsultationStatus
	err := w.loop.Run(ctx, func(ctx context.Context) (bool, error) {
		s, err := w.transport.ConsultationStatus(ctx, consultationID)
		if err != nil {
			return false, err
		}
		if s.Settled() {
			settled = s
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return Outcome{ConsultationID: consultationID, Status: contract.StatusPending}, err
	}
	return outcomeFor(consultationID, settled), nil
}
