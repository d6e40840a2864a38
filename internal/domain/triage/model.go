package triage

import (
	"time"

	"github.com/curamind/curamind/internal/contract"
)

type State string

const (
	StateOpen      State = "open"
	StateComplete  State = "complete"
	StateAbandoned State = "abandoned"
)

// Session is one triage dialogue. Flag and SOAP are set exactly once, when
// the session completes.
type Session struct {
	ID          int64
	PatientID   int64
	State       State
	Step        string
	Age         int
	Answers     Answers
	Flag        contract.Flag
	SOAP        *contract.SOAPNote
	CreatedAt   time.Time
	CompletedAt *time.Time
}

func (s *Session) Terminal() bool { return s.State == StateComplete }

func (s *Session) Record() contract.TriageRecord {
	r := contract.TriageRecord{ID: s.ID, Flag: s.Flag, CreatedAt: s.CreatedAt}
	if s.SOAP != nil {
		r.SOAP = *s.SOAP
	}
	return r
}
