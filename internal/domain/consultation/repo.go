package consultation

import (
	"context"

	"github.com/curamind/curamind/internal/contract"
)

type ConsultationRepository interface {
	// Create fails with a conflict while another consultation for the same
	// triage session is pending, accepted or completed.
	Create(ctx context.Context, c *Consultation) error
	GetByID(ctx context.Context, id int64) (*Consultation, error)
	ListForDoctor(ctx context.Context, doctorID int64) ([]*Consultation, error)
	// Transition moves the consultation from one status to another only if it
	// is still in from. summary is stored when non-nil.
	Transition(ctx context.Context, id int64, from, to contract.ConsultationStatus, summary *string) error
	TriageRef(ctx context.Context, triageID int64) (*TriageRef, error)
	DoctorRef(ctx context.Context, doctorID int64) (*DoctorRef, error)
}

type MessageRepository interface {
	// Append stores the message only while the consultation is accepted.
	Append(ctx context.Context, m *Message) error
	List(ctx context.Context, consultationID int64) ([]*Message, error)
}
