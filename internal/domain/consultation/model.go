package consultation

import (
	"time"

	"github.com/curamind/curamind/internal/contract"
)

type Consultation struct {
	ID              int64
	TriageID        int64
	PatientID       int64
	PatientName     string
	DoctorID        int64
	Status          contract.ConsultationStatus
	TriageFlag      contract.Flag
	ClinicalSummary *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (c *Consultation) IsParticipant(accountID int64) bool {
	return accountID == c.PatientID || accountID == c.DoctorID
}

func (c *Consultation) ToContract() contract.Consultation {
	return contract.Consultation{
		ID:              c.ID,
		TriageID:        c.TriageID,
		PatientID:       c.PatientID,
		PatientName:     c.PatientName,
		DoctorID:        c.DoctorID,
		Status:          c.Status,
		TriageFlag:      c.TriageFlag,
		ClinicalSummary: c.ClinicalSummary,
		CreatedAt:       c.CreatedAt,
	}
}

type Message struct {
	ID             int64
	ConsultationID int64
	SenderID       int64
	Content        string
	CreatedAt      time.Time
}

func (m *Message) ToContract() contract.ChatMessage {
	return contract.ChatMessage{
		ID:             m.ID,
		ConsultationID: m.ConsultationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Timestamp:      m.CreatedAt,
	}
}

// TriageRef is what a consultation needs to know about its triage session.
type TriageRef struct {
	ID        int64
	PatientID int64
	Complete  bool
	Flag      contract.Flag
	SOAP      contract.SOAPNote
}

// DoctorRef is the bookable state of a doctor.
type DoctorRef struct {
	ID        int64
	Verified  bool
	Available bool
}
