package triage

import "context"

type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id int64) (*Session, error)
	// LatestOpen returns the patient's newest open session.
	LatestOpen(ctx context.Context, patientID int64) (*Session, error)
	AbandonOpen(ctx context.Context, patientID int64) (int64, error)
	SaveProgress(ctx context.Context, s *Session) error
	// Complete moves an open session to complete. It fails with a conflict if
	// the session is no longer open.
	Complete(ctx context.Context, s *Session) error
	ListCompleted(ctx context.Context, patientID int64) ([]*Session, error)
	// PatientAge is the patient's age in whole years, DefaultAge when unknown.
	PatientAge(ctx context.Context, patientID int64) (int, error)
}
