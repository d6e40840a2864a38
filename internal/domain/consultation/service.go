package consultation

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/curamind/curamind/internal/contract"
	"github.com/curamind/curamind/internal/platform/apperr"
	"github.com/curamind/curamind/internal/platform/websocket"
)

type Service struct {
	consultations ConsultationRepository
	messages      MessageRepository
	events        websocket.Publisher
	logger        zerolog.Logger
}

func NewService(consultations ConsultationRepository, messages MessageRepository, logger zerolog.Logger) *Service {
	return &Service{
		consultations: consultations,
		messages:      messages,
		logger:        logger.With().Str("component", "consultation").Logger(),
	}
}

// WithEvents pushes status changes and new messages to p.
func (s *Service) WithEvents(p websocket.Publisher) *Service {
	s.events = p
	return s
}

func (s *Service) publish(ctx context.Context, ev websocket.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Int64("consultation_id", ev.ConsultationID).Msg("failed to publish event")
	}
}

// Request opens a pending consultation between the patient and a doctor,
// backed by one of the patient's completed triage sessions.
func (s *Service) Request(ctx context.Context, patientID int64, req contract.ConsultationRequest) (*Consultation, error) {
	if req.TriageID <= 0 {
		return nil, apperr.Invalid("triage_id is required")
	}
	if req.DoctorID <= 0 {
		return nil, apperr.Invalid("doctor_id is required")
	}

	t, err := s.consultations.TriageRef(ctx, req.TriageID)
	if err != nil {
		return nil, err
	}
	if t.PatientID != patientID {
		return nil, apperr.Forbidden("triage session %d belongs to another patient", req.TriageID)
	}
	if !t.Complete {
		return nil, apperr.Conflict("triage session %d is not complete", req.TriageID)
	}

	d, err := s.consultations.DoctorRef(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if !d.Verified {
		return nil, apperr.NotFound("doctor %d not found", req.DoctorID)
	}
	if !d.Available {
		return nil, apperr.Conflict("doctor %d is not available", req.DoctorID)
	}

	c := &Consultation{
		TriageID:   req.TriageID,
		PatientID:  patientID,
		DoctorID:   req.DoctorID,
		Status:     contract.StatusPending,
		TriageFlag: t.Flag,
	}
	if err := s.consultations.Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info().
		Int64("consultation_id", c.ID).
		Int64("triage_id", c.TriageID).
		Int64("doctor_id", c.DoctorID).
		Msg("consultation requested")
	return c, nil
}

// participant loads the consultation and checks that accountID takes part.
func (s *Service) participant(ctx context.Context, accountID, id int64) (*Consultation, error) {
	c, err := s.consultations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsParticipant(accountID) {
		return nil, apperr.Forbidden("not a participant of consultation %d", id)
	}
	return c, nil
}

// assigned loads the consultation and checks that doctorID is its doctor.
func (s *Service) assigned(ctx context.Context, doctorID, id int64) (*Consultation, error) {
	c, err := s.consultations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.DoctorID != doctorID {
		return nil, apperr.Forbidden("consultation %d is assigned to another doctor", id)
	}
	return c, nil
}

func (s *Service) Status(ctx context.Context, accountID, id int64) (contract.ConsultationStatus, error) {
	c, err := s.participant(ctx, accountID, id)
	if err != nil {
		return "", err
	}
	return c.Status, nil
}

func (s *Service) ListForDoctor(ctx context.Context, doctorID int64) ([]contract.Consultation, error) {
	cs, err := s.consultations.ListForDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	out := make([]contract.Consultation, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ToContract())
	}
	return out, nil
}

// Detail returns the consultation with the triage SOAP note for its doctor.
func (s *Service) Detail(ctx context.Context, doctorID, id int64) (*contract.ConsultationDetail, error) {
	c, err := s.assigned(ctx, doctorID, id)
	if err != nil {
		return nil, err
	}
	t, err := s.consultations.TriageRef(ctx, c.TriageID)
	if err != nil {
		return nil, err
	}
	return &contract.ConsultationDetail{Consultation: c.ToContract(), SOAP: t.SOAP}, nil
}

// Respond records the assigned doctor's decision on a pending consultation.
// Of two concurrent decisions exactly one wins; the other gets a conflict.
func (s *Service) Respond(ctx context.Context, doctorID, id int64, decision contract.Decision) (contract.ConsultationStatus, error) {
	if !decision.Valid() {
		return "", apperr.Invalid("action must be accepted or rejected")
	}
	c, err := s.assigned(ctx, doctorID, id)
	if err != nil {
		return "", err
	}
	to := decision.Status()
	if !c.Status.CanTransition(to) {
		return "", apperr.Conflict("consultation %d is already %s", id, c.Status)
	}
	if err := s.consultations.Transition(ctx, id, c.Status, to, nil); err != nil {
		return "", err
	}
	s.logger.Info().Int64("consultation_id", id).Str("status", string(to)).Msg("consultation decided")
	s.publish(ctx, websocket.Event{Type: websocket.EventStatus, ConsultationID: id, Status: to})
	return to, nil
}

// Send appends a message from a participant to an accepted consultation.
func (s *Service) Send(ctx context.Context, senderID, id int64, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Invalid("message content must not be empty")
	}
	c, err := s.participant(ctx, senderID, id)
	if err != nil {
		return nil, err
	}
	if c.Status != contract.StatusAccepted {
		return nil, apperr.Conflict("consultation %d is %s; messages need an accepted consultation", id, c.Status)
	}
	m := &Message{ConsultationID: id, SenderID: senderID, Content: content}
	if err := s.messages.Append(ctx, m); err != nil {
		return nil, err
	}
	msg := m.ToContract()
	s.publish(ctx, websocket.Event{Type: websocket.EventMessage, ConsultationID: id, Message: &msg})
	return m, nil
}

// Messages returns the full transcript in order together with the current
// status, so pollers learn when the channel closes.
func (s *Service) Messages(ctx context.Context, accountID, id int64) (*contract.MessagesResponse, error) {
	c, err := s.participant(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.List(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &contract.MessagesResponse{Messages: make([]contract.ChatMessage, 0, len(msgs)), Status: c.Status}
	for _, m := range msgs {
		out.Messages = append(out.Messages, m.ToContract())
	}
	return out, nil
}

// End closes an accepted consultation with the doctor's clinical summary.
func (s *Service) End(ctx context.Context, doctorID, id int64, summary string) error {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return apperr.Invalid("summary must not be empty")
	}
	c, err := s.assigned(ctx, doctorID, id)
	if err != nil {
		return err
	}
	if !c.Status.CanTransition(contract.StatusCompleted) {
		return apperr.Conflict("consultation %d is %s and cannot be ended", id, c.Status)
	}
	if err := s.consultations.Transition(ctx, id, c.Status, contract.StatusCompleted, &summary); err != nil {
		return err
	}
	s.logger.Info().Int64("consultation_id", id).Msg("consultation completed")
	s.publish(ctx, websocket.Event{Type: websocket.EventStatus, ConsultationID: id, Status: contract.StatusCompleted})
	return nil
}
