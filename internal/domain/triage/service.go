package triage

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/curamind/curamind/internal/contract"
	"github.com/curamind/curamind/internal/platform/apperr"
)

const completeReply = "Assessment complete. Analyzing results..."

type Service struct {
	sessions SessionRepository
	logger   zerolog.Logger
}

func NewService(sessions SessionRepository, logger zerolog.Logger) *Service {
	return &Service{sessions: sessions, logger: logger.With().Str("component", "triage").Logger()}
}

// Turn advances the patient's triage dialogue by one message.
//
// START_TRIAGE abandons any open session and opens a fresh one; it is never
// taken as an answer. Any other message answers the pending question of the
// newest open session. With no open session, one is created and its first
// question returned without reading the message as an answer. Patients under 18
// are finalized at once without questions, and a high-impact accident ends
// the dialogue as RED.
func (s *Service) Turn(ctx context.Context, patientID int64, message string) (contract.TriageTurnResponse, error) {
	msg := strings.TrimSpace(message)
	start := strings.EqualFold(msg, contract.StartTriage)

	var sess *Session
	if start {
		n, err := s.sessions.AbandonOpen(ctx, patientID)
		if err != nil {
			return contract.TriageTurnResponse{}, err
		}
		if n > 0 {
			s.logger.Debug().Int64("patient_id", patientID).Int64("abandoned", n).Msg("triage restarted")
		}
	} else {
		open, err := s.sessions.LatestOpen(ctx, patientID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return contract.TriageTurnResponse{}, err
		}
		sess = open
	}

	created := sess == nil
	if created {
		age, err := s.sessions.PatientAge(ctx, patientID)
		if err != nil {
			return contract.TriageTurnResponse{}, err
		}
		sess = &Session{PatientID: patientID, State: StateOpen, Age: age, Answers: Answers{}}
		if first, ok := NextQuestion(sess.Answers); ok {
			sess.Step = first.Step
		}
		if err := s.sessions.Create(ctx, sess); err != nil {
			return contract.TriageTurnResponse{}, err
		}
	}

	if sess.Age < pediatricAge {
		return s.finalize(ctx, sess, Answers{})
	}

	// A fresh session has not shown its first question yet.
	answered := !created && msg != ""
	q, pending := NextQuestion(sess.Answers)
	if pending && answered {
		v := 0
		if IsYes(msg) {
			v = 1
		}
		sess.Answers[q.Step] = v
		if q.Step == StepAccident && v == 1 {
			return s.finalize(ctx, sess, Answers{StepAccident: 1})
		}
		q, pending = NextQuestion(sess.Answers)
	}

	if !pending {
		return s.finalize(ctx, sess, sess.Answers)
	}

	sess.Step = q.Step
	if err := s.sessions.SaveProgress(ctx, sess); err != nil {
		return contract.TriageTurnResponse{}, err
	}
	return contract.TriageTurnResponse{
		Status:   contract.TurnContinue,
		Reply:    q.Text,
		Helper:   q.Helper,
		Step:     q.Step,
		TriageID: sess.ID,
	}, nil
}

// finalize classifies the given answers, with every unanswered question read
// as no, and closes the session.
func (s *Service) finalize(ctx context.Context, sess *Session, answers Answers) (contract.TriageTurnResponse, error) {
	sess.Answers = fillUnanswered(answers)
	sess.Flag = Classify(sess.Age, sess.Answers)
	soap := BuildSOAP(sess.Age, sess.Answers, sess.Flag)
	sess.SOAP = &soap

	if err := s.sessions.Complete(ctx, sess); err != nil {
		return contract.TriageTurnResponse{}, err
	}
	s.logger.Info().
		Int64("triage_id", sess.ID).
		Int64("patient_id", sess.PatientID).
		Str("flag", string(sess.Flag)).
		Msg("triage completed")

	rec := Recommend(sess.Flag)
	return contract.TriageTurnResponse{
		Status:    contract.TurnComplete,
		Reply:     completeReply,
		Flag:      sess.Flag,
		TriageID:  sess.ID,
		SOAP:      &soap,
		Specialty: SpecialtyFor(sess.Flag),
		Content:   &rec,
	}, nil
}

// History lists the patient's completed triage sessions, newest first.
func (s *Service) History(ctx context.Context, patientID int64) ([]contract.TriageRecord, error) {
	sessions, err := s.sessions.ListCompleted(ctx, patientID)
	if err != nil {
		return nil, err
	}
	out := make([]contract.TriageRecord, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Record())
	}
	return out, nil
}
