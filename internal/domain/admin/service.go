package admin

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/curamind/curamind/internal/contract"
	"github.com/curamind/curamind/internal/platform/apperr"
	"github.com/curamind/curamind/internal/platform/notification"
	"github.com/curamind/curamind/pkg/pagination"
)

// PasswordIssuer is satisfied by *identity.Service.
type PasswordIssuer interface {
	IssueTemporaryPassword(ctx context.Context, accountID int64) (string, error)
}

// Mailer is satisfied by *notification.Manager.
type Mailer interface {
	Send(ctx context.Context, templateID, recipient string, data map[string]string) (*notification.Notification, error)
}

type Service struct {
	repo      VerificationRepository
	passwords PasswordIssuer
	mailer    Mailer
	logger    zerolog.Logger
}

func NewService(repo VerificationRepository, passwords PasswordIssuer, mailer Mailer, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		passwords: passwords,
		mailer:    mailer,
		logger:    logger.With().Str("component", "admin").Logger(),
	}
}

// ListDoctors pages through doctor registrations in the given status.
func (s *Service) ListDoctors(ctx context.Context, status contract.DoctorStatus, p pagination.Params) (pagination.Page[contract.PendingDoctor], error) {
	if !status.Valid() {
		return pagination.Page[contract.PendingDoctor]{}, apperr.Invalid("status must be pending or verified")
	}
	applicants, total, err := s.repo.ListDoctors(ctx, status == contract.DoctorVerified, p.Limit, p.Offset)
	if err != nil {
		return pagination.Page[contract.PendingDoctor]{}, err
	}
	data := make([]contract.PendingDoctor, 0, len(applicants))
	for _, a := range applicants {
		data = append(data, a.ToContract())
	}
	return pagination.NewPage(data, total, p), nil
}

// Decide applies an admin decision to a pending doctor registration and
// returns a message for the admin.
func (s *Service) Decide(ctx context.Context, doctorID int64, req contract.DecisionRequest) (string, error) {
	switch req.Action {
	case contract.ActionVerify:
		return s.verify(ctx, doctorID)
	case contract.ActionReject:
		return s.reject(ctx, doctorID, req.Reason, req.Note)
	}
	return "", apperr.Invalid("action must be verify or reject")
}

// verify issues the password and flips the verified flag in one transaction,
// then mails the credentials once both are committed.
func (s *Service) verify(ctx context.Context, doctorID int64) (string, error) {
	var (
		a  *Applicant
		pw string
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if a, err = s.repo.GetPending(ctx, doctorID); err != nil {
			return err
		}
		if pw, err = s.passwords.IssueTemporaryPassword(ctx, a.ID); err != nil {
			return err
		}
		return s.repo.MarkVerified(ctx, a.ID)
	})
	if err != nil {
		return "", err
	}
	s.logger.Info().Int64("doctor_id", a.ID).Msg("doctor verified")
	s.mail(ctx, notification.TemplateDoctorVerified, a.Email, map[string]string{
		"name":     a.Name,
		"email":    a.Email,
		"password": pw,
	})
	return "Doctor " + a.Name + " verified. Login details were emailed.", nil
}

func (s *Service) reject(ctx context.Context, doctorID int64, reason contract.RejectReason, note string) (string, error) {
	if !reason.Valid() {
		return "", apperr.Invalid("reason must be one of the listed rejection reasons")
	}
	note = strings.TrimSpace(note)
	if reason.NeedsNote() && note == "" {
		return "", apperr.Invalid("a note is required when the reason is %q", reason)
	}
	a, err := s.repo.GetPending(ctx, doctorID)
	if err != nil {
		return "", err
	}
	if err := s.repo.DeleteApplicant(ctx, a.ID); err != nil {
		return "", err
	}
	s.logger.Info().Int64("doctor_id", a.ID).Str("reason", string(reason)).Msg("doctor registration rejected")
	s.mail(ctx, notification.TemplateDoctorRejected, a.Email, map[string]string{
		"name":   a.Name,
		"reason": string(reason),
		"note":   note,
	})
	return "Registration for " + a.Name + " rejected.", nil
}

func (s *Service) mail(ctx context.Context, templateID, to string, data map[string]string) {
	if _, err := s.mailer.Send(ctx, templateID, to, data); err != nil {
		s.logger.Warn().Err(err).Str("template", templateID).Str("to", to).Msg("admin decision mail not delivered")
	}
}

func (s *Service) Stats(ctx context.Context) (contract.DashboardStats, error) {
	return s.repo.Stats(ctx)
}
