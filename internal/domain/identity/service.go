package identity

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/curamind/curamind/internal/contract"
	"github.com/curamind/curamind/internal/platform/apperr"
	"github.com/curamind/curamind/internal/platform/notification"
)

// Mailer is satisfied by *notification.Manager.
type Mailer interface {
	Send(ctx context.Context, templateID, recipient string, data map[string]string) (*notification.Notification, error)
}

// OTPTTL is how long a mailed reset code stays valid.
const OTPTTL = 2 * time.Minute

type Service struct {
	accounts AccountRepository
	otps     OTPRepository
	mailer   Mailer
	logger   zerolog.Logger
	cost     int
	now      func() time.Time
}

func NewService(accounts AccountRepository, mailer Mailer, logger zerolog.Logger) *Service {
	return &Service{
		accounts: accounts,
		mailer:   mailer,
		logger:   logger.With().Str("component", "identity").Logger(),
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// WithHashCost lowers the bcrypt cost; tests use bcrypt.MinCost.
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

// WithOTPs enables the forgot-password flow.
func (s *Service) WithOTPs(otps OTPRepository) *Service {
	s.otps = otps
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) validateSignUp(req *contract.SignUpRequest) (*time.Time, error) {
	if req.Role != contract.RolePatient && req.Role != contract.RoleDoctor {
		return nil, apperr.Invalid("role must be Patient or Doctor")
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = normalizeEmail(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.FullName == "" {
		return nil, apperr.Invalid("full_name is required")
	}
	if !strings.Contains(req.Email, "@") {
		return nil, apperr.Invalid("a valid email is required")
	}
	if req.Phone == "" {
		return nil, apperr.Invalid("phone is required")
	}
	dob, err := time.Parse(dobLayout, strings.TrimSpace(req.DOB))
	if err != nil {
		return nil, apperr.Invalid("dob must be YYYY-MM-DD")
	}
	if dob.After(s.now()) {
		return nil, apperr.Invalid("dob must not be in the future")
	}
	if req.Role == contract.RoleDoctor {
		req.LicenseNo = strings.TrimSpace(req.LicenseNo)
		req.Specialization = strings.TrimSpace(req.Specialization)
		if req.LicenseNo == "" {
			return nil, apperr.Invalid("license_no is required")
		}
		if req.Specialization == "" {
			return nil, apperr.Invalid("specialization is required")
		}
	}
	return &dob, nil
}

// SignUp registers a patient or doctor. Patients get a mailed temporary
// password at once; doctors only after an admin verifies them.
func (s *Service) SignUp(ctx context.Context, req contract.SignUpRequest) (*Account, error) {
	dob, err := s.validateSignUp(&req)
	if err != nil {
		return nil, err
	}
	a := &Account{
		Role:               req.Role,
		Email:              req.Email,
		FullName:           req.FullName,
		Phone:              req.Phone,
		Address:            strings.TrimSpace(req.Address),
		DOB:                dob,
		MustChangePassword: true,
	}

	if req.Role == contract.RoleDoctor {
		app := DoctorApplication{Specialization: req.Specialization, LicenseNo: req.LicenseNo}
		if err := s.accounts.CreateDoctor(ctx, a, app); err != nil {
			return nil, err
		}
		s.mail(ctx, notification.TemplateDoctorRegistered, a.Email, map[string]string{
			"name":       a.FullName,
			"license_no": app.LicenseNo,
		})
		return a, nil
	}

	pw, err := GenerateTempPassword()
	if err != nil {
		return nil, err
	}
	if a.PasswordHash, err = hashPassword(pw, s.cost); err != nil {
		return nil, err
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, err
	}
	s.mail(ctx, notification.TemplateWelcomePatient, a.Email, map[string]string{
		"name":     a.FullName,
		"email":    a.Email,
		"password": pw,
	})
	return a, nil
}

// mail failures are kept in the notification outbox for retry; the account
// itself is already committed.
func (s *Service) mail(ctx context.Context, templateID, to string, data map[string]string) {
	if _, err := s.mailer.Send(ctx, templateID, to, data); err != nil {
		s.logger.Warn().Err(err).Str("template", templateID).Str("to", to).Msg("account mail not delivered")
	}
}

var errBadCredentials = apperr.Unauthorized("invalid email or password")

func (s *Service) Login(ctx context.Context, email, password string) (*Account, error) {
	a, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if isNotFound(err) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	if !checkPassword(a.PasswordHash, password) {
		return nil, errBadCredentials
	}
	if a.Role == contract.RoleDoctor {
		ok, err := s.accounts.DoctorVerified(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Forbidden("doctor account is pending verification")
		}
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Account, error) {
	return s.accounts.GetByID(ctx, id)
}

func (s *Service) ChangePassword(ctx context.Context, id int64, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return apperr.Invalid("new_password must be at least %d characters", minPasswordLen)
	}
	hash, err := hashPassword(newPassword, s.cost)
	if err != nil {
		return err
	}
	return s.accounts.SetPassword(ctx, id, hash, false)
}

// IssueTemporaryPassword replaces the account's password with a fresh one the
// holder must change on next login, and returns it for mailing.
func (s *Service) IssueTemporaryPassword(ctx context.Context, id int64) (string, error) {
	pw, err := GenerateTempPassword()
	if err != nil {
		return "", err
	}
	hash, err := hashPassword(pw, s.cost)
	if err != nil {
		return "", err
	}
	if err := s.accounts.SetPassword(ctx, id, hash, true); err != nil {
		return "", err
	}
	return pw, nil
}

// CreateAdmin provisions an administrator. There is no HTTP route for it.
func (s *Service) CreateAdmin(ctx context.Context, fullName, email, password string) (*Account, error) {
	email = normalizeEmail(email)
	if strings.TrimSpace(fullName) == "" {
		return nil, apperr.Invalid("full name is required")
	}
	if !strings.Contains(email, "@") {
		return nil, apperr.Invalid("a valid email is required")
	}
	if len(password) < minPasswordLen {
		return nil, apperr.Invalid("password must be at least %d characters", minPasswordLen)
	}
	hash, err := hashPassword(password, s.cost)
	if err != nil {
		return nil, err
	}
	a := &Account{
		Role:         contract.RoleAdmin,
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: hash,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ForgotPassword mails a fresh reset code to the account and retires any
// earlier one. Unknown emails succeed silently so the route does not reveal
// which addresses are registered.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperr.Invalid("email is required")
	}
	if s.otps == nil {
		return apperr.NotFound("password reset is not enabled")
	}
	a, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			s.logger.Info().Msg("password reset requested for unknown email")
			return nil
		}
		return err
	}

	code, err := GenerateOTP()
	if err != nil {
		return err
	}
	hash, err := hashPassword(code, s.cost)
	if err != nil {
		return err
	}
	o := &OTP{AccountID: a.ID, CodeHash: hash, ExpiresAt: s.now().Add(OTPTTL)}
	if err := s.otps.Issue(ctx, o); err != nil {
		return err
	}
	s.mail(ctx, notification.TemplatePasswordReset, a.Email, map[string]string{
		"name":    a.FullName,
		"code":    code,
		"minutes": strconv.Itoa(int(OTPTTL / time.Minute)),
	})
	s.logger.Info().Int64("account_id", a.ID).Msg("password reset code issued")
	return nil
}

var errBadOTP = apperr.Invalid("invalid or expired code")

// VerifyOTP consumes the account's active reset code. On success the account
// must change its password before doing anything else. A wrong guess does not
// burn the code; an expired one is retired.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (*Account, error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, apperr.Invalid("email and otp are required")
	}
	if s.otps == nil {
		return nil, apperr.NotFound("password reset is not enabled")
	}
	a, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, errBadOTP
		}
		return nil, err
	}
	o, err := s.otps.Active(ctx, a.ID)
	if err != nil {
		if isNotFound(err) {
			return nil, errBadOTP
		}
		return nil, err
	}
	if o.Expired(s.now()) {
		if _, err := s.otps.MarkUsed(ctx, o.ID); err != nil {
			return nil, err
		}
		return nil, errBadOTP
	}
	if !checkPassword(o.CodeHash, code) {
		return nil, errBadOTP
	}
	ok, err := s.otps.MarkUsed(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errBadOTP
	}

	if a.Role == contract.RoleDoctor {
		verified, err := s.accounts.DoctorVerified(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		if !verified {
			return nil, apperr.Forbidden("doctor account is pending verification")
		}
	}
	if err := s.accounts.SetPassword(ctx, a.ID, a.PasswordHash, true); err != nil {
		return nil, err
	}
	a.MustChangePassword = true
	return a, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
