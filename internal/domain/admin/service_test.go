package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/curamind/curamind/internal/contract"
	"github.com/curamind/curamind/internal/platform/apperr"
	"github.com/curamind/curamind/internal/platform/notification"
	"github.com/curamind/curamind/pkg/pagination"
)

type txKey struct{}

func inTx(ctx context.Context) bool { return ctx.Value(txKey{}) != nil }

type mockVerificationRepo struct {
	applicants map[int64]*Applicant
	verified   map[int64]bool
	doctors    map[int64]*Applicant
	patients   int
	markErr    error
	markedInTx bool
	commits    int
}

func newMockVerificationRepo() *mockVerificationRepo {
	m := &mockVerificationRepo{
		applicants: make(map[int64]*Applicant),
		verified:   make(map[int64]bool),
		doctors:    make(map[int64]*Applicant),
		patients:   3,
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 5; i++ {
		m.applicants[i] = &Applicant{
			ID: i, Name: "Doctor " + string(rune('A'+i-1)), Email: "doc" + string(rune('0'+i)) + "@example.com",
			LicenseNo: "NMC-" + string(rune('0'+i)), Specialization: "Orthopedics",
			AppliedAt: base.Add(time.Duration(i) * time.Hour),
		}
	}
	return m
}

func (m *mockVerificationRepo) ListDoctors(_ context.Context, verified bool, limit, offset int) ([]*Applicant, int, error) {
	src := m.applicants
	if verified {
		src = m.doctors
	}
	var all []*Applicant
	for id := int64(1); id <= 5; id++ {
		if a, ok := src[id]; ok {
			all = append(all, a)
		}
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *mockVerificationRepo) GetPending(_ context.Context, id int64) (*Applicant, error) {
	a, ok := m.applicants[id]
	if !ok {
		return nil, apperr.NotFound("no pending registration for doctor")
	}
	return a, nil
}

func (m *mockVerificationRepo) MarkVerified(ctx context.Context, id int64) error {
	m.markedInTx = inTx(ctx)
	if m.markErr != nil {
		return m.markErr
	}
	a, ok := m.applicants[id]
	if !ok {
		return apperr.Conflict("doctor %d is no longer pending", id)
	}
	delete(m.applicants, id)
	a.Verified = true
	m.doctors[id] = a
	m.verified[id] = true
	return nil
}

func (m *mockVerificationRepo) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		return err
	}
	m.commits++
	return nil
}

func (m *mockVerificationRepo) DeleteApplicant(_ context.Context, id int64) error {
	if _, ok := m.applicants[id]; !ok {
		return apperr.Conflict("doctor %d is no longer pending", id)
	}
	delete(m.applicants, id)
	return nil
}

func (m *mockVerificationRepo) Stats(context.Context) (contract.DashboardStats, error) {
	return contract.DashboardStats{
		PendingVerifications: len(m.applicants),
		TotalDoctors:         len(m.verified),
		TotalPatients:        m.patients,
	}, nil
}

type mockIssuer struct {
	issued     map[int64]string
	err        error
	issuedInTx bool
}

func (m *mockIssuer) IssueTemporaryPassword(ctx context.Context, id int64) (string, error) {
	m.issuedInTx = inTx(ctx)
	if m.err != nil {
		return "", m.err
	}
	pw := "temp-password-" + string(rune('0'+id))
	m.issued[id] = pw
	return pw, nil
}

type mockMailer struct {
	sent []map[string]string
	ids  []string
}

func (m *mockMailer) Send(_ context.Context, templateID, to string, data map[string]string) (*notification.Notification, error) {
	m.ids = append(m.ids, templateID)
	m.sent = append(m.sent, data)
	return &notification.Notification{Recipient: to, TemplateID: templateID}, nil
}

func newTestService() (*Service, *mockVerificationRepo, *mockIssuer, *mockMailer) {
	repo := newMockVerificationRepo()
	issuer := &mockIssuer{issued: make(map[int64]string)}
	mailer := &mockMailer{}
	return NewService(repo, issuer, mailer, zerolog.Nop()), repo, issuer, mailer
}

func TestService_ListDoctorsPending(t *testing.T) {
	svc, _, _, _ := newTestService()
	page, err := svc.ListDoctors(context.Background(), contract.DoctorPending, pagination.Params{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 5 || len(page.Data) != 2 || !page.HasMore {
		t.Errorf("unexpected page %+v", page)
	}
	if page.Data[0].ID != 3 {
		t.Errorf("expected oldest-first ordering, got %d", page.Data[0].ID)
	}

	last, _ := svc.ListDoctors(context.Background(), contract.DoctorPending, pagination.Params{Limit: 2, Offset: 4})
	if last.HasMore || len(last.Data) != 1 {
		t.Errorf("unexpected last page %+v", last)
	}
	beyond, _ := svc.ListDoctors(context.Background(), contract.DoctorPending, pagination.Params{Limit: 2, Offset: 10})
	if beyond.Data == nil || len(beyond.Data) != 0 {
		t.Errorf("expected empty data array, got %#v", beyond.Data)
	}
}

func TestService_ListDoctorsByStatus(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	for _, id := range []int64{2, 4} {
		if _, err := svc.Decide(ctx, id, contract.DecisionRequest{Action: contract.ActionVerify}); err != nil {
			t.Fatalf("verify %d: %v", id, err)
		}
	}
	p := pagination.Params{Limit: 10}

	verified, err := svc.ListDoctors(ctx, contract.DoctorVerified, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verified.Total != 2 || verified.Data[0].ID != 2 || verified.Data[1].ID != 4 {
		t.Errorf("unexpected verified page %+v", verified)
	}
	for _, d := range verified.Data {
		if !d.Verified {
			t.Errorf("doctor %d listed as verified without the flag", d.ID)
		}
	}

	pending, _ := svc.ListDoctors(ctx, contract.DoctorPending, p)
	if pending.Total != 3 {
		t.Errorf("expected 3 pending, got %d", pending.Total)
	}

	for _, status := range []contract.DoctorStatus{"", "rejected", "Pending"} {
		if _, err := svc.ListDoctors(ctx, status, p); !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("status %q: expected invalid, got %v", status, err)
		}
	}
}

func TestService_Verify(t *testing.T) {
	svc, repo, issuer, mailer := newTestService()
	msg, err := svc.Decide(context.Background(), 2, contract.DecisionRequest{Action: contract.ActionVerify})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg == "" {
		t.Error("expected a message")
	}
	if !repo.verified[2] {
		t.Error("expected doctor verified")
	}
	if len(mailer.ids) != 1 || mailer.ids[0] != notification.TemplateDoctorVerified {
		t.Fatalf("expected verified mail, got %v", mailer.ids)
	}
	if mailer.sent[0]["password"] != issuer.issued[2] {
		t.Error("mailed password must be the issued one")
	}

	_, err = svc.Decide(context.Background(), 2, contract.DecisionRequest{Action: contract.ActionVerify})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for an already verified doctor, got %v", err)
	}
}

func TestService_VerifyPasswordFailure(t *testing.T) {
	svc, repo, issuer, mailer := newTestService()
	issuer.err = errors.New("db down")
	if _, err := svc.Decide(context.Background(), 1, contract.DecisionRequest{Action: contract.ActionVerify}); err == nil {
		t.Fatal("expected error")
	}
	if repo.verified[1] || len(mailer.ids) != 0 {
		t.Error("doctor must stay pending without a password")
	}
}

func TestService_VerifyWritesShareTransaction(t *testing.T) {
	svc, repo, issuer, _ := newTestService()
	if _, err := svc.Decide(context.Background(), 3, contract.DecisionRequest{Action: contract.ActionVerify}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !issuer.issuedInTx || !repo.markedInTx {
		t.Errorf("password issued in tx = %v, verified flag in tx = %v", issuer.issuedInTx, repo.markedInTx)
	}
	if repo.commits != 1 {
		t.Errorf("expected one commit, got %d", repo.commits)
	}
}

func TestService_VerifyMarkFailureSendsNoMail(t *testing.T) {
	svc, repo, _, mailer := newTestService()
	repo.markErr = errors.New("connection reset")
	if _, err := svc.Decide(context.Background(), 3, contract.DecisionRequest{Action: contract.ActionVerify}); err == nil {
		t.Fatal("expected error")
	}
	if repo.commits != 0 {
		t.Error("failed verification must not commit")
	}
	if len(mailer.ids) != 0 {
		t.Errorf("no credentials may be mailed for a rolled back verification, got %v", mailer.ids)
	}
}

func TestService_Reject(t *testing.T) {
	svc, repo, _, mailer := newTestService()
	req := contract.DecisionRequest{Action: contract.ActionReject, Reason: contract.ReasonBlurryUpload}
	if _, err := svc.Decide(context.Background(), 1, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := repo.applicants[1]; ok {
		t.Error("expected applicant removed")
	}
	if mailer.ids[0] != notification.TemplateDoctorRejected || mailer.sent[0]["reason"] != string(contract.ReasonBlurryUpload) {
		t.Errorf("unexpected rejection mail %v %v", mailer.ids, mailer.sent)
	}
}

func TestService_RejectValidation(t *testing.T) {
	svc, repo, _, _ := newTestService()
	tests := []struct {
		name string
		req  contract.DecisionRequest
	}{
		{"no reason", contract.DecisionRequest{Action: contract.ActionReject}},
		{"free text reason", contract.DecisionRequest{Action: contract.ActionReject, Reason: "I don't like it"}},
		{"other without note", contract.DecisionRequest{Action: contract.ActionReject, Reason: contract.ReasonOther, Note: "  "}},
		{"unknown action", contract.DecisionRequest{Action: "approve"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Decide(context.Background(), 1, tt.req); !errors.Is(err, apperr.ErrInvalid) {
				t.Errorf("expected invalid, got %v", err)
			}
		})
	}
	if _, ok := repo.applicants[1]; !ok {
		t.Error("applicant must not be removed by an invalid decision")
	}
}

func TestService_RejectOtherWithNote(t *testing.T) {
	svc, _, _, mailer := newTestService()
	req := contract.DecisionRequest{Action: contract.ActionReject, Reason: contract.ReasonOther, Note: "License expired in 2024"}
	if _, err := svc.Decide(context.Background(), 3, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mailer.sent[0]["note"] != "License expired in 2024" {
		t.Errorf("expected note in mail, got %v", mailer.sent[0])
	}
}

func TestService_Stats(t *testing.T) {
	svc, _, _, _ := newTestService()
	svc.Decide(context.Background(), 1, contract.DecisionRequest{Action: contract.ActionVerify})
	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.PendingVerifications != 4 || stats.TotalDoctors != 1 || stats.TotalPatients != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}
}
