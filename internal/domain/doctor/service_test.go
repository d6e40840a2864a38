package doctor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/curamind/curamind/internal/contract"
	"github.com/curamind/curamind/internal/platform/apperr"
)

type mockProfileRepo struct {
	profiles map[int64]*Profile
	updates  int
}

func newMockProfileRepo(ps ...*Profile) *mockProfileRepo {
	m := &mockProfileRepo{profiles: make(map[int64]*Profile)}
	for _, p := range ps {
		m.profiles[p.ID] = p
	}
	return m
}

func (m *mockProfileRepo) ListAvailable(_ context.Context, specialty string) ([]*Profile, error) {
	var out []*Profile
	for id := int64(1); id <= int64(len(m.profiles)); id++ {
		p, ok := m.profiles[id]
		if !ok || !p.Verified || !p.Available {
			continue
		}
		if specialty != "" && !strings.Contains(strings.ToLower(p.Specialization), strings.ToLower(specialty)) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *mockProfileRepo) GetByID(_ context.Context, id int64) (*Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, apperr.NotFound("doctor not found")
	}
	cp := *p
	return &cp, nil
}

func (m *mockProfileRepo) Update(_ context.Context, p *Profile) error {
	m.updates++
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func testDoctors() []*Profile {
	return []*Profile{
		{ID: 1, Name: "Dr. Karki", Specialization: "Orthopedics", Verified: true, Available: true},
		{ID: 2, Name: "Dr. Thapa", Specialization: "General Medicine", Verified: true, Available: true},
		{ID: 3, Name: "Dr. Rai", Specialization: "Orthopedic Surgery", Verified: true, Available: false},
		{ID: 4, Name: "Dr. Gurung", Specialization: "Orthopedics", Verified: false, Available: false},
	}
}

func TestService_ListAvailable(t *testing.T) {
	svc := NewService(newMockProfileRepo(testDoctors()...))
	got, err := svc.ListAvailable(context.Background(), " ortho ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("expected only Dr. Karki, got %+v", got)
	}

	all, _ := svc.ListAvailable(context.Background(), "")
	if len(all) != 2 {
		t.Errorf("expected 2 available doctors, got %d", len(all))
	}
}

func TestService_ListAvailable_EmptyIsNotNil(t *testing.T) {
	svc := NewService(newMockProfileRepo())
	got, err := svc.ListAvailable(context.Background(), "Cardiology")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", got)
	}
}

func TestService_Update(t *testing.T) {
	repo := newMockProfileRepo(testDoctors()...)
	svc := NewService(repo)
	off := false
	hospital := "Bir Hospital"
	p, err := svc.Update(context.Background(), 1, contract.DoctorUpdateRequest{Available: &off, Hospital: &hospital})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Available || p.Hospital != "Bir Hospital" {
		t.Errorf("update not applied: %+v", p)
	}
	if repo.profiles[1].Specialization != "Orthopedics" {
		t.Error("fields absent from the update must be kept")
	}
}

func TestService_UpdateUnverifiedCannotGoAvailable(t *testing.T) {
	repo := newMockProfileRepo(testDoctors()...)
	svc := NewService(repo)
	on := true
	_, err := svc.Update(context.Background(), 4, contract.DoctorUpdateRequest{Available: &on})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	if repo.updates != 0 {
		t.Error("nothing should be written")
	}
}

func TestService_UpdateRejectsBlankPhone(t *testing.T) {
	svc := NewService(newMockProfileRepo(testDoctors()...))
	blank := "  "
	if _, err := svc.Update(context.Background(), 1, contract.DoctorUpdateRequest{Phone: &blank}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected invalid, got %v", err)
	}
}

func TestService_UpdateUnknownDoctor(t *testing.T) {
	svc := NewService(newMockProfileRepo())
	if _, err := svc.Update(context.Background(), 9, contract.DoctorUpdateRequest{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
