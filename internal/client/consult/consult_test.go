package consult

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/curamind/curamind/internal/client/api"
	"github.com/curamind/curamind/internal/client/api/apitest"
	"github.com/curamind/curamind/internal/client/poll"
	"github.com/curamind/curamind/internal/client/session"
	"github.com/curamind/curamind/internal/contract"
)

const (
	statusRoute  = "GET /user/consultation/status/:id"
	requestRoute = "POST /user/consultation/request"
	respondRoute = "POST /otochat/respond/:id"
)

var (
	patient = contract.Principal{ID: 1, Role: contract.RolePatient, Email: "pat@example.com", DisplayName: "Pat"}
	doctor  = contract.Principal{ID: 7, Role: contract.RoleDoctor, Email: "doc@example.com", DisplayName: "Dr. Rao"}
)

func fastLoop() poll.Loop {
	return poll.Loop{Interval: 2 * time.Millisecond, Immediate: true, MaxDuration: 2 * time.Second}
}

func signIn(t *testing.T, b *apitest.Backend, p contract.Principal) (*api.Client, *session.Store) {
	t.Helper()
	c := b.Client()
	store := session.NewStore(time.Hour)
	store.Watch(c)
	if _, err := store.Login(context.Background(), c, p.Email, "pw-12345678"); err != nil {
		t.Fatalf("login %s: %v", p.Email, err)
	}
	return c, store
}

func newBackend(t *testing.T) *apitest.Backend {
	b := apitest.New(t)
	b.AddAccount(patient, "pw-12345678")
	b.AddAccount(doctor, "pw-12345678")
	return b
}

func TestRequester_MissingTriageNeverCallsBackend(t *testing.T) {
	b := newBackend(t)
	c, store := signIn(t, b, patient)
	r := NewRequester(c, store, zerolog.Nop())

	if _, err := r.Request(context.Background(), 7); !errors.Is(err, ErrMissingTriage) {
		t.Fatalf("expected ErrMissingTriage, got %v", err)
	}
	if b.Calls(requestRoute) != 0 {
		t.Error("request must not reach the backend without a triage id")
	}
}

func TestRequester_UsesCachedTriage(t *testing.T) {
	b := newBackend(t)
	c, store := signIn(t, b, patient)
	store.RememberTriage(42)
	r := NewRequester(c, store, zerolog.Nop())

	id, err := r.Request(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	cons, _ := b.Consultation(id)
	if cons.TriageID != 42 || cons.DoctorID != 7 || cons.Status != contract.StatusPending {
		t.Errorf("unexpected consultation: %+v", cons)
	}
}

func TestRequester_InFlightPerDoctor(t *testing.T) {
	b := newBackend(t)
	c, store := signIn(t, b, patient)
	store.RememberTriage(42)
	r := NewRequester(c, store, zerolog.Nop())

	release := b.Hold(requestRoute)
	done := make(chan error, 1)
	go func() {
		_, err := r.Request(context.Background(), 7)
		done <- err
	}()
	waitFor(t, func() bool { return r.InFlight(7) })

	if r.InFlight(8) {
		t.Error("only the doctor being requested is marked in flight")
	}
	if _, err := r.Request(context.Background(), 7); !errors.Is(err, ErrInFlight) {
		t.Errorf("expected ErrInFlight, got %v", err)
	}
	release()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if r.InFlight(7) {
		t.Error("marker should clear once the request resolves")
	}
}

func TestRequester_ServerErrorSurfaces(t *testing.T) {
	b := newBackend(t)
	c, store := signIn(t, b, patient)
	store.RememberTriage(42)
	b.FailNext(requestRoute, http.StatusConflict)

	_, err := NewRequester(c, store, zerolog.Nop()).Request(context.Background(), 7)
	if !api.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestWaitingRoom_StopsPollingOnSettle(t *testing.T) {
	tests := []struct {
		status contract.ConsultationStatus
		next   Next
	}{
		{contract.StatusAccepted, NextChat},
		{contract.StatusRejected, NextDoctorMatching},
		{contract.StatusCompleted, NextDashboard},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			b := newBackend(t)
			c, _ := signIn(t, b, patient)
			id := b.AddConsultation(contract.Consultation{PatientID: patient.ID, DoctorID: doctor.ID, TriageID: 42})
			b.ScriptStatus(id, contract.StatusPending, contract.StatusPending, contract.StatusPending, tt.status)

			out, err := NewWaitingRoom(c, fastLoop()).Wait(context.Background(), id)
			if err != nil {
				t.Fatal(err)
			}
			if out.Status != tt.status || out.Next != tt.next {
				t.Errorf("got %+v", out)
			}
			calls := b.Calls(statusRoute)
			if calls != 4 {
				t.Errorf("expected 4 polls, got %d", calls)
			}
			time.Sleep(20 * time.Millisecond)
			if b.Calls(statusRoute) != calls {
				t.Error("polling continued after a settled status")
			}
		})
	}
}

func TestWaitingRoom_SwallowsTransientFailures(t *testing.T) {
	b := newBackend(t)
	c, _ := signIn(t, b, patient)
	id := b.AddConsultation(contract.Consultation{PatientID: patient.ID, DoctorID: doctor.ID, TriageID: 42})
	b.FailNext(statusRoute, http.StatusBadGateway, http.StatusServiceUnavailable)
	b.ScriptStatus(id, contract.StatusAccepted)

	out, err := NewWaitingRoom(c, fastLoop()).Wait(context.Background(), id)
	if err != nil {
		t.Fatalf("transient failures must not abort the wait: %v", err)
	}
	if out.Next != NextChat {
		t.Errorf("got %+v", out)
	}
}

func TestWaitingRoom_UnauthenticatedStops(t *testing.T) {
	b := newBackend(t)
	c, store := signIn(t, b, patient)
	id := b.AddConsultation(contract.Consultation{PatientID: patient.ID, DoctorID: doctor.ID, TriageID: 42})
	b.ExpireSessions()

	_, err := NewWaitingRoom(c, fastLoop()).Wait(context.Background(), id)
	if !errors.Is(err, api.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, ok := store.Current(); ok {
		t.Error("session should be cleared")
	}
}

func TestWaitingRoom_Stalls(t *testing.T) {
	b := newBackend(t)
	c, _ := signIn(t, b, patient)
	id := b.AddConsultation(contract.Consultation{PatientID: patient.ID, DoctorID: doctor.ID, TriageID: 42})

	loop := fastLoop()
	loop.MaxDuration = 20 * time.Millisecond
	_, err := NewWaitingRoom(c, loop).Wait(context.Background(), id)
	if !errors.Is(err, poll.ErrStalled) {
		t.Fatalf("expected ErrStalled, got %v", err)
	}
}

func TestQueue_RespondLocksRowBeforeResolving(t *testing.T) {
	b := newBackend(t)
	c, _ := signIn(t, b, doctor)
	id := b.AddConsultation(contract.Consultation{PatientID: patient.ID, DoctorID: doctor.ID, TriageID: 42})
	other := b.AddConsultation(contract.Consultation{PatientID: 2, DoctorID: doctor.ID, TriageID: 43})

	q := NewQueue(c, fastLoop(), zerolog.Nop())
	if err := q.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	release := b.Hold(respondRoute)
	done := make(chan error, 1)
	go func() {
		_, err := q.Respond(context.Background(), id, contract.DecisionAccept)
		done <- err
	}()
	waitFor(t, func() bool { return q.InFlight(id) })

	if q.CanRespond(id) {
		t.Error("row must be locked while its decision is in flight")
	}
	if !q.CanRespond(other) {
		t.Error("other rows stay actionable")
	}
	if _, err := q.Respond(context.Background(), id, contract.DecisionReject); !errors.Is(err, ErrInFlight) {
		t.Errorf("expected ErrInFlight, got %v", err)
	}
	release()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	row, _ := q.Get(id)
	if row.Status != contract.StatusAccepted {
		t.Errorf("expected accepted locally, got %s", row.Status)
	}
	if b.Calls(respondRoute) != 1 {
		t.Errorf("expected exactly one decision sent, got %d", b.Calls(respondRoute))
	}
}

func TestQueue_IgnoresStalePoll(t *testing.T) {
	b := newBackend(t)
	c, _ := signIn(t, b, doctor)
	id := b.AddConsultation(contract.Consultation{PatientID: patient.ID, DoctorID: doctor.ID, TriageID: 42})

	q := NewQueue(c, fastLoop(), zerolog.Nop())
	q.Refresh(context.Background())
	if _, err := q.Respond(context.Background(), id, contract.DecisionAccept); err != nil {
		t.Fatal(err)
	}

	b.SetStatus(id, contract.StatusPending)
	if err := q.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if row, _ := q.Get(id); row.Status != contract.StatusAccepted {
		t.Errorf("stale poll regressed status to %s", row.Status)
	}

	b.SetStatus(id, contract.StatusCompleted)
	q.Refresh(context.Background())
	if row, _ := q.Get(id); row.Status != contract.StatusCompleted {
		t.Errorf("forward progress must apply, got %s", row.Status)
	}
}

func TestQueue_ConflictRefreshesRow(t *testing.T) {
	b := newBackend(t)
	c, _ := signIn(t, b, doctor)
	id := b.AddConsultation(contract.Consultation{PatientID: patient.ID, DoctorID: doctor.ID, TriageID: 42})

	q := NewQueue(c, fastLoop(), zerolog.Nop())
	q.Refresh(context.Background())
	b.SetStatus(id, contract.StatusRejected)

	_, err := q.Respond(context.Background(), id, contract.DecisionAccept)
	if !api.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if row, _ := q.Get(id); row.Status != contract.StatusRejected {
		t.Errorf("expected the winning decision to show, got %s", row.Status)
	}
}

func TestQueue_RunPollsUntilCancelled(t *testing.T) {
	b := newBackend(t)
	c, _ := signIn(t, b, doctor)
	b.AddConsultation(contract.Consultation{PatientID: patient.ID, DoctorID: doctor.ID, TriageID: 42})
	q := NewQueue(c, fastLoop(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()
	waitFor(t, func() bool { return b.Calls("GET /doctor/consultations") >= 3 })
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(q.Pending()) != 1 {
		t.Errorf("expected one pending row, got %+v", q.Rows())
	}
	calls := b.Calls("GET /doctor/consultations")
	time.Sleep(20 * time.Millisecond)
	if b.Calls("GET /doctor/consultations") != calls {
		t.Error("queue kept polling after cancel")
	}
}

func TestLoadDashboard(t *testing.T) {
	b := newBackend(t)
	c, _ := signIn(t, b, doctor)
	b.SetDoctors(contract.DoctorProfile{ID: doctor.ID, Name: "Dr. Rao", Verified: true, Available: true})
	b.AddConsultation(contract.Consultation{PatientID: patient.ID, DoctorID: doctor.ID, TriageID: 42})

	d, err := LoadDashboard(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if d.Profile.ID != doctor.ID || len(d.Consultations) != 1 {
		t.Errorf("unexpected dashboard: %+v", d)
	}
}

func TestLoadDashboard_FailsAsWhole(t *testing.T) {
	b := newBackend(t)
	c, _ := signIn(t, b, doctor)
	if _, err := LoadDashboard(context.Background(), c); api.StatusCode(err) != http.StatusNotFound {
		t.Fatalf("expected missing profile to fail the dashboard, got %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}
