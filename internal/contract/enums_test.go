package contract

import "testing"

func TestConsultationStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to ConsultationStatus
		want     bool
	}{
		{StatusPending, StatusAccepted, true},
		{StatusPending, StatusRejected, true},
		{StatusAccepted, StatusCompleted, true},
		{StatusPending, StatusCompleted, false},
		{StatusAccepted, StatusRejected, false},
		{StatusRejected, StatusAccepted, false},
		{StatusCompleted, StatusAccepted, false},
		{StatusCompleted, StatusCompleted, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestConsultationStatus_Settled(t *testing.T) {
	if StatusPending.Settled() {
		t.Error("pending must not be settled")
	}
	for _, s := range []ConsultationStatus{StatusAccepted, StatusRejected, StatusCompleted} {
		if !s.Settled() {
			t.Errorf("%s should be settled", s)
		}
	}
	if StatusAccepted.Terminal() {
		t.Error("accepted is not terminal")
	}
}

func TestConsultationStatus_Rank(t *testing.T) {
	if StatusPending.Rank() >= StatusAccepted.Rank() {
		t.Error("pending must rank below accepted")
	}
	if StatusAccepted.Rank() != StatusRejected.Rank() {
		t.Error("accepted and rejected are alternatives of equal rank")
	}
	if StatusCompleted.Rank() <= StatusAccepted.Rank() {
		t.Error("completed must rank above accepted")
	}
	if ConsultationStatus("bogus").Rank() != -1 {
		t.Error("unknown status should rank -1")
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		err  bool
	}{
		{"Patient", RolePatient, false},
		{"user", RolePatient, false},
		{" DOCTOR ", RoleDoctor, false},
		{"admin", RoleAdmin, false},
		{"nurse", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if tt.err {
			if err == nil {
				t.Errorf("ParseRole(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseRole(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestRejectReason(t *testing.T) {
	if !ReasonBlurryUpload.Valid() {
		t.Error("expected blurry upload to be valid")
	}
	if RejectReason("because").Valid() {
		t.Error("free text must not be a valid reason")
	}
	if !ReasonOther.NeedsNote() || ReasonLicenseMismatch.NeedsNote() {
		t.Error("only Other requires a note")
	}
}

func TestFlag(t *testing.T) {
	if !FlagRed.Emergency() || FlagYellow.Emergency() || FlagGreen.Emergency() {
		t.Error("only RED is an emergency")
	}
	if Flag("ABANDONED").Valid() {
		t.Error("ABANDONED is internal, not a triage flag")
	}
}
