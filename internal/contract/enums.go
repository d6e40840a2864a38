// Package contract holds the wire contract shared by the CuraMind backend and
// its clients: the role, flag and status vocabularies and the JSON bodies
// exchanged on every endpoint.
package contract

import (
	"fmt"
	"strings"
)

// Role identifies the kind of principal behind a session.
type Role string

const (
	RolePatient Role = "Patient"
	RoleDoctor  Role = "Doctor"
	RoleAdmin   Role = "Admin"
)

// ParseRole accepts the canonical spelling in any case. "User" is accepted as
// a historical alias for Patient.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "patient", "user":
		return RolePatient, nil
	case "doctor":
		return RoleDoctor, nil
	case "admin":
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// Flag is the terminal severity of a triage session.
type Flag string

const (
	FlagGreen  Flag = "GREEN"
	FlagYellow Flag = "YELLOW"
	FlagRed    Flag = "RED"
)

func (f Flag) Valid() bool {
	switch f {
	case FlagGreen, FlagYellow, FlagRed:
		return true
	}
	return false
}

// Emergency reports whether the flag routes the patient to emergency numbers
// instead of doctor matching.
func (f Flag) Emergency() bool { return f == FlagRed }

// ConsultationStatus is the lifecycle state of a consultation.
type ConsultationStatus string

const (
	StatusPending   ConsultationStatus = "pending"
	StatusAccepted  ConsultationStatus = "accepted"
	StatusRejected  ConsultationStatus = "rejected"
	StatusCompleted ConsultationStatus = "completed"
)

func (s ConsultationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s ConsultationStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// Settled reports whether a waiting patient should stop polling: the doctor
// has decided, or the consultation already ended.
func (s ConsultationStatus) Settled() bool {
	return s == StatusAccepted || s.Terminal()
}

// Rank orders statuses along the only forward path. Statuses of equal rank are
// alternatives (accepted vs rejected).
func (s ConsultationStatus) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusAccepted, StatusRejected:
		return 1
	case StatusCompleted:
		return 2
	}
	return -1
}

// CanTransition lists the only legal moves:
// pending->accepted, pending->rejected, accepted->completed.
func (s ConsultationStatus) CanTransition(to ConsultationStatus) bool {
	switch s {
	case StatusPending:
		return to == StatusAccepted || to == StatusRejected
	case StatusAccepted:
		return to == StatusCompleted
	}
	return false
}

// Decision is a doctor's answer to a pending consultation.
type Decision string

const (
	DecisionAccept Decision = "accepted"
	DecisionReject Decision = "rejected"
)

func (d Decision) Valid() bool { return d == DecisionAccept || d == DecisionReject }

// Status returns the consultation status the decision moves to.
func (d Decision) Status() ConsultationStatus { return ConsultationStatus(d) }

// VerifyAction is an admin's answer to a doctor registration.
type VerifyAction string

const (
	ActionVerify VerifyAction = "verify"
	ActionReject VerifyAction = "reject"
)

func (a VerifyAction) Valid() bool { return a == ActionVerify || a == ActionReject }

// DoctorStatus selects which doctor registrations an admin lists.
type DoctorStatus string

const (
	DoctorPending  DoctorStatus = "pending"
	DoctorVerified DoctorStatus = "verified"
)

func (s DoctorStatus) Valid() bool { return s == DoctorPending || s == DoctorVerified }

// RejectReason is the enumerated cause attached to a rejected registration.
type RejectReason string

const (
	ReasonBlurryUpload       RejectReason = "Uploaded file is blurry"
	ReasonLicenseMismatch    RejectReason = "License mismatch"
	ReasonIncompleteDetails  RejectReason = "Incomplete details"
	ReasonInvalidCredentials RejectReason = "Invalid credentials"
	ReasonOther              RejectReason = "Other"
)

// RejectReasons lists every accepted reason in display order.
var RejectReasons = []RejectReason{
	ReasonBlurryUpload,
	ReasonLicenseMismatch,
	ReasonIncompleteDetails,
	ReasonInvalidCredentials,
	ReasonOther,
}

func (r RejectReason) Valid() bool {
	for _, v := range RejectReasons {
		if r == v {
			return true
		}
	}
	return false
}

// NeedsNote reports whether the reason is only meaningful with a free-text note.
func (r RejectReason) NeedsNote() bool { return r == ReasonOther }

// StartTriage is the sentinel message that opens a fresh triage dialogue. It is
// never processed as an answer.
const StartTriage = "START_TRIAGE"

// Turn statuses returned by the triage endpoint.
const (
	TurnContinue = "continue"
	TurnComplete = "complete"
)

// Canonical answers offered for every triage question.
const (
	AnswerYes = "Yes"
	AnswerNo  = "No"
)
