package contract

import "time"

// ErrorBody is the JSON body of every non-2xx response.
type ErrorBody struct {
	Message string `json:"message"`
}

// -- identity --

type SignUpRequest struct {
	Role           Role   `json:"role"`
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Address        string `json:"address,omitempty"`
	DOB            string `json:"dob"`
	Specialization string `json:"specialization,omitempty"`
	LicenseNo      string `json:"license_no,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Principal is the authenticated identity behind a session.
type Principal struct {
	ID          int64  `json:"id"`
	Role        Role   `json:"role"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Contact     string `json:"contact,omitempty"`
	FirstLogin  bool   `json:"first_login"`
}

// UserProfile is the caller's own account details.
type UserProfile struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Role     Role   `json:"role"`
}

type ChangePasswordRequest struct {
	NewPassword string `json:"new_password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// VerifyOTPRequest trades a mailed reset code for a session that must
// change its password next.
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type MessageBody struct {
	Message string `json:"message"`
}

// -- triage --

type TriageTurnRequest struct {
	AccountID int64  `json:"accountId"`
	Message   string `json:"message"`
}

type SOAPNote struct {
	Subjective string `json:"subjective"`
	Objective  string `json:"objective"`
	Assessment string `json:"assessment"`
	Plan       string `json:"plan"`
}

type EmergencyNumber struct {
	Label  string `json:"label"`
	Number string `json:"number"`
}

// Recommendation is the patient-facing advice attached to a terminal flag.
type Recommendation struct {
	Title            string            `json:"title"`
	Text             string            `json:"text"`
	EmergencyNumbers []EmergencyNumber `json:"emergency_numbers,omitempty"`
	CTALabel         string            `json:"cta_label"`
	ShowDoctors      bool              `json:"show_doctors"`
	Priority         int               `json:"priority"`
}

type TriageTurnResponse struct {
	Status    string          `json:"status"`
	Reply     string          `json:"reply,omitempty"`
	Helper    string          `json:"helper,omitempty"`
	Step      string          `json:"step,omitempty"`
	Flag      Flag            `json:"flag,omitempty"`
	TriageID  int64           `json:"triage_id,omitempty"`
	SOAP      *SOAPNote       `json:"soap,omitempty"`
	Specialty string          `json:"specialty,omitempty"`
	Content   *Recommendation `json:"content,omitempty"`
}

type TriageRecord struct {
	ID        int64     `json:"id"`
	Flag      Flag      `json:"flag"`
	SOAP      SOAPNote  `json:"soap"`
	CreatedAt time.Time `json:"created_at"`
}

// -- doctors --

type DoctorProfile struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
	Hospital       string `json:"hospital,omitempty"`
	Bio            string `json:"bio,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Available      bool   `json:"available"`
	Verified       bool   `json:"verified"`
}

type DoctorUpdateRequest struct {
	Available *bool   `json:"available,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	Hospital  *string `json:"hospital,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

// -- consultations --

type ConsultationRequest struct {
	DoctorID int64 `json:"doctor_id"`
	TriageID int64 `json:"triage_id"`
}

type ConsultationCreated struct {
	ConsultationID int64 `json:"consultation_id"`
}

type StatusResponse struct {
	Status ConsultationStatus `json:"status"`
}

type Consultation struct {
	ID              int64              `json:"id"`
	TriageID        int64              `json:"triage_id"`
	PatientID       int64              `json:"patient_id"`
	PatientName     string             `json:"patient_name,omitempty"`
	DoctorID        int64              `json:"doctor_id"`
	Status          ConsultationStatus `json:"status"`
	TriageFlag      Flag               `json:"triage_result,omitempty"`
	ClinicalSummary *string            `json:"clinical_summary,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

// ConsultationDetail is what the doctor reviews before deciding.
type ConsultationDetail struct {
	Consultation
	SOAP SOAPNote `json:"soap"`
}

type RespondRequest struct {
	Action Decision `json:"action"`
}

type SendMessageRequest struct {
	ConsultationID int64  `json:"consultationId"`
	Content        string `json:"content"`
}

type ChatMessage struct {
	ID             int64     `json:"id"`
	ConsultationID int64     `json:"consultation_id"`
	SenderID       int64     `json:"sender_id"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

type MessagesResponse struct {
	Messages []ChatMessage     `json:"messages"`
	Status   ConsultationStatus `json:"status"`
}

type EndConsultationRequest struct {
	ConsultationID int64  `json:"consultationId"`
	Summary        string `json:"summary"`
}

// -- admin --

type PendingDoctor struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	LicenseNo      string    `json:"license_no"`
	Specialization string    `json:"specialization"`
	Phone          string    `json:"phone"`
	Verified       bool      `json:"verified"`
	AppliedAt      time.Time `json:"applied_at"`
}

type PendingDoctorPage struct {
	Data    []PendingDoctor `json:"data"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
	HasMore bool            `json:"has_more"`
}

type DecisionRequest struct {
	Action VerifyAction `json:"action"`
	Reason RejectReason `json:"reason,omitempty"`
	Note   string       `json:"note,omitempty"`
}

type DashboardStats struct {
	PendingVerifications int `json:"pending_verifications"`
	TotalDoctors         int `json:"total_doctors"`
	TotalPatients        int `json:"total_patients"`
}
