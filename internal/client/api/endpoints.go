package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/curamind/curamind/internal/contract"
)

func idPath(prefix string, id int64) string {
	return prefix + strconv.FormatInt(id, 10)
}

// -- identity --

func (c *Client) SignUp(ctx context.Context, req contract.SignUpRequest) (contract.MessageBody, error) {
	var out contract.MessageBody
	err := c.do(ctx, http.MethodPost, "/auth/sign_up", req, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (contract.Principal, error) {
	var out contract.Principal
	err := c.do(ctx, http.MethodPost, "/auth/login", contract.LoginRequest{Email: email, Password: password}, &out)
	return out, err
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) Me(ctx context.Context) (contract.Principal, error) {
	var out contract.Principal
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out)
	return out, err
}

func (c *Client) ChangePassword(ctx context.Context, newPassword string) error {
	return c.do(ctx, http.MethodPost, "/auth/change_password", contract.ChangePasswordRequest{NewPassword: newPassword}, nil)
}

func (c *Client) Profile(ctx context.Context) (contract.UserProfile, error) {
	var out contract.UserProfile
	err := c.do(ctx, http.MethodGet, "/user/profile", nil, &out)
	return out, err
}

// -- triage --

func (c *Client) TriageTurn(ctx context.Context, accountID int64, message string) (contract.TriageTurnResponse, error) {
	var out contract.TriageTurnResponse
	err := c.do(ctx, http.MethodPost, "/chat/message", contract.TriageTurnRequest{AccountID: accountID, Message: message}, &out)
	return out, err
}

func (c *Client) TriageHistory(ctx context.Context) ([]contract.TriageRecord, error) {
	var out []contract.TriageRecord
	err := c.do(ctx, http.MethodGet, "/user/triage_history", nil, &out)
	return out, err
}

// -- doctors --

func (c *Client) AvailableDoctors(ctx context.Context, specialty string) ([]contract.DoctorProfile, error) {
	path := "/doctor/available"
	if specialty != "" {
		path += "?" + url.Values{"specialty": {specialty}}.Encode()
	}
	var out []contract.DoctorProfile
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) DoctorProfile(ctx context.Context) (contract.DoctorProfile, error) {
	var out contract.DoctorProfile
	err := c.do(ctx, http.MethodGet, "/doctor/profile", nil, &out)
	return out, err
}

func (c *Client) UpdateDoctor(ctx context.Context, req contract.DoctorUpdateRequest) (contract.DoctorProfile, error) {
	var out contract.DoctorProfile
	err := c.do(ctx, http.MethodPut, "/doctor/update", req, &out)
	return out, err
}

// -- consultations --

func (c *Client) RequestConsultation(ctx context.Context, doctorID, triageID int64) (int64, error) {
	var out contract.ConsultationCreated
	err := c.do(ctx, http.MethodPost, "/user/consultation/request",
		contract.ConsultationRequest{DoctorID: doctorID, TriageID: triageID}, &out)
	return out.ConsultationID, err
}

func (c *Client) ConsultationStatus(ctx context.Context, id int64) (contract.ConsultationStatus, error) {
	var out contract.StatusResponse
	err := c.do(ctx, http.MethodGet, idPath("/user/consultation/status/", id), nil, &out)
	return out.Status, err
}

func (c *Client) DoctorConsultations(ctx context.Context) ([]contract.Consultation, error) {
	var out []contract.Consultation
	err := c.do(ctx, http.MethodGet, "/doctor/consultations", nil, &out)
	return out, err
}

func (c *Client) ConsultationDetail(ctx context.Context, id int64) (contract.ConsultationDetail, error) {
	var out contract.ConsultationDetail
	err := c.do(ctx, http.MethodGet, idPath("/doctor/consultations/", id), nil, &out)
	return out, err
}

func (c *Client) Respond(ctx context.Context, id int64, decision contract.Decision) (contract.ConsultationStatus, error) {
	var out contract.StatusResponse
	err := c.do(ctx, http.MethodPost, idPath("/otochat/respond/", id), contract.RespondRequest{Action: decision}, &out)
	return out.Status, err
}

func (c *Client) SendMessage(ctx context.Context, consultationID int64, content string) (contract.ChatMessage, error) {
	var out contract.ChatMessage
	err := c.do(ctx, http.MethodPost, "/otochat/send",
		contract.SendMessageRequest{ConsultationID: consultationID, Content: content}, &out)
	return out, err
}

func (c *Client) Messages(ctx context.Context, consultationID int64) (contract.MessagesResponse, error) {
	var out contract.MessagesResponse
	err := c.do(ctx, http.MethodGet, idPath("/otochat/messages/", consultationID), nil, &out)
	return out, err
}

func (c *Client) EndConsultation(ctx context.Context, consultationID int64, summary string) error {
	return c.do(ctx, http.MethodPost, "/otochat/end",
		contract.EndConsultationRequest{ConsultationID: consultationID, Summary: summary}, nil)
}

// -- admin --

func (c *Client) PendingDoctors(ctx context.Context, limit, offset int) (contract.PendingDoctorPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/admin/get_doctors/pending"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out contract.PendingDoctorPage
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) DecideDoctor(ctx context.Context, id int64, req contract.DecisionRequest) (contract.MessageBody, error) {
	var out contract.MessageBody
	err := c.do(ctx, http.MethodPost, idPath("/admin/handle_request/", id), req, &out)
	return out, err
}

func (c *Client) DashboardStats(ctx context.Context) (contract.DashboardStats, error) {
	var out contract.DashboardStats
	err := c.do(ctx, http.MethodGet, "/admin/dashboard_stats", nil, &out)
	return out, err
}
