// Package apitest runs an in-memory CuraMind backend over httptest for
// client tests. Behaviour is scripted per test and every route counts its
// calls.
package apitest

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/curamind/curamind/internal/client/api"
	"github.com/curamind/curamind/internal/contract"
)

const cookieName = "curamind_session"

type Backend struct {
	t      testing.TB
	server *httptest.Server

	mu       sync.Mutex
	calls    map[string]int
	failures map[string][]int
	gates    map[string]chan struct{}
	expired  bool
	sessions map[string]contract.Principal
	nextTok  int

	accounts map[string]account

	TriageScript []contract.TriageTurnResponse
	triageAt     int
	triageSent   []contract.TriageTurnRequest

	doctors []contract.DoctorProfile

	consultations map[int64]*contract.Consultation
	order         []int64
	soap          map[int64]contract.SOAPNote
	statusScript  map[int64][]contract.ConsultationStatus
	nextConsult   int64
	messages      map[int64][]contract.ChatMessage
	nextMessage   int64
	summaries     map[int64]string

	pending   []contract.PendingDoctor
	decisions map[int64]contract.DecisionRequest
	stats     contract.DashboardStats
}

type account struct {
	principal contract.Principal
	password  string
}

// New starts a backend that is closed when the test ends.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		t:             t,
		calls:         make(map[string]int),
		failures:      make(map[string][]int),
		gates:         make(map[string]chan struct{}),
		sessions:      make(map[string]contract.Principal),
		accounts:      make(map[string]account),
		consultations: make(map[int64]*contract.Consultation),
		soap:          make(map[int64]contract.SOAPNote),
		statusScript:  make(map[int64][]contract.ConsultationStatus),
		messages:      make(map[int64][]contract.ChatMessage),
		summaries:     make(map[int64]string),
		decisions:     make(map[int64]contract.DecisionRequest),
		nextConsult:   100,
		nextMessage:   1000,
	}
	b.server = httptest.NewServer(b.router())
	t.Cleanup(b.server.Close)
	return b
}

func (b *Backend) URL() string { return b.server.URL }

// Client returns a fresh client with its own cookie jar.
func (b *Backend) Client() *api.Client {
	b.t.Helper()
	c, err := api.New(b.server.URL, api.Options{Timeout: 5 * time.Second})
	if err != nil {
		b.t.Fatalf("api client: %v", err)
	}
	return c
}

// -- scripting --

// AddAccount registers credentials that /auth/login accepts.
func (b *Backend) AddAccount(p contract.Principal, password string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[strings.ToLower(p.Email)] = account{principal: p, password: password}
}

// ExpireSessions makes every authenticated route answer 401.
func (b *Backend) ExpireSessions() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expired = true
}

// FailNext queues status codes that the route answers before behaving
// normally again. Routes are named "METHOD /path/:param" as registered.
func (b *Backend) FailNext(route string, codes ...int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = append(b.failures[route], codes...)
}

// Hold blocks requests to route until the returned release is called.
func (b *Backend) Hold(route string) (release func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan struct{})
	b.gates[route] = ch
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.gates, route)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// TriageRequests returns the turn requests received so far.
func (b *Backend) TriageRequests() []contract.TriageTurnRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]contract.TriageTurnRequest(nil), b.triageSent...)
}

func (b *Backend) SetDoctors(docs ...contract.DoctorProfile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.doctors = docs
}

// AddConsultation seeds a consultation and returns its id.
func (b *Backend) AddConsultation(c contract.Consultation) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.ID == 0 {
		b.nextConsult++
		c.ID = b.nextConsult
	}
	if c.Status == "" {
		c.Status = contract.StatusPending
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	b.consultations[c.ID] = &c
	b.order = append([]int64{c.ID}, b.order...)
	return c.ID
}

func (b *Backend) SetStatus(id int64, status contract.ConsultationStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.consultations[id]; ok {
		c.Status = status
	}
}

// ScriptStatus makes successive status polls for id observe the given
// statuses in order. The consultation keeps the last one.
func (b *Backend) ScriptStatus(id int64, statuses ...contract.ConsultationStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusScript[id] = append(b.statusScript[id], statuses...)
}

func (b *Backend) SetSOAP(id int64, note contract.SOAPNote) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.soap[id] = note
}

func (b *Backend) Consultation(id int64) (contract.Consultation, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.consultations[id]
	if !ok {
		return contract.Consultation{}, false
	}
	return *c, true
}

func (b *Backend) Summary(id int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.summaries[id]
}

// PostMessage appends a message as if sent by senderID.
func (b *Backend) PostMessage(consultationID, senderID int64, content string) contract.ChatMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.appendMessage(consultationID, senderID, content)
}

func (b *Backend) appendMessage(consultationID, senderID int64, content string) contract.ChatMessage {
	b.nextMessage++
	m := contract.ChatMessage{
		ID:             b.nextMessage,
		ConsultationID: consultationID,
		SenderID:       senderID,
		Content:        content,
		Timestamp:      time.Now().UTC(),
	}
	b.messages[consultationID] = append(b.messages[consultationID], m)
	return m
}

func (b *Backend) SetPending(docs ...contract.PendingDoctor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = docs
}

func (b *Backend) Decision(id int64) (contract.DecisionRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.decisions[id]
	return d, ok
}

func (b *Backend) SetStats(s contract.DashboardStats) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats = s
}

// -- transport --

func (b *Backend) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(b.track)

	e.POST("/auth/login", b.login)
	e.POST("/auth/logout", b.logout)

	g := e.Group("", b.authenticate)
	g.GET("/auth/me", b.me)
	g.POST("/chat/message", b.triageTurn)
	g.GET("/doctor/available", b.available)
	g.GET("/doctor/profile", b.profile)
	g.POST("/user/consultation/request", b.request)
	g.GET("/user/consultation/status/:id", b.status)
	g.GET("/doctor/consultations", b.queue)
	g.GET("/doctor/consultations/:id", b.detail)
	g.POST("/otochat/respond/:id", b.respond)
	g.POST("/otochat/send", b.send)
	g.GET("/otochat/messages/:id", b.listMessages)
	g.POST("/otochat/end", b.end)
	g.GET("/admin/get_doctors/pending", b.listPending)
	g.POST("/admin/handle_request/:id", b.decide)
	g.GET("/admin/dashboard_stats", b.dashboard)
	return e
}

func (b *Backend) track(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		route := c.Request().Method + " " + c.Path()
		b.mu.Lock()
		b.calls[route]++
		gate := b.gates[route]
		var code int
		if q := b.failures[route]; len(q) > 0 {
			code, b.failures[route] = q[0], q[1:]
		}
		b.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-c.Request().Context().Done():
				return c.Request().Context().Err()
			}
		}
		if code != 0 {
			return fail(c, code, http.StatusText(code))
		}
		return next(c)
	}
}

func (b *Backend) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ck, err := c.Cookie(cookieName)
		b.mu.Lock()
		p, ok := contract.Principal{}, false
		if err == nil && !b.expired {
			p, ok = b.sessions[ck.Value]
		}
		b.mu.Unlock()
		if !ok {
			return fail(c, http.StatusUnauthorized, "authentication required")
		}
		c.Set("principal", p)
		return next(c)
	}
}

func fail(c echo.Context, code int, msg string) error {
	return c.JSON(code, contract.ErrorBody{Message: msg})
}

func principal(c echo.Context) contract.Principal {
	p, _ := c.Get("principal").(contract.Principal)
	return p
}

func pathID(c echo.Context) int64 {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	return id
}

func (b *Backend) login(c echo.Context) error {
	var req contract.LoginRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	b.mu.Lock()
	acct, ok := b.accounts[strings.ToLower(req.Email)]
	if !ok || acct.password != req.Password {
		b.mu.Unlock()
		return fail(c, http.StatusUnauthorized, "invalid email or password")
	}
	b.nextTok++
	tok := "tok-" + strconv.Itoa(b.nextTok)
	b.sessions[tok] = acct.principal
	b.expired = false
	b.mu.Unlock()

	c.SetCookie(&http.Cookie{Name: cookieName, Value: tok, Path: "/", HttpOnly: true})
	return c.JSON(http.StatusOK, acct.principal)
}

func (b *Backend) logout(c echo.Context) error {
	if ck, err := c.Cookie(cookieName); err == nil {
		b.mu.Lock()
		delete(b.sessions, ck.Value)
		b.mu.Unlock()
	}
	c.SetCookie(&http.Cookie{Name: cookieName, Value: "", Path: "/", MaxAge: -1})
	return c.NoContent(http.StatusNoContent)
}

func (b *Backend) me(c echo.Context) error {
	return c.JSON(http.StatusOK, principal(c))
}

func (b *Backend) triageTurn(c echo.Context) error {
	var req contract.TriageTurnRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.triageSent = append(b.triageSent, req)
	if req.Message == contract.StartTriage {
		b.triageAt = 0
	}
	if b.triageAt >= len(b.TriageScript) {
		return fail(c, http.StatusConflict, "no open triage session")
	}
	resp := b.TriageScript[b.triageAt]
	b.triageAt++
	return c.JSON(http.StatusOK, resp)
}

func (b *Backend) available(c echo.Context) error {
	want := strings.ToLower(c.QueryParam("specialty"))
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []contract.DoctorProfile{}
	for _, d := range b.doctors {
		if want == "" || strings.Contains(strings.ToLower(d.Specialization), want) {
			out = append(out, d)
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (b *Backend) profile(c echo.Context) error {
	p := principal(c)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.doctors {
		if d.ID == p.ID {
			return c.JSON(http.StatusOK, d)
		}
	}
	return fail(c, http.StatusNotFound, "doctor profile not found")
}

func (b *Backend) request(c echo.Context) error {
	var req contract.ConsultationRequest
	if err := c.Bind(&req); err != nil || req.DoctorID <= 0 || req.TriageID <= 0 {
		return fail(c, http.StatusBadRequest, "doctor_id and triage_id are required")
	}
	p := principal(c)
	b.mu.Lock()
	for _, existing := range b.consultations {
		if existing.TriageID == req.TriageID && !existing.Status.Terminal() {
			b.mu.Unlock()
			return fail(c, http.StatusConflict, "triage session already has an open consultation")
		}
	}
	b.mu.Unlock()
	id := b.AddConsultation(contract.Consultation{
		TriageID:    req.TriageID,
		PatientID:   p.ID,
		PatientName: p.DisplayName,
		DoctorID:    req.DoctorID,
	})
	return c.JSON(http.StatusCreated, contract.ConsultationCreated{ConsultationID: id})
}

func (b *Backend) lookup(c echo.Context) (*contract.Consultation, error) {
	p := principal(c)
	b.mu.Lock()
	defer b.mu.Unlock()
	cons, ok := b.consultations[pathID(c)]
	if !ok {
		return nil, fail(c, http.StatusNotFound, "consultation not found")
	}
	if cons.PatientID != p.ID && cons.DoctorID != p.ID {
		return nil, fail(c, http.StatusForbidden, "not a participant")
	}
	return cons, nil
}

func (b *Backend) status(c echo.Context) error {
	cons, err := b.lookup(c)
	if cons == nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if q := b.statusScript[cons.ID]; len(q) > 0 {
		cons.Status, b.statusScript[cons.ID] = q[0], q[1:]
	}
	return c.JSON(http.StatusOK, contract.StatusResponse{Status: cons.Status})
}

func (b *Backend) queue(c echo.Context) error {
	p := principal(c)
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []contract.Consultation{}
	for _, id := range b.order {
		if cons := b.consultations[id]; cons.DoctorID == p.ID {
			out = append(out, *cons)
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (b *Backend) detail(c echo.Context) error {
	cons, err := b.lookup(c)
	if cons == nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return c.JSON(http.StatusOK, contract.ConsultationDetail{Consultation: *cons, SOAP: b.soap[cons.ID]})
}

func (b *Backend) respond(c echo.Context) error {
	var req contract.RespondRequest
	if err := c.Bind(&req); err != nil || !req.Action.Valid() {
		return fail(c, http.StatusBadRequest, "action must be accepted or rejected")
	}
	cons, err := b.lookup(c)
	if cons == nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !cons.Status.CanTransition(req.Action.Status()) {
		return fail(c, http.StatusConflict, "consultation is already "+string(cons.Status))
	}
	cons.Status = req.Action.Status()
	return c.JSON(http.StatusOK, contract.StatusResponse{Status: cons.Status})
}

func (b *Backend) send(c echo.Context) error {
	var req contract.SendMessageRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		return fail(c, http.StatusBadRequest, "content is required")
	}
	p := principal(c)
	b.mu.Lock()
	defer b.mu.Unlock()
	cons, ok := b.consultations[req.ConsultationID]
	if !ok {
		return fail(c, http.StatusNotFound, "consultation not found")
	}
	if cons.Status != contract.StatusAccepted {
		return fail(c, http.StatusConflict, "consultation is not open for chat")
	}
	m := b.appendMessage(cons.ID, p.ID, strings.TrimSpace(req.Content))
	return c.JSON(http.StatusCreated, m)
}

func (b *Backend) listMessages(c echo.Context) error {
	cons, err := b.lookup(c)
	if cons == nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := append([]contract.ChatMessage{}, b.messages[cons.ID]...)
	return c.JSON(http.StatusOK, contract.MessagesResponse{Messages: msgs, Status: cons.Status})
}

func (b *Backend) end(c echo.Context) error {
	var req contract.EndConsultationRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Summary) == "" {
		return fail(c, http.StatusBadRequest, "summary is required")
	}
	p := principal(c)
	b.mu.Lock()
	defer b.mu.Unlock()
	cons, ok := b.consultations[req.ConsultationID]
	if !ok {
		return fail(c, http.StatusNotFound, "consultation not found")
	}
	if cons.DoctorID != p.ID {
		return fail(c, http.StatusForbidden, "only the assigned doctor can end")
	}
	if cons.Status != contract.StatusAccepted {
		return fail(c, http.StatusConflict, "consultation is not in progress")
	}
	cons.Status = contract.StatusCompleted
	b.summaries[cons.ID] = req.Summary
	return c.JSON(http.StatusOK, contract.StatusResponse{Status: cons.Status})
}

func (b *Backend) listPending(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 {
		limit = 20
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	page := contract.PendingDoctorPage{Data: []contract.PendingDoctor{}, Total: len(b.pending), Limit: limit, Offset: offset}
	if offset < len(b.pending) {
		end := offset + limit
		if end > len(b.pending) {
			end = len(b.pending)
		}
		page.Data = append(page.Data, b.pending[offset:end]...)
	}
	page.HasMore = offset+len(page.Data) < page.Total
	return c.JSON(http.StatusOK, page)
}

func (b *Backend) decide(c echo.Context) error {
	var req contract.DecisionRequest
	if err := c.Bind(&req); err != nil || !req.Action.Valid() {
		return fail(c, http.StatusBadRequest, "action must be verify or reject")
	}
	id := pathID(c)
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := -1
	for i, d := range b.pending {
		if d.ID == id {
			idx = i
		}
	}
	if idx < 0 {
		return fail(c, http.StatusNotFound, "pending doctor not found")
	}
	b.pending = append(b.pending[:idx], b.pending[idx+1:]...)
	b.decisions[id] = req
	msg := "Doctor verified"
	if req.Action == contract.ActionReject {
		msg = "Doctor rejected"
	}
	return c.JSON(http.StatusOK, contract.MessageBody{Message: msg})
}

func (b *Backend) dashboard(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.PendingVerifications = len(b.pending)
	return c.JSON(http.StatusOK, s)
}
