// Package triage drives the patient's question and answer dialogue against
// the backend triage endpoint.
package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/curamind/curamind/internal/client/session"
	"github.com/curamind/curamind/internal/contract"
)

var (
	ErrEmptyMessage = errors.New("triage: answer is empty")
	ErrInFlight     = errors.New("triage: a turn is already in flight")
	ErrNotStarted   = errors.New("triage: no question is awaiting an answer")
	ErrUnexpected   = errors.New("triage: unexpected turn status")
)

// Choices is the canonical answer vocabulary offered for every question.
var Choices = []string{contract.AnswerYes, contract.AnswerNo}

type Phase int

const (
	NotStarted Phase = iota
	AwaitingAnswer
	Terminal
)

func (p Phase) String() string {
	switch p {
	case AwaitingAnswer:
		return "awaiting_answer"
	case Terminal:
		return "terminal"
	}
	return "not_started"
}

type Continue struct {
	Question string
	Helper   string
	Step     string
	Choices  []string
}

type Route int

const (
	RouteDoctorMatching Route = iota
	RouteEmergency
)

type Complete struct {
	TriageID  int64
	Flag      contract.Flag
	SOAP      contract.SOAPNote
	Specialty string
	Advice    *contract.Recommendation
}

// Route says where the patient goes next. RED never reaches doctor
// matching.
func (c Complete) Route() Route {
	if c.Flag.Emergency() {
		return RouteEmergency
	}
	return RouteDoctorMatching
}

// EmergencyNumbers returns the numbers carried in the terminal payload.
func (c Complete) EmergencyNumbers() []contract.EmergencyNumber {
	if c.Advice == nil {
		return nil
	}
	return c.Advice.EmergencyNumbers
}

// TurnResult holds exactly one of Continue or Complete.
type TurnResult struct {
	Continue *Continue
	Complete *Complete
}

func (r TurnResult) Done() bool { return r.Complete != nil }

// Exchange is one answered question in the local transcript.
type Exchange struct {
	Step     string
	Question string
	Answer   string
}

type State struct {
	Phase    Phase
	Current  *Continue
	Outcome  *Complete
	Exchange []Exchange
}

type Transport interface {
	TriageTurn(ctx context.Context, accountID int64, message string) (contract.TriageTurnResponse, error)
}

type Engine struct {
	transport Transport
	session   *session.Store
	logger    zerolog.Logger

	mu       sync.Mutex
	inFlight bool
	state    State
}

func NewEngine(t Transport, s *session.Store, logger zerolog.Logger) *Engine {
	return &Engine{transport: t, session: s, logger: logger}
}

// Start begins a fresh session. The server abandons any open one.
func (e *Engine) Start(ctx context.Context) (TurnResult, error) {
	if err := e.acquire(); err != nil {
		return TurnResult{}, err
	}
	defer e.release()

	res, err := e.turn(ctx, contract.StartTriage)
	if err != nil {
		return TurnResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = State{}
	e.apply(res)
	return res, nil
}

// Submit sends one answer. On error the dialogue stays on the same question
// so the caller can retry.
func (e *Engine) Submit(ctx context.Context, answer string) (TurnResult, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return TurnResult{}, ErrEmptyMessage
	}
	if err := e.acquire(); err != nil {
		return TurnResult{}, err
	}
	defer e.release()

	e.mu.Lock()
	if e.state.Phase != AwaitingAnswer {
		e.mu.Unlock()
		return TurnResult{}, ErrNotStarted
	}
	asked := *e.state.Current
	e.mu.Unlock()

	res, err := e.turn(ctx, answer)
	if err != nil {
		return TurnResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Exchange = append(e.state.Exchange, Exchange{Step: asked.Step, Question: asked.Question, Answer: answer})
	e.apply(res)
	return res, nil
}

// State returns a snapshot of the dialogue.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state
	s.Exchange = append([]Exchange(nil), e.state.Exchange...)
	return s
}

// Busy reports whether a turn is outstanding.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight
}

// Reset discards local state. The server session is left to be abandoned by
// the next Start.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = State{}
}

func (e *Engine) acquire() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight {
		return ErrInFlight
	}
	e.inFlight = true
	return nil
}

func (e *Engine) release() {
	e.mu.Lock()
	e.inFlight = false
	e.mu.Unlock()
}

func (e *Engine) turn(ctx context.Context, message string) (TurnResult, error) {
	resp, err := e.transport.TriageTurn(ctx, e.session.AccountID(), message)
	if err != nil {
		return TurnResult{}, err
	}
	switch resp.Status {
	case contract.TurnContinue:
		return TurnResult{Continue: &Continue{
			Question: resp.Reply,
			Helper:   resp.Helper,
			Step:     resp.Step,
			Choices:  Choices,
		}}, nil
	case contract.TurnComplete:
		if !resp.Flag.Valid() || resp.TriageID == 0 {
			return TurnResult{}, fmt.Errorf("%w: complete without flag or triage id", ErrUnexpected)
		}
		c := &Complete{
			TriageID:  resp.TriageID,
			Flag:      resp.Flag,
			Specialty: resp.Specialty,
			Advice:    resp.Content,
		}
		if resp.SOAP != nil {
			c.SOAP = *resp.SOAP
		}
		return TurnResult{Complete: c}, nil
	}
	return TurnResult{}, fmt.Errorf("%w %q", ErrUnexpected, resp.Status)
}

// apply must be called with e.mu held.
func (e *Engine) apply(res TurnResult) {
	if res.Complete != nil {
		e.state.Phase = Terminal
		e.state.Current = nil
		e.state.Outcome = res.Complete
		e.session.RememberTriage(res.Complete.TriageID)
		e.logger.Info().
			Int64("triage_id", res.Complete.TriageID).
			Str("flag", string(res.Complete.Flag)).
			Msg("triage complete")
		return
	}
	e.state.Phase = AwaitingAnswer
	e.state.Current = res.Continue
}
