// Package websocket pushes consultation events to connected participants.
// Each consultation is a topic; the hub fans published events out to every
// socket watching it. Pollers remain the source of truth, so a dropped event
// only delays a client until its next poll.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/curamind/curamind/internal/contract"
)

type EventType string

const (
	EventStatus  EventType = "status"
	EventMessage EventType = "message"
)

// Event is a single change to a consultation.
type Event struct {
	Type           EventType                   `json:"type"`
	ConsultationID int64                       `json:"consultation_id"`
	Status         contract.ConsultationStatus `json:"status,omitempty"`
	Message        *contract.ChatMessage       `json:"message,omitempty"`
	At             time.Time                   `json:"at"`
}

// Publisher is implemented by anything that can deliver consultation events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber is one watcher of a consultation.
type Subscriber struct {
	ID             string
	AccountID      int64
	ConsultationID int64
	Send           chan []byte
}

const sendBuffer = 64

func NewSubscriber(accountID, consultationID int64) *Subscriber {
	return &Subscriber{
		ID:             uuid.New().String(),
		AccountID:      accountID,
		ConsultationID: consultationID,
		Send:           make(chan []byte, sendBuffer),
	}
}

// Hub tracks subscribers per consultation.
type Hub struct {
	mu       sync.RWMutex
	topics   map[int64]map[*Subscriber]struct{}
	logger   zerolog.Logger
	origins  map[string]struct{}
	upgrader gorillawebsocket.Upgrader
}

func NewHub(logger zerolog.Logger) *Hub {
	h := &Hub{
		topics:  make(map[int64]map[*Subscriber]struct{}),
		logger:  logger.With().Str("component", "events").Logger(),
		origins: make(map[string]struct{}),
	}
	h.upgrader = gorillawebsocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// WithOrigins allows browser pages on these origins to open event sockets.
// Same-host pages and clients that send no Origin header are always allowed.
func (h *Hub) WithOrigins(origins ...string) *Hub {
	for _, o := range origins {
		h.origins[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if _, ok := h.origins["*"]; ok {
		return true
	}
	if _, ok := h.origins[strings.ToLower(origin)]; ok {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	h.logger.Warn().Str("origin", origin).Msg("event socket rejected for origin")
	return false
}

func (h *Hub) Register(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[s.ConsultationID] == nil {
		h.topics[s.ConsultationID] = make(map[*Subscriber]struct{})
	}
	h.topics[s.ConsultationID][s] = struct{}{}
}

// Unregister removes s and closes its Send channel. Calling it twice is safe.
func (h *Hub) Unregister(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[s.ConsultationID]
	if !ok {
		return
	}
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(h.topics, s.ConsultationID)
	}
	close(s.Send)
}

// Publish fans event out to the consultation's subscribers. Slow subscribers
// miss the event instead of blocking the publisher.
func (h *Hub) Publish(_ context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.topics[event.ConsultationID] {
		select {
		case s.Send <- data:
		default:
			h.logger.Warn().
				Str("subscriber", s.ID).
				Int64("consultation_id", event.ConsultationID).
				Msg("subscriber buffer full, event dropped")
		}
	}
	return nil
}

// Watchers returns how many subscribers follow the consultation.
func (h *Hub) Watchers(consultationID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[consultationID])
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Serve upgrades the request and streams the consultation's events until the
// peer disconnects. Callers authorize the account before calling Serve.
func (h *Hub) Serve(c echo.Context, accountID, consultationID int64) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	s := NewSubscriber(accountID, consultationID)
	h.Register(s)
	h.logger.Debug().
		Str("subscriber", s.ID).
		Int64("account_id", accountID).
		Int64("consultation_id", consultationID).
		Msg("subscriber connected")

	go h.writePump(s, ws)
	go h.readPump(s, ws)
	return nil
}

// readPump only drains control frames; subscribers never send commands.
func (h *Hub) readPump(s *Subscriber, ws *gorillawebsocket.Conn) {
	defer func() {
		h.Unregister(s)
		ws.Close()
	}()
	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(s *Subscriber, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()
	for {
		select {
		case msg, ok := <-s.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
