package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/curamind/curamind/internal/contract"
)

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	s := NewSubscriber(1, 101)

	hub.Register(s)
	if hub.Watchers(101) != 1 {
		t.Fatalf("expected 1 watcher, got %d", hub.Watchers(101))
	}

	hub.Unregister(s)
	if hub.Watchers(101) != 0 {
		t.Fatalf("expected 0 watchers, got %d", hub.Watchers(101))
	}
	if _, ok := <-s.Send; ok {
		t.Error("expected Send to be closed")
	}

	// second call is a no-op
	hub.Unregister(s)
}

func TestHub_PublishOnlyToConsultation(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := NewSubscriber(1, 101)
	b := NewSubscriber(2, 102)
	hub.Register(a)
	hub.Register(b)

	err := hub.Publish(context.Background(), Event{
		Type:           EventStatus,
		ConsultationID: 101,
		Status:         contract.StatusAccepted,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case data := <-a.Send:
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if ev.Type != EventStatus || ev.Status != contract.StatusAccepted {
			t.Errorf("unexpected event: %+v", ev)
		}
		if ev.At.IsZero() {
			t.Error("expected timestamp to be filled in")
		}
	default:
		t.Fatal("expected event for consultation 101")
	}

	select {
	case <-b.Send:
		t.Fatal("consultation 102 should not see 101's events")
	default:
	}
}

func TestHub_FullBufferDropsEvent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	s := NewSubscriber(1, 7)
	hub.Register(s)

	for i := 0; i < sendBuffer+5; i++ {
		if err := hub.Publish(context.Background(), Event{Type: EventMessage, ConsultationID: 7}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	if len(s.Send) != sendBuffer {
		t.Errorf("expected buffer to hold %d events, got %d", sendBuffer, len(s.Send))
	}
}

func TestHub_ConcurrentPublishAndUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		s := NewSubscriber(int64(i), 9)
		hub.Register(s)
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.Publish(context.Background(), Event{Type: EventStatus, ConsultationID: 9})
		}()
		go func() {
			defer wg.Done()
			hub.Unregister(s)
		}()
	}
	wg.Wait()
	if hub.Watchers(9) != 0 {
		t.Errorf("expected no watchers, got %d", hub.Watchers(9))
	}
}

func TestHub_ServeStreamsEvents(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	e := echo.New()
	e.GET("/events/:id", func(c echo.Context) error {
		return hub.Serve(c, 1, 55)
	})
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events/55"
	conn, _, err := gorillawebsocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Watchers(55) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	msg := contract.ChatMessage{ID: 1, SenderID: 1, Content: "hello"}
	hub.Publish(context.Background(), Event{Type: EventMessage, ConsultationID: 55, Message: &msg})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Message == nil || ev.Message.Content != "hello" {
		t.Errorf("unexpected event: %+v", ev)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.Watchers(55) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_CheckOrigin(t *testing.T) {
	hub := NewHub(zerolog.Nop()).WithOrigins("https://app.curamind.example/")
	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"no origin header", "", true},
		{"allowed origin", "https://app.curamind.example", true},
		{"allowed origin other case", "https://App.CuraMind.example", true},
		{"same host", "http://api.curamind.example", true},
		{"foreign origin", "https://evil.example", false},
		{"allowed host wrong scheme", "http://app.curamind.example", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://api.curamind.example/otochat/events/1", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := hub.checkOrigin(r); got != tt.want {
				t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestHub_ServeRejectsForeignOrigin(t *testing.T) {
	hub := NewHub(zerolog.Nop()).WithOrigins("https://app.curamind.example")
	e := echo.New()
	e.GET("/events/:id", func(c echo.Context) error {
		return hub.Serve(c, 1, 56)
	})
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events/56"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(url, header)
	if err == nil {
		conn.Close()
		t.Fatal("expected handshake to fail for a foreign origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 handshake response, got %v", resp)
	}
	if hub.Watchers(56) != 0 {
		t.Error("rejected socket must not be registered")
	}
}
