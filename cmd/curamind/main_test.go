package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/curamind/curamind/internal/client/api"
)

func TestCommand(t *testing.T) {
	tests := []struct {
		in   string
		cmd  string
		id   int64
		isID bool
	}{
		{"accept 12", "accept", 12, true},
		{"  View #7 ", "view", 7, true},
		{"list", "list", 0, false},
		{"reject abc", "reject", 0, false},
		{"", "", 0, false},
	}
	for _, tt := range tests {
		cmd, id, ok := command(tt.in)
		if cmd != tt.cmd || id != tt.id || ok != tt.isID {
			t.Errorf("command(%q) = %q, %d, %v", tt.in, cmd, id, ok)
		}
	}
}

func TestDescribe(t *testing.T) {
	if got := describe(api.ErrUnauthenticated); !strings.Contains(got, "log in") {
		t.Errorf("got %q", got)
	}
	if got := describe(&api.Error{Code: http.StatusConflict, Message: "consultation is already accepted"}); got != "consultation is already accepted" {
		t.Errorf("got %q", got)
	}
	if got := describe(errors.New("dial tcp: connection refused")); !strings.Contains(got, "reach the server") {
		t.Errorf("got %q", got)
	}
}

func TestConsole_Choose(t *testing.T) {
	var out strings.Builder
	c := newConsole(context.Background(), strings.NewReader("9\nx\n2\n"), &out)
	i, err := c.choose(context.Background(), "> ", 3)
	if err != nil || i != 1 {
		t.Fatalf("choose = %d, %v", i, err)
	}
	if strings.Count(out.String(), "between 1 and 3") != 2 {
		t.Errorf("expected two retries, output %q", out.String())
	}
}

func TestConsole_InputClosed(t *testing.T) {
	var out strings.Builder
	c := newConsole(context.Background(), strings.NewReader(""), &out)
	if _, err := c.ask(context.Background(), "> "); !errors.Is(err, errInputClosed) {
		t.Fatalf("expected errInputClosed, got %v", err)
	}
}

type failingQueue struct{ err error }

func (f failingQueue) Refresh(context.Context) error { return f.err }

func TestRefreshAfterChat_LogsFailure(t *testing.T) {
	var buf bytes.Buffer
	a := &app{logger: zerolog.New(&buf)}

	a.refreshAfterChat(context.Background(), failingQueue{}, 4)
	if buf.Len() != 0 {
		t.Errorf("successful refresh should log nothing, got %s", buf.String())
	}

	a.refreshAfterChat(context.Background(), failingQueue{err: errors.New("connection reset")}, 4)
	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, "connection reset") || !strings.Contains(out, `"consultation_id":4`) {
		t.Errorf("expected warning with error and consultation id, got %s", out)
	}
}
