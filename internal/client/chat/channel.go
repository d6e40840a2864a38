// Package chat is the one-to-one message channel of an accepted
// consultation.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/curamind/curamind/internal/client/api"
	"github.com/curamind/curamind/internal/client/poll"
	"github.com/curamind/curamind/internal/contract"
)

var (
	ErrEmptyMessage    = errors.New("chat: message is empty")
	ErrSummaryRequired = errors.New("chat: a clinical summary is required to end the consultation")
	ErrNotDoctor       = errors.New("chat: only the doctor can end the consultation")
	ErrClosed          = errors.New("chat: consultation is closed")
	ErrNotOpen         = errors.New("chat: consultation is not open for messages")
	ErrInFlight        = errors.New("chat: action already in flight")
)

type Author int

const (
	Unknown Author = iota
	Mine
	Theirs
)

func (a Author) Label() string {
	switch a {
	case Mine:
		return "You"
	case Theirs:
		return "Them"
	}
	return "Participant"
}

type Transport interface {
	Messages(ctx context.Context, consultationID int64) (contract.MessagesResponse, error)
	SendMessage(ctx context.Context, consultationID int64, content string) (contract.ChatMessage, error)
	EndConsultation(ctx context.Context, consultationID int64, summary string) error
}

type Options struct {
	ConsultationID int64
	Me             contract.Principal
	// PeerID is the other participant. Zero attributes every sender that is
	// not Me to the other party.
	PeerID int64
	Loop   poll.Loop
	Logger zerolog.Logger
}

type Channel struct {
	transport Transport
	id        int64
	me        contract.Principal
	peerID    int64
	loop      poll.Loop
	logger    zerolog.Logger

	mu         sync.Mutex
	transcript []contract.ChatMessage
	status     contract.ConsultationStatus
	sending    bool
	ending     bool
}

func NewChannel(t Transport, opts Options) *Channel {
	loop := opts.Loop
	if loop.Fatal == nil {
		loop.Fatal = api.IsFatal
	}
	if loop.Name == "" {
		loop.Name = "chat"
	}
	return &Channel{
		transport: t,
		id:        opts.ConsultationID,
		me:        opts.Me,
		peerID:    opts.PeerID,
		loop:      loop,
		logger:    opts.Logger,
		status:    contract.StatusAccepted,
	}
}

func (ch *Channel) ID() int64 { return ch.id }

// Refresh replaces the transcript with the server's list.
func (ch *Channel) Refresh(ctx context.Context) error {
	resp, err := ch.transport.Messages(ctx, ch.id)
	if err != nil {
		return err
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.transcript = append([]contract.ChatMessage{}, resp.Messages...)
	if resp.Status.Rank() >= ch.status.Rank() {
		ch.status = resp.Status
	}
	return nil
}

// Run polls until the consultation is completed or ctx ends. onUpdate, if
// set, sees every successful refresh.
func (ch *Channel) Run(ctx context.Context, onUpdate func([]contract.ChatMessage, contract.ConsultationStatus)) error {
	return ch.loop.Run(ctx, func(ctx context.Context) (bool, error) {
		if err := ch.Refresh(ctx); err != nil {
			return false, err
		}
		if onUpdate != nil {
			onUpdate(ch.Transcript(), ch.Status())
		}
		return ch.Closed(), nil
	})
}

// Send posts content. The sent message is shown immediately and replaced by
// the server's list on the next refresh.
func (ch *Channel) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}

	ch.mu.Lock()
	switch {
	case ch.status.Terminal():
		ch.mu.Unlock()
		return ErrClosed
	case ch.status != contract.StatusAccepted:
		ch.mu.Unlock()
		return ErrNotOpen
	case ch.sending:
		ch.mu.Unlock()
		return ErrInFlight
	}
	ch.sending = true
	ch.mu.Unlock()

	msg, err := ch.transport.SendMessage(ctx, ch.id, content)

	ch.mu.Lock()
	ch.sending = false
	if err == nil && msg.ID != 0 && !ch.has(msg.ID) {
		ch.transcript = append(ch.transcript, msg)
	}
	ch.mu.Unlock()

	if api.IsConflict(err) {
		// The consultation moved on; pick up its status so CanSend follows.
		if rerr := ch.Refresh(ctx); rerr != nil {
			ch.logger.Warn().Err(rerr).Int64("consultation_id", ch.id).Msg("status refresh after refused send failed")
		}
		ch.logger.Debug().Int64("consultation_id", ch.id).Str("status", string(ch.Status())).
			Msg("send refused, consultation no longer open")
	}
	return err
}

func (ch *Channel) has(id int64) bool {
	for _, m := range ch.transcript {
		if m.ID == id {
			return true
		}
	}
	return false
}

// End closes the consultation with a clinical summary. Doctor only.
func (ch *Channel) End(ctx context.Context, summary string) error {
	if ch.me.Role != contract.RoleDoctor {
		return ErrNotDoctor
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return ErrSummaryRequired
	}

	ch.mu.Lock()
	if ch.status.Terminal() {
		ch.mu.Unlock()
		return ErrClosed
	}
	if ch.ending {
		ch.mu.Unlock()
		return ErrInFlight
	}
	ch.ending = true
	ch.mu.Unlock()

	err := ch.transport.EndConsultation(ctx, ch.id, summary)

	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.ending = false
	if err != nil {
		return err
	}
	ch.status = contract.StatusCompleted
	ch.logger.Info().Int64("consultation_id", ch.id).Msg("consultation ended")
	return nil
}

func (ch *Channel) Transcript() []contract.ChatMessage {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return append([]contract.ChatMessage(nil), ch.transcript...)
}

func (ch *Channel) Status() contract.ConsultationStatus {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.status
}

// Attribute decides whose bubble m is by sender id alone.
func (ch *Channel) Attribute(m contract.ChatMessage) Author {
	switch {
	case m.SenderID == 0:
		return Unknown
	case m.SenderID == ch.me.ID:
		return Mine
	case ch.peerID == 0 || m.SenderID == ch.peerID:
		return Theirs
	}
	return Unknown
}

func (ch *Channel) Closed() bool {
	return ch.Status() == contract.StatusCompleted
}

func (ch *Channel) CanSend() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.status == contract.StatusAccepted && !ch.sending
}

func (ch *Channel) CanEnd() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.me.Role == contract.RoleDoctor && ch.status == contract.StatusAccepted && !ch.ending
}
