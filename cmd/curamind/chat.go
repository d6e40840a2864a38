package main

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/curamind/curamind/internal/client/chat"
	"github.com/curamind/curamind/internal/client/poll"
	"github.com/curamind/curamind/internal/contract"
)

// chatSession runs the live chat until the consultation completes or the
// user leaves with /quit.
func (a *app) chatSession(ctx context.Context, consultationID, peerID int64) error {
	me, _ := a.session.Current()
	ch := chat.NewChannel(a.client, chat.Options{
		ConsultationID: consultationID,
		Me:             me,
		PeerID:         peerID,
		Loop:           a.chatLoop(),
		Logger:         a.logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	shown := 0
	show := func(msgs []contract.ChatMessage, _ contract.ConsultationStatus) {
		mu.Lock()
		defer mu.Unlock()
		if len(msgs) < shown {
			shown = 0
		}
		for _, m := range msgs[shown:] {
			a.console.say("[%s] %s: %s", m.Timestamp.Local().Format("15:04"), ch.Attribute(m).Label(), m.Content)
		}
		shown = len(msgs)
	}

	done := make(chan error, 1)
	go func() { done <- ch.Run(ctx, show) }()

	help := "Type a message and press Enter. /quit leaves the chat."
	if ch.CanEnd() {
		help += " /end closes the consultation with a clinical summary."
	}
	a.console.say(help)

	for {
		select {
		case err := <-done:
			return a.chatEnded(err)
		case line, ok := <-a.console.lines:
			if !ok {
				return errInputClosed
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "/quit":
				return nil
			case line == "/end":
				if err := a.endChat(ctx, ch); err != nil {
					a.console.say("Could not end the consultation: %s", describe(err))
				}
			case line != "":
				if err := ch.Send(ctx, line); err != nil {
					a.console.say("Message not sent: %s", describeChat(err))
				}
			}
		}
	}
}

func (a *app) endChat(ctx context.Context, ch *chat.Channel) error {
	if !ch.CanEnd() {
		return chat.ErrNotDoctor
	}
	summary, err := a.console.ask(ctx, "Clinical summary: ")
	if err != nil {
		return err
	}
	if err := ch.End(ctx, summary); err != nil {
		return err
	}
	a.console.say("Consultation closed.")
	return nil
}

func (a *app) chatEnded(err error) error {
	switch {
	case err == nil:
		a.console.say("This consultation has been completed. The chat is closed.")
		return nil
	case errors.Is(err, poll.ErrStalled):
		a.console.say("The chat has been idle too long. Reopen it from your dashboard.")
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	}
	return err
}

func describeChat(err error) string {
	switch {
	case errors.Is(err, chat.ErrClosed):
		return "the consultation is closed"
	case errors.Is(err, chat.ErrInFlight):
		return "still sending the previous message"
	}
	return describe(err)
}
