package main

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/curamind/curamind/internal/client/consult"
	"github.com/curamind/curamind/internal/contract"
)

const doctorHelp = `Commands:
  list           show your consultations
  view <id>      show the triage note for a consultation
  accept <id>    accept a pending request
  reject <id>    decline a pending request
  chat <id>      open the chat of an accepted consultation
  online|offline toggle availability
  quit`

func runDoctor(ctx context.Context, a *app) error {
	dash, err := consult.LoadDashboard(ctx, a.client)
	if err != nil {
		return errors.New(describe(err))
	}
	p := dash.Profile
	a.console.say("%s, %s. You are %s.", p.Name, p.Specialization, availability(p.Available))

	queue := consult.NewQueue(a.client, a.queueLoop(), a.logger)
	qctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := queue.Run(qctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn().Err(err).Msg("queue polling stopped")
		}
	}()
	if err := queue.Refresh(ctx); err != nil {
		a.console.say("Could not load your queue: %s", describe(err))
	}
	a.console.say(doctorHelp)

	for {
		line, err := a.console.ask(ctx, "doctor> ")
		if err != nil {
			return err
		}
		cmd, id, _ := command(line)
		switch cmd {
		case "", "help":
			a.console.say(doctorHelp)
		case "quit", "exit":
			return nil
		case "list":
			printQueue(a, queue)
		case "view":
			d, err := a.client.ConsultationDetail(ctx, id)
			if err != nil {
				a.console.say("Could not load consultation %d: %s", id, describe(err))
				continue
			}
			a.console.say("Patient: %s  Triage: %s  Status: %s", d.PatientName, d.TriageFlag, d.Status)
			a.console.say("S: %s\nO: %s\nA: %s\nP: %s", d.SOAP.Subjective, d.SOAP.Objective, d.SOAP.Assessment, d.SOAP.Plan)
		case "accept", "reject":
			decision := contract.DecisionAccept
			if cmd == "reject" {
				decision = contract.DecisionReject
			}
			if !queue.CanRespond(id) {
				a.console.say("Consultation %d is not awaiting a decision.", id)
				continue
			}
			status, err := queue.Respond(ctx, id, decision)
			if err != nil {
				a.console.say("Could not %s consultation %d: %s", cmd, id, describe(err))
				continue
			}
			a.console.say("Consultation %d is now %s.", id, status)
		case "chat":
			row, ok := queue.Get(id)
			if !ok || row.Status != contract.StatusAccepted {
				a.console.say("Consultation %d is not open for chat.", id)
				continue
			}
			if err := a.chatSession(ctx, id, row.PatientID); err != nil {
				return err
			}
			a.refreshAfterChat(ctx, queue, id)
		case "online", "offline":
			on := cmd == "online"
			p, err := a.client.UpdateDoctor(ctx, contract.DoctorUpdateRequest{Available: &on})
			if err != nil {
				a.console.say("Could not update availability: %s", describe(err))
				continue
			}
			a.console.say("You are %s.", availability(p.Available))
		default:
			a.console.say("Unknown command %q. Type help.", cmd)
		}
	}
}

func printQueue(a *app, q *consult.Queue) {
	rows := q.Rows()
	if len(rows) == 0 {
		a.console.say("No consultations yet.")
		return
	}
	for _, c := range rows {
		marker := ""
		if q.InFlight(c.ID) {
			marker = " (sending...)"
		}
		a.console.say("  #%d  %-20s %-7s %s%s", c.ID, c.PatientName, c.TriageFlag, c.Status, marker)
	}
}

func availability(on bool) string {
	if on {
		return "online"
	}
	return "offline"
}

// command splits "verb 12" into its verb and numeric argument.
func command(line string) (string, int64, bool) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return "", 0, false
	}
	if len(fields) < 2 {
		return fields[0], 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(fields[1], "#"), 10, 64)
	return fields[0], id, err == nil
}

type refresher interface {
	Refresh(ctx context.Context) error
}

// refreshAfterChat reloads the queue once a chat closes. Failures are logged
// and left to the poller.
func (a *app) refreshAfterChat(ctx context.Context, q refresher, consultationID int64) {
	if err := q.Refresh(ctx); err != nil {
		a.logger.Warn().Err(err).Int64("consultation_id", consultationID).Msg("queue refresh after chat failed")
	}
}
