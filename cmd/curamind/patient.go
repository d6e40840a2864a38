package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/curamind/curamind/internal/client/api"
	"github.com/curamind/curamind/internal/client/consult"
	"github.com/curamind/curamind/internal/client/directory"
	"github.com/curamind/curamind/internal/client/poll"
	"github.com/curamind/curamind/internal/client/triage"
	"github.com/curamind/curamind/internal/contract"
)

func runPatient(ctx context.Context, a *app) error {
	outcome, err := a.runTriage(ctx)
	if err != nil {
		return err
	}
	printOutcome(a, outcome)

	if outcome.Route() == triage.RouteEmergency {
		a.console.say("Please call one of the numbers above now.")
		return nil
	}

	dir := directory.New(a.client, a.logger)
	requester := consult.NewRequester(a.client, a.session, a.logger)
	room := consult.NewWaitingRoom(a.client, a.statusLoop())

	for {
		docs, err := dir.Match(ctx, outcome)
		if err != nil {
			return fmt.Errorf("list doctors: %s", describe(err))
		}
		if len(docs) == 0 {
			a.console.say("No doctors are available right now. Please try again later.")
			return nil
		}
		a.console.say("Available doctors:")
		for i, d := range docs {
			a.console.say("  %d. %s (%s) %s", i+1, d.Name, d.Specialization, d.Hospital)
		}
		i, err := a.console.choose(ctx, "Choose a doctor (blank to exit): ", len(docs))
		if err != nil || i < 0 {
			return err
		}
		doc := docs[i]

		id, err := requester.Request(ctx, doc.ID)
		if errors.Is(err, consult.ErrMissingTriage) {
			return errors.New("your triage result has expired, please start a new assessment")
		}
		if err != nil {
			a.console.say("Request failed: %s", describe(err))
			continue
		}

		a.console.say("Request sent to %s. Waiting for a response...", doc.Name)
		res, err := room.Wait(ctx, id)
		if errors.Is(err, poll.ErrStalled) {
			a.console.say("No response yet. Check back from your dashboard later.")
			return nil
		}
		if err != nil {
			return err
		}

		switch res.Next {
		case consult.NextChat:
			a.session.ForgetTriage()
			a.console.say("%s accepted your request.", doc.Name)
			return a.chatSession(ctx, id, doc.ID)
		case consult.NextDoctorMatching:
			a.console.say("%s is unable to take this consultation. Please choose another doctor.", doc.Name)
		default:
			a.console.say("This consultation has already been completed.")
			return nil
		}
	}
}

func (a *app) runTriage(ctx context.Context) (triage.Complete, error) {
	engine := triage.NewEngine(a.client, a.session, a.logger)
	res, err := engine.Start(ctx)
	for {
		if errors.Is(err, api.ErrUnauthenticated) || ctx.Err() != nil {
			return triage.Complete{}, err
		}
		if err != nil {
			if errors.Is(err, triage.ErrEmptyMessage) {
				a.console.say("Please answer Yes or No.")
			} else {
				a.console.say("Something went wrong: %s", describe(err))
			}
			if engine.State().Phase == triage.NotStarted {
				if _, aerr := a.console.ask(ctx, "Press Enter to try again. "); aerr != nil {
					return triage.Complete{}, aerr
				}
				res, err = engine.Start(ctx)
				continue
			}
		} else if res.Done() {
			return *res.Complete, nil
		}

		q := engine.State().Current
		a.console.say("\n%s", q.Question)
		if q.Helper != "" {
			a.console.say("  (%s)", q.Helper)
		}
		answer, aerr := a.console.ask(ctx, fmt.Sprintf("[%s/%s] > ", q.Choices[0], q.Choices[1]))
		if aerr != nil {
			return triage.Complete{}, aerr
		}
		res, err = engine.Submit(ctx, answer)
	}
}

func printOutcome(a *app, c triage.Complete) {
	a.console.say("\nTriage result: %s", c.Flag)
	if c.Advice != nil {
		a.console.say("%s", c.Advice.Title)
		a.console.say("%s", c.Advice.Text)
	}
	for _, n := range c.EmergencyNumbers() {
		a.console.say("  %s: %s", n.Label, n.Number)
	}
	if c.Flag != contract.FlagRed {
		a.console.say("\nAssessment: %s", c.SOAP.Assessment)
		a.console.say("Plan: %s", c.SOAP.Plan)
	}
}
