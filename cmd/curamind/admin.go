package main

import (
	"context"
	"errors"

	"github.com/curamind/curamind/internal/client/admin"
	"github.com/curamind/curamind/internal/contract"
)

const adminPageSize = 10

const adminHelp = `Commands:
  verify <id>   approve a doctor and mail their password
  reject <id>   decline a registration
  next | prev   page through applications
  refresh
  quit`

func runAdmin(ctx context.Context, a *app) error {
	v := admin.NewVerification(a.client, a.logger)
	offset := 0

	for {
		stats, err := v.Stats(ctx)
		if err != nil {
			return errors.New(describe(err))
		}
		a.console.say("\nPending: %d  Doctors: %d  Patients: %d",
			stats.PendingVerifications, stats.TotalDoctors, stats.TotalPatients)

		page, err := v.ListPending(ctx, adminPageSize, offset)
		if err != nil {
			return errors.New(describe(err))
		}
		if len(page.Data) == 0 {
			a.console.say("No pending registrations.")
		}
		for _, d := range page.Data {
			a.console.say("  #%d  %-20s %-18s licence %s  %s  applied %s",
				d.ID, d.Name, d.Specialization, d.LicenseNo, d.Email, d.AppliedAt.Format("2006-01-02"))
		}

		line, err := a.console.ask(ctx, "admin> ")
		if err != nil {
			return err
		}
		cmd, id, _ := command(line)
		switch cmd {
		case "quit", "exit":
			return nil
		case "", "refresh":
		case "help":
			a.console.say(adminHelp)
		case "next":
			if page.HasMore {
				offset += adminPageSize
			}
		case "prev":
			if offset >= adminPageSize {
				offset -= adminPageSize
			}
		case "verify":
			msg, err := v.Verify(ctx, id)
			if err != nil {
				a.console.say("Could not verify #%d: %s", id, describe(err))
				continue
			}
			a.console.say("%s", msg)
		case "reject":
			if err := rejectApplicant(ctx, a, v, id); err != nil {
				a.console.say("Could not reject #%d: %s", id, describe(err))
			}
		default:
			a.console.say(adminHelp)
		}
	}
}

func rejectApplicant(ctx context.Context, a *app, v *admin.Verification, id int64) error {
	a.console.say("Reason:")
	for i, r := range contract.RejectReasons {
		a.console.say("  %d. %s", i+1, r)
	}
	i, err := a.console.choose(ctx, "Choose a reason: ", len(contract.RejectReasons))
	if err != nil {
		return err
	}
	if i < 0 {
		return admin.ErrReasonRequired
	}
	reason := contract.RejectReasons[i]

	note := ""
	if reason.NeedsNote() {
		if note, err = a.console.ask(ctx, "Note: "); err != nil {
			return err
		}
	}
	msg, err := v.Reject(ctx, id, reason, note)
	if err != nil {
		return err
	}
	a.console.say("%s", msg)
	return nil
}
