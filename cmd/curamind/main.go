package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/curamind/curamind/internal/client/api"
	"github.com/curamind/curamind/internal/client/poll"
	"github.com/curamind/curamind/internal/client/session"
	"github.com/curamind/curamind/internal/config"
	"github.com/curamind/curamind/internal/contract"
)

// app is what every flow needs: one transport, one session, one console.
type app struct {
	cfg     *config.ClientConfig
	logger  zerolog.Logger
	client  *api.Client
	session *session.Store
	console *console
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "curamind",
		Short:         "CuraMind terminal client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("email", "", "Login email (prompted when empty)")

	rootCmd.AddCommand(flowCmd("patient", "Run triage and consult a doctor", contract.RolePatient, runPatient))
	rootCmd.AddCommand(flowCmd("doctor", "Work the consultation queue", contract.RoleDoctor, runDoctor))
	rootCmd.AddCommand(flowCmd("admin", "Review doctor registrations", contract.RoleAdmin, runAdmin))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func flowCmd(use, short string, role contract.Role, run func(context.Context, *app) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			if err := a.login(ctx, email, role); err != nil {
				return err
			}
			defer a.session.Logout(context.Background(), a.client)
			return run(ctx, a)
		},
	}
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	client, err := api.New(cfg.APIURL, api.Options{
		Timeout: cfg.HTTPTimeout,
		MaxRPS:  cfg.MaxRPS,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	store := session.NewStore(cfg.TriageCacheTTL)
	store.Watch(client)

	return &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		session: store,
		console: newConsole(ctx, os.Stdin, os.Stdout),
	}, nil
}

func (a *app) login(ctx context.Context, email string, role contract.Role) error {
	var err error
	if email == "" {
		if email, err = a.console.ask(ctx, "Email: "); err != nil {
			return err
		}
	}
	password, err := a.console.ask(ctx, "Password: ")
	if err != nil {
		return err
	}
	p, err := a.session.Login(ctx, a.client, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if p.Role != role {
		a.session.Logout(ctx, a.client)
		return fmt.Errorf("%s is a %s account, not %s", p.Email, p.Role, role)
	}
	a.console.say("Welcome, %s.", p.DisplayName)

	if p.FirstLogin {
		a.console.say("This is your first login. Please choose a new password.")
		for {
			pw, err := a.console.ask(ctx, "New password (min 8 characters): ")
			if err != nil {
				return err
			}
			if err := a.client.ChangePassword(ctx, pw); err != nil {
				a.console.say("Could not change password: %v", describe(err))
				continue
			}
			a.console.say("Password updated.")
			break
		}
	}
	return nil
}

func (a *app) loop(name string, interval time.Duration) poll.Loop {
	return poll.Loop{
		Name:        name,
		Interval:    interval,
		Immediate:   true,
		MaxDuration: a.cfg.MaxPollDuration,
		Logger:      a.logger,
	}
}

func (a *app) statusLoop() poll.Loop {
	return a.loop("consultation_status", a.cfg.StatusPollInterval)
}

func (a *app) queueLoop() poll.Loop {
	return a.loop("doctor_queue", a.cfg.QueuePollInterval)
}

func (a *app) chatLoop() poll.Loop {
	return a.loop("chat", a.cfg.ChatPollInterval)
}

// describe turns client errors into something a person can act on.
func describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, api.ErrUnauthenticated):
		return "your session has expired, please log in again"
	case api.IsTransient(err):
		return "could not reach the server, please try again"
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
