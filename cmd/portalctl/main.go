// portalctl provisions principals and performs administrative actions
// against the portal's data store.
//
//	portalctl principal create --email a@b.c --name "Ada" --password ... --role handler
//	portalctl principal list
//	portalctl request list --as admin@b.c
//	portalctl request assign --as admin@b.c --request <id> --to handler@b.c
//	portalctl migrate
//
// Configuration comes from the same environment variables as the server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"incorp/internal/app"
	authModels "incorp/internal/auth/models"
	"incorp/internal/platform/config"
	"incorp/internal/platform/logger"
	"incorp/internal/platform/postgres"
	"incorp/pkg/domain"
	"incorp/pkg/requestcontext"
)

// errUsage marks errors that should print the usage text.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: portalctl <command> [flags]

Commands:
  principal create   provision an admin or handler account
  principal list     list handler accounts
  request list       list requests visible to a principal
  request assign     assign a request to a handler
  migrate            apply pending schema migrations
`)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.NewWithWriter(stderr, cfg.LogLevel)

	switch args[0] {
	case "migrate":
		return migrate(ctx, cfg, log)
	case "principal", "request":
		if len(args) < 2 {
			return errUsage
		}
	default:
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}

	a, err := app.Build(ctx, cfg, log, prometheus.NewRegistry(), app.SkipMigrations())
	if err != nil {
		return err
	}
	defer a.Close()

	cmd := args[0] + " " + args[1]
	rest := args[2:]
	switch cmd {
	case "principal create":
		return createPrincipal(ctx, a, rest, stdout)
	case "principal list":
		return listHandlers(ctx, a, stdout)
	case "request list":
		return listRequests(ctx, a, rest, stdout)
	case "request assign":
		return assignRequest(ctx, a, rest, stdout)
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

func migrate(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	if cfg.StoreDriver != config.StoreDriverPostgres {
		return errors.New("migrate requires STORE_DRIVER=postgres")
	}
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Migrate(db, log); err != nil {
		return err
	}
	log.InfoContext(ctx, "migrations complete")
	return nil
}

func createPrincipal(ctx context.Context, a *app.App, args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("principal create", pflag.ContinueOnError)
	email := fs.String("email", "", "account email (required)")
	name := fs.String("name", "", "display name")
	password := fs.String("password", "", "initial password, 8 to 72 bytes (required)")
	role := fs.String("role", string(domain.RoleHandler), "admin or handler")
	if err := fs.Parse(args); err != nil {
		return err
	}
	r, err := domain.ParseRole(*role)
	if err != nil {
		return err
	}
	p, err := a.Auth.CreatePrincipal(ctx, authModels.NewPrincipal{
		Email:       *email,
		DisplayName: *name,
		Password:    *password,
		Role:        r,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "created %s %s (%s)\n", p.Role, p.Email, p.ID)
	return nil
}

func listHandlers(ctx context.Context, a *app.App, stdout io.Writer) error {
	handlers, err := a.Auth.ListHandlers(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME")
	for _, h := range handlers {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", h.ID, h.Email, h.DisplayName)
	}
	return tw.Flush()
}

// actAs resolves the principal whose row policy applies to the command.
func actAs(ctx context.Context, a *app.App, email string) (context.Context, error) {
	if email == "" {
		return nil, errors.New("--as is required")
	}
	p, err := a.Auth.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("resolve --as %s: %w", email, err)
	}
	return requestcontext.WithPrincipal(ctx, requestcontext.Principal{ID: p.ID, Role: p.Role}), nil
}

func listRequests(ctx context.Context, a *app.App, args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("request list", pflag.ContinueOnError)
	as := fs.String("as", "", "email of the acting principal (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx, err := actAs(ctx, a, *as)
	if err != nil {
		return err
	}
	rows, err := a.Intake.ListAll(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOMPANY\tSTATUS\tASSIGNED\tCREATED")
	for _, r := range rows {
		assigned := "-"
		if r.AssignedTo != nil {
			assigned = r.AssignedTo.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.CompanyName, r.Status, assigned, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func assignRequest(ctx context.Context, a *app.App, args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("request assign", pflag.ContinueOnError)
	as := fs.String("as", "", "email of the acting admin (required)")
	requestID := fs.String("request", "", "request id (required)")
	to := fs.String("to", "", "email of the handler receiving the request (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := domain.ParseRequestID(*requestID)
	if err != nil {
		return err
	}
	if *to == "" {
		return errors.New("--to is required")
	}
	ctx, err = actAs(ctx, a, *as)
	if err != nil {
		return err
	}
	assignee, err := a.Auth.FindByEmail(ctx, *to)
	if err != nil {
		return fmt.Errorf("resolve --to %s: %w", *to, err)
	}
	if err := a.Intake.Assign(ctx, id, assignee.ID); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "assigned %s to %s\n", id, assignee.Email)
	return nil
}
