// Package cli implements the bp command-line client.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"bp-tracker/internal/client"
	"bp-tracker/internal/client/feed"
	"bp-tracker/internal/common"
	"bp-tracker/internal/model"
	"bp-tracker/internal/query"
)

type App struct {
	Client *client.Client
	In     *bufio.Reader
	Out    io.Writer
	Err    io.Writer
	Now    func() time.Time
}

func (a *App) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

const usage = `usage: bp [flags] <command> [args]

commands:
  setup <url>          point the client at a server
  login [-code CODE]   exchange the access code for a token
  logout               forget the stored code and token
  status               show the stored session
  users                list known names
  list [flags]         list records (default: last 30 days, first name)
  add -sys N -dia N [-pulse N] -name NAME
  delete <id>          delete a record
  watch                stream record changes
`

// Run executes one command and returns a user-facing error.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.Err, usage)
		return errors.New("no command given")
	}

	sess, err := a.Client.Sessions().Load(ctx)
	if err != nil {
		return err
	}
	cmd, rest := args[0], args[1:]
	if sess.FirstRun() && cmd != "setup" && cmd != "help" {
		return errors.New("no server configured yet, run: bp setup <url>")
	}

	switch cmd {
	case "help":
		fmt.Fprint(a.Out, usage)
		return nil
	case "setup":
		return a.setup(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "logout":
		if err := a.Client.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.Out, "logged out")
		return nil
	case "status":
		return a.status(ctx)
	case "users":
		return a.users(ctx)
	case "list":
		return a.list(ctx, rest)
	case "add":
		return a.add(ctx, rest)
	case "delete":
		return a.delete(ctx, rest)
	case "watch":
		return a.watch(ctx)
	default:
		fmt.Fprint(a.Err, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *App) setup(ctx context.Context, args []string) error {
	var raw string
	if len(args) > 0 {
		raw = args[0]
	} else {
		line, err := readLine(a.In, "Server URL: ", a.Out)
		if err != nil {
			return err
		}
		raw = line
	}
	u, err := a.Client.SetBaseURL(ctx, raw)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "server set to %s\n", u)
	return nil
}

func (a *App) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.Err)
	code := fs.String("code", "", "access code (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *code == "" {
		secret, err := readSecret(a.In, "Access code: ", a.Out)
		if err != nil {
			return err
		}
		*code = secret
	}
	if err := a.Client.Login(ctx, *code); err != nil {
		return describe(err)
	}
	fmt.Fprintln(a.Out, "logged in")
	return nil
}

func (a *App) status(ctx context.Context) error {
	sess, err := a.Client.Sessions().Load(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "server:    %s\n", sess.BaseURL)
	fmt.Fprintf(a.Out, "logged in: %t\n", sess.Authenticated())
	fmt.Fprintf(a.Out, "code kept: %t\n", sess.AuthCode != "")
	return nil
}

func (a *App) users(ctx context.Context) error {
	users, err := a.Client.Users(ctx)
	if err != nil {
		return describe(err)
	}
	for _, u := range users {
		fmt.Fprintln(a.Out, u)
	}
	return nil
}

func (a *App) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(a.Err)
	name := fs.String("name", "", "only records for this name")
	start := fs.String("start", "", "inclusive start (YYYY-MM-DD or RFC 3339)")
	end := fs.String("end", "", "inclusive end (YYYY-MM-DD or RFC 3339)")
	size := fs.Int("size", query.DefaultPageSize, "page size")
	all := fs.Bool("all", false, "keep loading until the last page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	f := feed.New(a.Client, feed.WithPageSize(*size), feed.WithClock(a.now))
	custom := *name != "" || *start != "" || *end != ""

	var err error
	if custom {
		err = f.Apply(ctx, query.Filter{Start: *start, End: *end, Name: *name})
	} else {
		users, uerr := a.Client.Users(ctx)
		if uerr != nil {
			return describe(uerr)
		}
		f.SetUsers(users)
		err = f.Reset(ctx)
	}
	if err != nil {
		return describe(err)
	}

	for *all {
		more, err := f.LoadMore(ctx)
		if err != nil {
			return describe(err)
		}
		if !more {
			break
		}
	}

	st := f.State()
	printRecords(a.Out, st.Records)
	fmt.Fprintf(a.Out, "showing %d of %d (page %d/%d)\n", len(st.Records), st.Meta.Total, st.Meta.Page, st.Meta.TotalPages)
	return nil
}

func (a *App) add(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(a.Err)
	sys := fs.Int("sys", 0, "systolic mmHg")
	dia := fs.Int("dia", 0, "diastolic mmHg")
	pulse := fs.Int("pulse", 0, "pulse bpm (optional)")
	name := fs.String("name", "", "whose reading this is")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rec := model.NewRecord{Systolic: *sys, Diastolic: *dia, Name: *name}
	if *pulse != 0 {
		rec.Pulse = pulse
	}
	created, err := a.Client.CreateRecord(ctx, rec)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(a.Out, "saved record %d at %s\n", created.ID, created.Date)
	return nil
}

func (a *App) delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: bp delete <id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid id %q", args[0])
	}
	if err := a.Client.DeleteRecord(ctx, id); err != nil {
		return describe(err)
	}
	fmt.Fprintf(a.Out, "deleted record %d\n", id)
	return nil
}

func (a *App) watch(ctx context.Context) error {
	fmt.Fprintln(a.Out, "watching for changes, Ctrl-C to stop")
	err := a.Client.Subscribe(ctx, func(ev model.Event) {
		switch ev.Event {
		case model.EventRecordCreated:
			if ev.Record != nil {
				fmt.Fprintf(a.Out, "+ %s\n", formatRecord(*ev.Record))
			}
		case model.EventRecordDeleted:
			fmt.Fprintf(a.Out, "- record %d\n", ev.ID)
		}
	})
	return describe(err)
}

func printRecords(w io.Writer, records []model.Record) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tNAME\tBP\tPULSE")
	for _, r := range records {
		pulse := "-"
		if r.Pulse != nil {
			pulse = strconv.Itoa(*r.Pulse)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d/%d\t%s\n", r.ID, r.Date, r.Name, r.Systolic, r.Diastolic, pulse)
	}
	_ = tw.Flush()
}

func formatRecord(r model.Record) string {
	s := fmt.Sprintf("#%d %s %s %d/%d", r.ID, r.Date, r.Name, r.Systolic, r.Diastolic)
	if r.Pulse != nil {
		s += fmt.Sprintf(" pulse %d", *r.Pulse)
	}
	return s
}

// describe turns pipeline errors into the message shown to the user.
func describe(err error) error {
	if err == nil {
		return nil
	}
	var verr *common.ValidationError
	switch {
	case errors.As(err, &verr):
		return fmt.Errorf("invalid input: %s", verr.Error())
	case errors.Is(err, common.ErrUnauthorized):
		return errors.New("not logged in or the access code was rejected, run: bp login")
	case errors.Is(err, common.ErrNotFound):
		return errors.New("record not found")
	case errors.Is(err, common.ErrRateLimited):
		return errors.New("too many attempts, try again in a minute")
	case errors.Is(err, common.ErrNetwork):
		return fmt.Errorf("cannot reach the server: %s", strings.TrimPrefix(err.Error(), common.ErrNetwork.Error()+": "))
	case errors.Is(err, common.ErrServer):
		return errors.New("the server failed to handle the request")
	}
	return err
}
