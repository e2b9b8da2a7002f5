// Command bk is the bookly command line client.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/bookly/internal/app"
	"github.com/and161185/bookly/internal/config"
	"github.com/and161185/bookly/internal/errs"
	"github.com/and161185/bookly/internal/logging"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const (
	exitOK    = 0
	exitErr   = 1
	exitUsage = 2
)

// errUsage marks a bad invocation; the message is printed with the usage hint.
var errUsage = errors.New("usage")

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// cli holds the process streams and seams swapped by tests.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	loadConfig func() (config.Config, error)
	newLogger  func(cfg config.Config) (*zap.Logger, error)
	now        func() time.Time

	app *app.App
	in  *bufio.Reader
}

// command runs with an initialized app.
type command func(ctx context.Context, c *cli, args []string) error

var commands = map[string]command{
	"register":     cmdRegister,
	"login":        cmdLogin,
	"logout":       cmdLogout,
	"whoami":       cmdWhoami,
	"items":        cmdItems,
	"item":         cmdItem,
	"item-add":     cmdItemAdd,
	"item-edit":    cmdItemEdit,
	"item-rm":      cmdItemRm,
	"stats":        cmdStats,
	"availability": cmdAvailability,
	"book":         cmdBook,
	"bookings":     cmdBookings,
	"approve":      cmdApprove,
	"reject":       cmdReject,
	"slots":        cmdSlots,
	"slot-add":     cmdSlotAdd,
	"slot-rm":      cmdSlotRm,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	c := &cli{
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		loadConfig: func() (config.Config, error) { return config.Load() },
		newLogger:  func(cfg config.Config) (*zap.Logger, error) { return logging.New(cfg.LogLevel, cfg.LogDev) },
		now:        time.Now,
	}
	code := c.run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func (c *cli) usage() {
	fmt.Fprint(c.stderr, `bk: bookly client
Usage:
  bk [-api URL] [-timeout D] <cmd> [args]

Session:
  register  -name <name> -email <email> [-password <pw>]
  login     -email <email> [-password <pw>] [-remember]
  logout
  whoami

Items:
  items     [-q text] [-status active|inactive|pending|archived|all] [-page N] [-limit N] [-json]
  item      -id <id> [-json]
  item-add  -name <name> [-desc text] [-status s] [-category c] [-tags a,b]
  item-edit -id <id> [-name n] [-desc text] [-status s] [-category c] [-tags a,b]
  item-rm   -id <id>
  stats

Calendar:
  availability -date YYYY-MM-DD
  book      (interactive) or -name -email [-phone] -date -start HH:MM -end HH:MM [-message]
  bookings  [-status pending|approved|rejected] [-past] [-json]
  approve   -id <id>
  reject    -id <id>
  slots     [-json]
  slot-add  -date YYYY-MM-DD -start HH:MM -end HH:MM
  slot-rm   -id <id>

  version
`)
}

// run dispatches one invocation and returns the exit code.
func (c *cli) run(ctx context.Context, args []string) int {
	global := flag.NewFlagSet("bk", flag.ContinueOnError)
	global.SetOutput(c.stderr)
	global.Usage = c.usage
	api := global.String("api", "", "backend base URL (overrides BOOKLY_API_URL)")
	timeout := global.Duration("timeout", 0, "per-request timeout (overrides BOOKLY_TIMEOUT)")
	if err := global.Parse(args); err != nil {
		return exitUsage
	}
	if global.NArg() < 1 {
		c.usage()
		return exitUsage
	}
	name, rest := global.Arg(0), global.Args()[1:]

	if name == "version" {
		fmt.Fprintf(c.stdout, "bk %s (%s)\n", version, buildDate)
		return exitOK
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(c.stderr, "unknown command %q\n", name)
		c.usage()
		return exitUsage
	}

	cfg, err := c.loadConfig()
	if err != nil {
		fmt.Fprintln(c.stderr, err)
		return exitErr
	}
	if *api != "" {
		cfg.APIURL = *api
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	log, err := c.newLogger(cfg)
	if err != nil {
		fmt.Fprintln(c.stderr, err)
		return exitErr
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		fmt.Fprintln(c.stderr, err)
		return exitErr
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("close", zap.Error(err))
		}
	}()
	c.app = a

	return c.report(cmd(ctx, c, rest))
}

// report prints err for the user and maps it to an exit code.
func (c *cli) report(err error) int {
	if err == nil {
		return exitOK
	}
	var ve *errs.ValidationError
	var ae *errs.APIError
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintln(c.stderr, err)
		fmt.Fprintln(c.stderr, "run `bk` without arguments for usage")
		return exitUsage
	case errors.Is(err, errs.ErrSessionExpired):
		fmt.Fprintln(c.stderr, "session expired; run `bk login`")
	case errors.Is(err, errNotLoggedIn):
		fmt.Fprintln(c.stderr, "not logged in; run `bk login`")
	case errors.As(err, &ve):
		fmt.Fprintln(c.stderr, "invalid input:")
		printFields(c.stderr, ve.Fields)
	case errors.As(err, &ae):
		fmt.Fprintf(c.stderr, "%s: %s\n", errs.Kind(err), ae.Error())
		if len(ae.Errors) > 0 {
			fields := make(map[string]string, len(ae.Errors))
			for f, msgs := range ae.Errors {
				if len(msgs) > 0 {
					fields[f] = msgs[0]
				}
			}
			printFields(c.stderr, fields)
		}
	default:
		fmt.Fprintf(c.stderr, "%s: %v\n", errs.Kind(err), err)
	}
	return exitErr
}

func printFields(w io.Writer, fields map[string]string) {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)
	for _, f := range names {
		fmt.Fprintf(w, "  %s: %s\n", f, fields[f])
	}
}

var errNotLoggedIn = errors.New("not logged in")

// requireSession fails fast instead of letting the backend answer 401.
func (c *cli) requireSession() error {
	if !c.app.Session.IsAuthenticated() {
		return errNotLoggedIn
	}
	return nil
}

func (c *cli) printJSON(v any) {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// newFlags returns a subcommand flag set that reports errors instead of exiting.
func (c *cli) newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usageErr("%s: %v", fs.Name(), err)
	}
	if fs.NArg() > 0 {
		return usageErr("%s: unexpected argument %q", fs.Name(), fs.Arg(0))
	}
	return nil
}
