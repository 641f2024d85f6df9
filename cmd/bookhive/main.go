package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-print"

	"github.com/goliatone/go-bookhive"
	"github.com/goliatone/go-bookhive/activitymap"
	"github.com/goliatone/go-bookhive/repository"
)

const usage = `usage: bookhive [-config file] [-v] <command> [args]

commands:
  login      -username U -password P
  logout
  whoami     [-remote]
  register   -username U -email E -password P [-name N]
  books      list | get ID | add | update ID | status ID STATUS | transition ID STATUS | delete ID
  rentals    list | get ID | rent | update ID | return ID
  stub       [-addr :8080] [-username U -email E -password P] [-seed]
`

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", bookhive.ErrorMessage(err))
		if bookhive.IsAuthRequired(err) {
			fmt.Fprintln(os.Stderr, "not logged in or session expired, run: bookhive login")
		}
		os.Exit(1)
	}
}

type runOptions struct {
	httpClient *http.Client
	now        func() time.Time
}

type runOption func(*runOptions)

func withHTTPClient(hc *http.Client) runOption {
	return func(o *runOptions) {
		o.httpClient = hc
	}
}

func withNow(now func() time.Time) runOption {
	return func(o *runOptions) {
		o.now = now
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, opts ...runOption) error {
	options := runOptions{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	fs := flag.NewFlagSet("bookhive", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }

	configPath := fs.String("config", envOr("BOOKHIVE_CONFIG", "bookhive.json"), "path to a JSON config file")
	verbose := fs.Bool("v", false, "print activity events to stderr")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return bookhive.ErrValidation("a command is required", nil)
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}

	logger := newLogger("cli", cfg.Debug)
	command, rest := fs.Arg(0), fs.Args()[1:]

	if command == "stub" {
		return runStub(rest, cfg, logger, stdout)
	}

	a, err := newApp(ctx, cfg, logger, stdout, stderr, *verbose, options)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx = a.actorContext(ctx)

	switch command {
	case "login":
		return a.login(ctx, rest)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami(ctx, rest)
	case "register":
		return a.register(ctx, rest)
	case "books":
		return a.books(ctx, rest)
	case "rentals":
		return a.rentals(ctx, rest)
	default:
		fs.Usage()
		return bookhive.ErrValidation(fmt.Sprintf("unknown command %q", command), nil)
	}
}

type app struct {
	cfg     *Config
	logger  bookhive.Logger
	out     io.Writer
	repo    *repository.Manager
	session *bookhive.Session
	client  *bookhive.Client
	manager *bookhive.Manager
	now     func() time.Time
}

func newApp(ctx context.Context, cfg *Config, logger bookhive.Logger, stdout, stderr io.Writer, verbose bool, options runOptions) (*app, error) {
	db, err := repository.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	repo := repository.NewManager(db)
	repo.MustValidate()

	sink := bookhive.ActivitySink(nil)
	if verbose {
		sink = activitymap.NewSink(func(_ context.Context, n activitymap.Normalized) error {
			_, err := fmt.Fprintln(stderr, print.MaybePrettyJSON(n))
			return err
		}, activitymap.WithDefaultChannel("cli"), activitymap.WithClock(options.now))
	}

	httpClient := options.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	session := bookhive.NewSession(repo.Credentials(),
		bookhive.WithTokenKey(cfg.TokenKey),
		bookhive.WithSessionClock(options.now),
	)

	client := bookhive.NewClient(cfg.BaseURL, session,
		bookhive.WithHTTPClient(httpClient),
		bookhive.WithClientLogger(logger),
		bookhive.WithClientActivitySink(sink),
	)

	manager := bookhive.NewManager(client,
		bookhive.WithLogger(logger),
		bookhive.WithActivitySink(sink),
		bookhive.WithClock(options.now),
		bookhive.WithRentCompensation(cfg.Compensate),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		out:     stdout,
		repo:    repo,
		session: session,
		client:  client,
		manager: manager,
		now:     options.now,
	}, nil
}

func (a *app) Close() error {
	return a.repo.Close()
}

func (a *app) actorContext(ctx context.Context) context.Context {
	identity, ok := a.session.Identity(ctx)
	if !ok {
		return ctx
	}
	ctx = bookhive.WithIdentityContext(ctx, identity)
	return bookhive.WithActorContext(ctx, bookhive.ActorFromIdentity(identity))
}

func (a *app) print(v any) error {
	_, err := fmt.Fprintln(a.out, print.MaybePrettyJSON(v))
	return err
}

func (a *app) printf(format string, args ...any) error {
	_, err := fmt.Fprintf(a.out, format+"\n", args...)
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func exitSignal() <-chan os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return ch
}
