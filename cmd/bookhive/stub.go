package main

import (
	"fmt"
	"io"

	"github.com/goliatone/go-bookhive"
	"github.com/goliatone/go-bookhive/bookhivetest"
)

func seedBooks() []bookhive.Book {
	return []bookhive.Book{
		{Title: "Dune", Author: "Frank Herbert", Genre: "Science Fiction", Status: bookhive.BookStatusAvailable},
		{Title: "Emma", Author: "Jane Austen", Genre: "Classic", Status: bookhive.BookStatusAvailable},
		{Title: "Neuromancer", Author: "William Gibson", Genre: "Cyberpunk", Status: bookhive.BookStatusMaintenance},
	}
}

// runStub serves the in-memory catalog API until the process is signaled
func runStub(args []string, cfg *Config, logger bookhive.Logger, stdout io.Writer) error {
	fs := newFlagSet("stub")
	addr := fs.String("addr", cfg.StubAddr, "listen address")
	username := fs.String("username", "", "seed account username")
	email := fs.String("email", "", "seed account email")
	password := fs.String("password", envOr("BOOKHIVE_PASSWORD", ""), "seed account password")
	seed := fs.Bool("seed", false, "load a few sample books")
	if err := fs.Parse(args); err != nil {
		return bookhive.ErrValidation(err.Error(), nil)
	}

	opts := []bookhivetest.Option{
		bookhivetest.WithSigningKey(cfg.StubSigningKey),
		bookhivetest.WithLogger(logger),
		bookhivetest.WithDebug(cfg.Debug),
	}
	if *username != "" {
		if *password == "" {
			return bookhive.ErrValidation("a password is required to seed an account", map[string]any{
				"username": *username,
			})
		}
		opts = append(opts, bookhivetest.WithUser(*username, *email, *password))
	}
	if *seed {
		opts = append(opts, bookhivetest.WithBooks(seedBooks()...))
	}

	srv := bookhivetest.New(opts...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(*addr)
	}()

	fmt.Fprintf(stdout, "stub API listening on %s\n", *addr)

	select {
	case err := <-errCh:
		return err
	case sig := <-exitSignal():
		logger.Info("received %s, shutting down", sig)
	}

	return srv.Shutdown()
}
