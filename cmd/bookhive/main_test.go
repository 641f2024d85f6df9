package main

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-bookhive"
	"github.com/goliatone/go-bookhive/bookhivetest"
)

var cliNow = time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)

type cli struct {
	t      *testing.T
	srv    *bookhivetest.Server
	config string
}

func newCLI(t *testing.T, opts ...bookhivetest.Option) *cli {
	t.Helper()

	opts = append([]bookhivetest.Option{
		bookhivetest.WithUser("alice", "alice@example.com", "secret1"),
		bookhivetest.WithClock(func() time.Time { return cliNow }),
	}, opts...)
	srv := bookhivetest.New(opts...)

	dir := t.TempDir()
	t.Setenv("BOOKHIVE_BASE_URL", srv.BaseURL())
	t.Setenv("BOOKHIVE_DB_PATH", filepath.Join(dir, "cli.db"))
	t.Setenv("BOOKHIVE_PASSWORD", "")

	return &cli{
		t:      t,
		srv:    srv,
		config: filepath.Join(dir, "missing.json"),
	}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()

	var stdout, stderr bytes.Buffer
	err := run(context.Background(),
		append([]string{"-config", c.config}, args...),
		&stdout, &stderr,
		withHTTPClient(c.srv.Client()),
		withNow(func() time.Time { return cliNow }),
	)
	return stdout.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "bookhive %v", args)
	return out
}

func TestRunRequiresCommand(t *testing.T) {
	c := newCLI(t)

	_, err := c.run()
	assert.True(t, bookhive.IsValidation(err))

	_, err = c.run("shelve")
	assert.True(t, bookhive.IsValidation(err))
}

func TestRunLoginFailure(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("login", "-username", "alice", "-password", "wrong")
	require.Error(t, err)
	assert.True(t, bookhive.IsRequestFailed(err))
	assert.Equal(t, "User not found", bookhive.ErrorMessage(err))

	_, err = c.run("books", "list")
	assert.True(t, bookhive.IsAuthRequired(err))
}

func TestRunSessionPersistsAcrossInvocations(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("login", "-username", "alice", "-password", "secret1")
	assert.Equal(t, "Logged in as alice\n", out)

	out = c.mustRun("whoami")
	assert.Contains(t, out, "alice@example.com")

	out = c.mustRun("whoami", "-remote")
	assert.Contains(t, out, "alice")

	last, ok := c.srv.LastRequest(http.MethodGet, "/api/auth/me")
	require.True(t, ok)
	assert.NotEmpty(t, last.Authorization)

	assert.Equal(t, "Logged out\n", c.mustRun("logout"))

	_, err := c.run("whoami")
	assert.True(t, bookhive.IsAuthRequired(err))
}

func TestRunExpiredSession(t *testing.T) {
	c := newCLI(t)
	c.mustRun("login", "-username", "alice", "-password", "secret1")

	c.srv.ExpireSessions()

	_, err := c.run("books", "list")
	assert.True(t, bookhive.IsAuthRequired(err))
}

func TestRunBookCommands(t *testing.T) {
	c := newCLI(t)
	c.mustRun("login", "-username", "alice", "-password", "secret1")

	out := c.mustRun("books", "add", "-title", "Dune", "-author", "Frank Herbert", "-genre", "Science Fiction")
	assert.Contains(t, out, "Dune")

	book, ok := c.srv.Book(1)
	require.True(t, ok)
	assert.Equal(t, bookhive.BookStatusAvailable, book.Status)

	out = c.mustRun("books", "get", "1")
	assert.Contains(t, out, "Frank Herbert")

	c.mustRun("books", "update", "1", "-genre", "Sci-Fi")
	book, _ = c.srv.Book(1)
	assert.Equal(t, "Sci-Fi", book.Genre)
	assert.Equal(t, "Dune", book.Title)

	c.mustRun("books", "status", "1", "maintenance")
	book, _ = c.srv.Book(1)
	assert.Equal(t, bookhive.BookStatusMaintenance, book.Status)

	_, err := c.run("books", "transition", "1", "Borrowed")
	assert.True(t, bookhive.IsInvalidTransition(err))

	c.mustRun("books", "transition", "1", "Borrowed", "-force", "-reason", "staff pick")
	book, _ = c.srv.Book(1)
	assert.Equal(t, bookhive.BookStatusBorrowed, book.Status)

	_, err = c.run("books", "status", "1", "Lost")
	assert.True(t, bookhive.IsValidation(err))

	assert.Equal(t, "Book 1 deleted\n", c.mustRun("books", "delete", "1"))

	_, err = c.run("books", "get", "1")
	assert.True(t, bookhive.IsNotFound(err))

	_, err = c.run("books", "get", "abc")
	assert.True(t, bookhive.IsValidation(err))
}

func TestRunRentalCommands(t *testing.T) {
	c := newCLI(t, bookhivetest.WithBooks(seedBooks()...))
	c.mustRun("login", "-username", "alice", "-password", "secret1")

	c.mustRun("rentals", "rent", "-book", "1", "-days", "7")

	rentals := c.srv.Rentals()
	require.Len(t, rentals, 1)
	assert.Equal(t, "alice", rentals[0].Username)
	assert.Equal(t, "2024-01-01", rentals[0].RentalDate)
	assert.Equal(t, "2024-01-08", rentals[0].ReturnDate)

	book, _ := c.srv.Book(1)
	assert.Equal(t, bookhive.BookStatusBorrowed, book.Status)

	c.mustRun("rentals", "update", "1", "-return-date", "2024-01-15")
	rentals = c.srv.Rentals()
	assert.Equal(t, "2024-01-15", rentals[0].ReturnDate)

	out := c.mustRun("rentals", "list")
	assert.Contains(t, out, "2024-01-15")

	c.mustRun("rentals", "return", "1")
	book, _ = c.srv.Book(1)
	assert.Equal(t, bookhive.BookStatusAvailable, book.Status)
}

func TestRunRentalLeftInconsistent(t *testing.T) {
	c := newCLI(t, bookhivetest.WithBooks(seedBooks()...))
	c.mustRun("login", "-username", "alice", "-password", "secret1")

	c.srv.FailNext(http.MethodPut, "/api/books/2/status", http.StatusInternalServerError, "status store down")

	_, err := c.run("rentals", "rent", "-book", "2", "-date", "2024-03-01")
	require.Error(t, err)
	assert.True(t, bookhive.IsRentalInconsistent(err))

	assert.Len(t, c.srv.Rentals(), 1)
	book, _ := c.srv.Book(2)
	assert.Equal(t, bookhive.BookStatusAvailable, book.Status)
}

func TestRunRentalCompensated(t *testing.T) {
	c := newCLI(t, bookhivetest.WithBooks(seedBooks()...))
	t.Setenv("BOOKHIVE_COMPENSATE", "true")
	c.mustRun("login", "-username", "alice", "-password", "secret1")

	c.srv.FailNext(http.MethodPut, "/api/books/2/status", http.StatusInternalServerError, "status store down")

	_, err := c.run("rentals", "rent", "-book", "2", "-date", "2024-03-01")
	require.Error(t, err)
	assert.False(t, bookhive.IsRentalInconsistent(err))

	rentals := c.srv.Rentals()
	require.Len(t, rentals, 1)
	assert.Equal(t, rentals[0].RentalDate, rentals[0].ReturnDate)
}

func TestRunRegister(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("register", "-username", "bob", "-email", "bob@example.com", "-password", "hunter22", "-name", "Bob")
	assert.Equal(t, "User registered at 2\n", out)

	_, err := c.run("register", "-username", "bob", "-email", "other@example.com", "-password", "hunter22")
	require.Error(t, err)
	assert.Equal(t, "Username already exists", bookhive.ErrorMessage(err))

	assert.Equal(t, "Logged in as bob\n", c.mustRun("login", "-username", "bob", "-password", "hunter22"))
}
