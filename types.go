package bookhive

import (
	"context"
	"fmt"
)

// Logger is the format style logger used across the package
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// TokenStore persists the session credential
type TokenStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Gateway dispatches authenticated JSON requests
type Gateway interface {
	Request(ctx context.Context, method, path string, body, out any) error
}

// Catalog holds the book operations
type Catalog interface {
	ListBooks(ctx context.Context) ([]Book, error)
	GetBook(ctx context.Context, id int64) (*Book, error)
	CreateBook(ctx context.Context, draft BookDraft) (*Book, error)
	UpdateBook(ctx context.Context, id int64, draft BookDraft) (*Book, error)
	UpdateBookStatus(ctx context.Context, id int64, status BookStatus) (*Book, error)
	DeleteBook(ctx context.Context, id int64) error
}

// Rentals holds the rental operations
type Rentals interface {
	ListRentals(ctx context.Context) ([]Rental, error)
	GetRental(ctx context.Context, id int64) (*Rental, error)
	UpdateRental(ctx context.Context, id int64, draft RentalDraft) (*Rental, error)
	RentBook(ctx context.Context, req RentRequest) (*Rental, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] BOOKHIVE "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] BOOKHIVE "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] BOOKHIVE "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] BOOKHIVE "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
