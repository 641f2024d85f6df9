package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goliatone/go-bookhive"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	username := fs.String("username", "", "account username")
	password := fs.String("password", envOr("BOOKHIVE_PASSWORD", ""), "account password")
	if err := fs.Parse(args); err != nil {
		return bookhive.ErrValidation(err.Error(), nil)
	}

	identity, err := a.client.Login(ctx, *username, *password)
	if err != nil {
		return err
	}

	return a.printf("Logged in as %s", firstNonEmpty(identity.Username, *username))
}

func (a *app) logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	return a.printf("Logged out")
}

func (a *app) whoami(ctx context.Context, args []string) error {
	fs := newFlagSet("whoami")
	remote := fs.Bool("remote", false, "ask the API instead of decoding the local token")
	if err := fs.Parse(args); err != nil {
		return bookhive.ErrValidation(err.Error(), nil)
	}

	if *remote {
		user, err := a.client.Me(ctx)
		if err != nil {
			return err
		}
		return a.print(user)
	}

	identity, ok := a.client.Identity(ctx)
	if !ok {
		return bookhive.ErrAuthRequired()
	}
	return a.print(identity)
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := newFlagSet("register")
	req := bookhive.RegisterRequest{}
	fs.StringVar(&req.Username, "username", "", "account username")
	fs.StringVar(&req.Email, "email", "", "account email")
	fs.StringVar(&req.Password, "password", envOr("BOOKHIVE_PASSWORD", ""), "account password")
	fs.StringVar(&req.Name, "name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return bookhive.ErrValidation(err.Error(), nil)
	}

	message, err := a.client.Register(ctx, req)
	if err != nil {
		return err
	}
	return a.printf("%s", message)
}

func (a *app) books(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return bookhive.ErrValidation("books requires a subcommand", nil)
	}

	switch sub, rest := args[0], args[1:]; sub {
	case "list":
		books, err := a.manager.ListBooks(ctx)
		if err != nil {
			return err
		}
		return a.print(books)

	case "get":
		id, _, err := parseID(rest)
		if err != nil {
			return err
		}
		book, err := a.manager.GetBook(ctx, id)
		if err != nil {
			return err
		}
		return a.print(book)

	case "add":
		fs := newFlagSet("books add")
		draft := bookhive.BookDraft{}
		status := fs.String("status", "", "initial status, defaults to Available")
		fs.StringVar(&draft.Title, "title", "", "book title")
		fs.StringVar(&draft.Author, "author", "", "book author")
		fs.StringVar(&draft.Genre, "genre", "", "book genre")
		if err := fs.Parse(rest); err != nil {
			return bookhive.ErrValidation(err.Error(), nil)
		}
		if *status != "" {
			parsed, err := parseStatus(*status)
			if err != nil {
				return err
			}
			draft.Status = parsed
		}
		book, err := a.manager.CreateBook(ctx, draft)
		if err != nil {
			return err
		}
		return a.print(book)

	case "update":
		id, flags, err := parseID(rest)
		if err != nil {
			return err
		}
		current, err := a.manager.GetBook(ctx, id)
		if err != nil {
			return err
		}
		next := current.Draft()
		fs := newFlagSet("books update")
		status := fs.String("status", "", "new status")
		fs.StringVar(&next.Title, "title", next.Title, "book title")
		fs.StringVar(&next.Author, "author", next.Author, "book author")
		fs.StringVar(&next.Genre, "genre", next.Genre, "book genre")
		if err := fs.Parse(flags); err != nil {
			return bookhive.ErrValidation(err.Error(), nil)
		}
		if *status != "" {
			if next.Status, err = parseStatus(*status); err != nil {
				return err
			}
		}
		book, err := a.manager.EditBook(ctx, *current, next)
		if err != nil {
			return err
		}
		return a.print(book)

	case "status":
		id, status, err := parseIDAndStatus(rest)
		if err != nil {
			return err
		}
		book, err := a.manager.UpdateBookStatus(ctx, id, status)
		if err != nil {
			return err
		}
		return a.print(book)

	case "transition":
		id, status, err := parseIDAndStatus(rest)
		if err != nil {
			return err
		}
		fs := newFlagSet("books transition")
		force := fs.Bool("force", false, "skip the transition graph")
		reason := fs.String("reason", "", "reason recorded with the change")
		if err := fs.Parse(rest[2:]); err != nil {
			return bookhive.ErrValidation(err.Error(), nil)
		}
		book, err := a.manager.GetBook(ctx, id)
		if err != nil {
			return err
		}
		opts := []bookhive.TransitionOption{bookhive.WithTransitionReason(*reason)}
		if *force {
			opts = append(opts, bookhive.WithForceTransition())
		}
		book, err = a.manager.TransitionBook(ctx, book, status, opts...)
		if err != nil {
			return err
		}
		return a.print(book)

	case "delete":
		id, _, err := parseID(rest)
		if err != nil {
			return err
		}
		if err := a.manager.DeleteBook(ctx, id); err != nil {
			return err
		}
		return a.printf("Book %d deleted", id)

	default:
		return bookhive.ErrValidation(fmt.Sprintf("unknown books subcommand %q", sub), nil)
	}
}

func (a *app) rentals(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return bookhive.ErrValidation("rentals requires a subcommand", nil)
	}

	switch sub, rest := args[0], args[1:]; sub {
	case "list":
		rentals, err := a.manager.ListRentals(ctx)
		if err != nil {
			return err
		}
		return a.print(rentals)

	case "get":
		id, _, err := parseID(rest)
		if err != nil {
			return err
		}
		rental, err := a.manager.GetRental(ctx, id)
		if err != nil {
			return err
		}
		return a.print(rental)

	case "rent":
		fs := newFlagSet("rentals rent")
		bookID := fs.Int64("book", 0, "book id")
		username := fs.String("username", "", "renter, defaults to the logged in user")
		date := fs.String("date", "", "rental date YYYY-MM-DD, defaults to today")
		days := fs.Int("days", 7, "rental duration in days")
		if err := fs.Parse(rest); err != nil {
			return bookhive.ErrValidation(err.Error(), nil)
		}

		rentalDate := a.now()
		if *date != "" {
			parsed, err := bookhive.ParseDate(*date)
			if err != nil {
				return bookhive.ErrValidation("invalid rental date", map[string]any{"date": *date})
			}
			rentalDate = parsed
		}

		renter := *username
		if renter == "" {
			if identity, ok := bookhive.IdentityFromContext(ctx); ok {
				renter = identity.Username
			}
		}

		rental, err := a.manager.RentBook(ctx, bookhive.RentRequest{
			BookID:       *bookID,
			Username:     renter,
			RentalDate:   rentalDate,
			DurationDays: *days,
		})
		if err != nil {
			if bookhive.IsRentalInconsistent(err) && rental != nil {
				a.logger.Warn("rental %d exists but book %d is not marked Borrowed", rental.ID, rental.BookID)
			}
			return err
		}
		return a.print(rental)

	case "update":
		id, flags, err := parseID(rest)
		if err != nil {
			return err
		}
		current, err := a.manager.GetRental(ctx, id)
		if err != nil {
			return err
		}
		draft := current.Draft()
		fs := newFlagSet("rentals update")
		fs.Int64Var(&draft.BookID, "book", draft.BookID, "book id")
		fs.StringVar(&draft.Username, "username", draft.Username, "renter")
		fs.StringVar(&draft.RentalDate, "rental-date", draft.RentalDate, "rental date YYYY-MM-DD")
		fs.StringVar(&draft.ReturnDate, "return-date", draft.ReturnDate, "return date YYYY-MM-DD")
		if err := fs.Parse(flags); err != nil {
			return bookhive.ErrValidation(err.Error(), nil)
		}
		rental, err := a.manager.UpdateRental(ctx, id, draft)
		if err != nil {
			return err
		}
		return a.print(rental)

	case "return":
		id, _, err := parseID(rest)
		if err != nil {
			return err
		}
		book, err := a.manager.ReturnBook(ctx, id)
		if err != nil {
			return err
		}
		return a.print(book)

	default:
		return bookhive.ErrValidation(fmt.Sprintf("unknown rentals subcommand %q", sub), nil)
	}
}

func parseID(args []string) (int64, []string, error) {
	if len(args) == 0 {
		return 0, nil, bookhive.ErrValidation("an id is required", nil)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, nil, bookhive.ErrValidation("id must be a positive integer", map[string]any{"id": args[0]})
	}
	return id, args[1:], nil
}

func parseIDAndStatus(args []string) (int64, bookhive.BookStatus, error) {
	id, rest, err := parseID(args)
	if err != nil {
		return 0, "", err
	}
	if len(rest) == 0 {
		return 0, "", bookhive.ErrValidation("a status is required", nil)
	}
	status, err := parseStatus(rest[0])
	return id, status, err
}

func parseStatus(s string) (bookhive.BookStatus, error) {
	status, ok := bookhive.ParseBookStatus(s)
	if !ok {
		names := []string{}
		for _, known := range bookhive.BookStatuses() {
			names = append(names, string(known))
		}
		return "", bookhive.ErrValidation("unknown status", map[string]any{
			"status":  s,
			"allowed": strings.Join(names, ", "),
		})
	}
	return status, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
