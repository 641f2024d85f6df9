package bookhive

import (
	"context"
	"net/http"
)

const (
	pathRentalsAll = "/api/rentals/all"
	pathRentalsAdd = "/api/rentals/add"
)

// rentalResponse accepts either a rental or an acknowledgement body
type rentalResponse struct {
	Rental
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ListRentals returns every rental record
func (m *Manager) ListRentals(ctx context.Context) ([]Rental, error) {
	rentals := []Rental{}
	if err := m.gateway.Request(ctx, http.MethodGet, pathRentalsAll, nil, &rentals); err != nil {
		return nil, err
	}
	return rentals, nil
}

// GetRental fetches one rental
func (m *Manager) GetRental(ctx context.Context, id int64) (*Rental, error) {
	rental := &Rental{}
	if err := m.gateway.Request(ctx, http.MethodGet, rentalPath(id), nil, rental); err != nil {
		return nil, notFoundFrom(err, "rental", id)
	}
	if rental.ID == 0 {
		rental.ID = id
	}
	return rental, nil
}

// UpdateRental replaces every field of rental id
func (m *Manager) UpdateRental(ctx context.Context, id int64, draft RentalDraft) (*Rental, error) {
	if err := draft.Validate(); err != nil {
		return nil, validationError("invalid rental", err)
	}

	var resp rentalResponse
	if err := m.gateway.Request(ctx, http.MethodPut, rentalUpdatePath(id), draft, &resp); err != nil {
		return nil, notFoundFrom(err, "rental", id)
	}
	if err := ackError(resp.Error); err != nil {
		return nil, notFoundFrom(err, "rental", id)
	}

	rental := resolveRental(resp, draft.Rental(id))

	m.record(ctx, ActivityEvent{
		EventType: ActivityEventRentalUpdated,
		BookID:    rental.BookID,
		RentalID:  id,
	})

	return rental, nil
}

// RentBook creates a rental ending DurationDays after RentalDate and then
// marks the book Borrowed. The two requests are not atomic: when the second
// one fails the rental stays in place and a RentalInconsistent error is
// returned together with the rental, unless compensation is enabled.
func (m *Manager) RentBook(ctx context.Context, req RentRequest) (*Rental, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError("book, username and rental date are required", err)
	}

	rental, err := m.createRental(ctx, req.Draft())
	if err != nil {
		return nil, err
	}

	m.record(ctx, ActivityEvent{
		EventType: ActivityEventRentalCreated,
		BookID:    rental.BookID,
		RentalID:  rental.ID,
		Metadata: map[string]any{
			"username":    rental.Username,
			"rental_date": rental.RentalDate,
			"return_date": rental.ReturnDate,
		},
	})

	if _, err := m.UpdateBookStatus(ctx, req.BookID, BookStatusBorrowed); err != nil {
		if m.compensate {
			return nil, m.compensateRental(ctx, rental, err)
		}

		m.logger.Error("rental %d created but book %d was not marked borrowed: %v", rental.ID, rental.BookID, err)
		m.record(ctx, ActivityEvent{
			EventType: ActivityEventRentalInconsistent,
			BookID:    rental.BookID,
			RentalID:  rental.ID,
			ToStatus:  BookStatusBorrowed,
			Metadata: map[string]any{
				"error": ErrorMessage(err),
			},
		})
		return rental, ErrRentalInconsistent(err, rental)
	}

	return rental, nil
}

// ReturnBook marks the book of rental id as Available again
func (m *Manager) ReturnBook(ctx context.Context, rentalID int64) (*Book, error) {
	rental, err := m.GetRental(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	return m.UpdateBookStatus(ctx, rental.BookID, BookStatusAvailable)
}

func (m *Manager) createRental(ctx context.Context, draft RentalDraft) (*Rental, error) {
	if err := draft.Validate(); err != nil {
		return nil, validationError("invalid rental", err)
	}

	var resp rentalResponse
	if err := m.gateway.Request(ctx, http.MethodPost, pathRentalsAdd, draft, &resp); err != nil {
		return nil, err
	}
	if err := ackError(resp.Error); err != nil {
		return nil, err
	}

	return resolveRental(resp, draft.Rental(0)), nil
}

// compensateRental closes a rental whose book could not be marked borrowed
// by setting its return date to its rental date. The status failure is
// returned when the rollback succeeds.
func (m *Manager) compensateRental(ctx context.Context, rental *Rental, cause error) error {
	if rental.ID == 0 {
		m.logger.Warn("cannot compensate rental for book %d: API returned no rental id", rental.BookID)
		return ErrRentalInconsistent(cause, rental)
	}

	closed := rental.Draft()
	closed.ReturnDate = closed.RentalDate

	var resp rentalResponse
	err := m.gateway.Request(ctx, http.MethodPut, rentalUpdatePath(rental.ID), closed, &resp)
	if err == nil {
		err = ackError(resp.Error)
	}
	if err != nil {
		m.logger.Error("compensation for rental %d failed: %v", rental.ID, err)
		return ErrRentalInconsistent(cause, rental)
	}

	m.record(ctx, ActivityEvent{
		EventType: ActivityEventRentalCompensated,
		BookID:    rental.BookID,
		RentalID:  rental.ID,
		Metadata: map[string]any{
			"error": ErrorMessage(cause),
		},
	})

	return cause
}

func resolveRental(resp rentalResponse, fallback Rental) *Rental {
	if resp.ID == 0 {
		rental := fallback
		return &rental
	}
	rental := resp.Rental
	return &rental
}
