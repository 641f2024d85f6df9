package bookhive_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-bookhive"
	"github.com/goliatone/go-bookhive/bookhivetest"
)

func rentDune(days int) bookhive.RentRequest {
	return bookhive.RentRequest{
		BookID:       1,
		Username:     "alice",
		RentalDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DurationDays: days,
	}
}

func TestReturnDate(t *testing.T) {
	tests := []struct {
		name   string
		start  string
		days   int
		expect string
	}{
		{name: "one week", start: "2024-01-01", days: 7, expect: "2024-01-08"},
		{name: "month boundary", start: "2024-01-28", days: 7, expect: "2024-02-04"},
		{name: "leap day", start: "2024-02-25", days: 7, expect: "2024-03-03"},
		{name: "zero days", start: "2024-05-10", days: 0, expect: "2024-05-10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, err := bookhive.ParseDate(tt.start)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, bookhive.FormatDate(bookhive.ReturnDate(start, tt.days)))
		})
	}
}

func TestManagerRentBook(t *testing.T) {
	s := newStack(t, []bookhivetest.Option{bookhivetest.WithBooks(dune())})
	ctx := context.Background()

	rental, err := s.manager.RentBook(ctx, rentDune(7))
	require.NoError(t, err)
	assert.Equal(t, int64(1), rental.ID)
	assert.Equal(t, "2024-01-01", rental.RentalDate)
	assert.Equal(t, "2024-01-08", rental.ReturnDate)

	req, ok := s.srv.LastRequest(http.MethodPost, "/api/rentals/add")
	require.True(t, ok)
	assert.JSONEq(t, `{"bookId":1,"username":"alice","rentalDate":"2024-01-01","returnDate":"2024-01-08"}`, req.Body)

	book, err := s.manager.GetBook(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, bookhive.BookStatusBorrowed, book.Status)

	assert.Subset(t, s.sink.Types(), []bookhive.ActivityEventType{
		bookhive.ActivityEventRentalCreated,
		bookhive.ActivityEventBookStatusChanged,
	})
}

func TestManagerRentBookValidates(t *testing.T) {
	s := newStack(t, []bookhivetest.Option{bookhivetest.WithBooks(dune())})

	req := rentDune(7)
	req.Username = ""

	_, err := s.manager.RentBook(context.Background(), req)
	assert.True(t, bookhive.IsValidation(err))
	assert.Empty(t, s.srv.Rentals())
}

func TestManagerRentBookLeavesRentalWhenStatusUpdateFails(t *testing.T) {
	s := newStack(t, []bookhivetest.Option{bookhivetest.WithBooks(dune())})
	s.srv.FailNext(http.MethodPut, "/api/books/1/status", http.StatusInternalServerError, "status service down")
	ctx := context.Background()

	rental, err := s.manager.RentBook(ctx, rentDune(7))
	require.Error(t, err)
	assert.True(t, bookhive.IsRentalInconsistent(err))
	require.NotNil(t, rental)
	assert.Equal(t, int64(1), rental.ID)

	rentals, err := s.manager.ListRentals(ctx)
	require.NoError(t, err)
	require.Len(t, rentals, 1)
	assert.Equal(t, "2024-01-08", rentals[0].ReturnDate)

	book, err := s.manager.GetBook(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, bookhive.BookStatusAvailable, book.Status)

	event, ok := s.sink.Last(bookhive.ActivityEventRentalInconsistent)
	require.True(t, ok)
	assert.Equal(t, int64(1), event.RentalID)
	assert.Equal(t, "status service down", event.Metadata["error"])
}

func TestManagerRentBookCompensates(t *testing.T) {
	s := newStack(t, []bookhivetest.Option{bookhivetest.WithBooks(dune())}, bookhive.WithRentCompensation(true))
	s.srv.FailNext(http.MethodPut, "/api/books/1/status", http.StatusInternalServerError, "status service down")
	ctx := context.Background()

	rental, err := s.manager.RentBook(ctx, rentDune(7))
	require.Error(t, err)
	assert.Nil(t, rental)
	assert.True(t, bookhive.IsRequestFailed(err))
	assert.False(t, bookhive.IsRentalInconsistent(err))
	assert.Equal(t, "status service down", bookhive.ErrorMessage(err))

	stored := s.srv.Rentals()
	require.Len(t, stored, 1)
	assert.Equal(t, stored[0].RentalDate, stored[0].ReturnDate)

	book, _ := s.srv.Book(1)
	assert.Equal(t, bookhive.BookStatusAvailable, book.Status)

	assert.Contains(t, s.sink.Types(), bookhive.ActivityEventRentalCompensated)
}

func TestManagerRentBookCompensationFailure(t *testing.T) {
	s := newStack(t, []bookhivetest.Option{bookhivetest.WithBooks(dune())}, bookhive.WithRentCompensation(true))
	s.srv.FailNext(http.MethodPut, "/api/books/1/status", http.StatusInternalServerError, "status service down")
	s.srv.FailNext(http.MethodPut, "/api/rentals/update/1", http.StatusInternalServerError, "rental service down")

	_, err := s.manager.RentBook(context.Background(), rentDune(7))
	assert.True(t, bookhive.IsRentalInconsistent(err))

	stored := s.srv.Rentals()
	require.Len(t, stored, 1)
	assert.Equal(t, "2024-01-08", stored[0].ReturnDate)
}

func TestManagerRentBookCompensationNeedsRentalID(t *testing.T) {
	gateway := &MockGateway{}
	gateway.On("Request", mock.Anything, http.MethodPost, "/api/rentals/add", mock.Anything, mock.Anything).
		Return(nil).Once()
	gateway.On("Request", mock.Anything, http.MethodPut, "/api/books/1/status", mock.Anything, mock.Anything).
		Return(bookhive.ErrRequestFailed(http.StatusInternalServerError, "down")).Once()

	m := bookhive.NewManager(gateway, bookhive.WithLogger(silentLogger{}), bookhive.WithRentCompensation(true))

	_, err := m.RentBook(context.Background(), rentDune(3))
	assert.True(t, bookhive.IsRentalInconsistent(err))
	gateway.AssertExpectations(t)
	gateway.AssertNumberOfCalls(t, "Request", 2)
}

func TestManagerRentBookCreateFailureSkipsStatus(t *testing.T) {
	s := newStack(t, []bookhivetest.Option{bookhivetest.WithBooks(dune())})
	s.srv.FailNext(http.MethodPost, "/api/rentals/add", http.StatusInternalServerError, "")

	_, err := s.manager.RentBook(context.Background(), rentDune(7))
	assert.True(t, bookhive.IsRequestFailed(err))
	assert.Equal(t, bookhive.DefaultRequestFailedMessage, bookhive.ErrorMessage(err))

	_, ok := s.srv.LastRequest(http.MethodPut, "/api/books/1/status")
	assert.False(t, ok)
}

func TestManagerReturnBook(t *testing.T) {
	s := newStack(t, []bookhivetest.Option{bookhivetest.WithBooks(dune())})
	ctx := context.Background()

	rental, err := s.manager.RentBook(ctx, rentDune(14))
	require.NoError(t, err)

	book, err := s.manager.ReturnBook(ctx, rental.ID)
	require.NoError(t, err)
	assert.Equal(t, bookhive.BookStatusAvailable, book.Status)

	stored, _ := s.srv.Book(1)
	assert.Equal(t, bookhive.BookStatusAvailable, stored.Status)

	_, err = s.manager.ReturnBook(ctx, 99)
	assert.True(t, bookhive.IsNotFound(err))
}

func TestManagerUpdateRental(t *testing.T) {
	s := newStack(t, []bookhivetest.Option{bookhivetest.WithBooks(dune())})
	ctx := context.Background()

	rental, err := s.manager.RentBook(ctx, rentDune(7))
	require.NoError(t, err)

	draft := rental.Draft()
	draft.ReturnDate = "2024-01-15"

	updated, err := s.manager.UpdateRental(ctx, rental.ID, draft)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", updated.ReturnDate)

	got, err := s.manager.GetRental(ctx, rental.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", got.ReturnDate)

	draft.ReturnDate = "15/01/2024"
	_, err = s.manager.UpdateRental(ctx, rental.ID, draft)
	assert.True(t, bookhive.IsValidation(err))

	draft.ReturnDate = "2024-01-20"
	_, err = s.manager.UpdateRental(ctx, 42, draft)
	assert.True(t, bookhive.IsNotFound(err))

	_, err = s.manager.GetRental(ctx, 42)
	assert.True(t, bookhive.IsNotFound(err))
}
