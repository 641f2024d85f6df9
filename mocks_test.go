package bookhive_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/goliatone/go-bookhive"
)

// MockGateway implements bookhive.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Request(ctx context.Context, method, path string, body, out any) error {
	args := m.Called(ctx, method, path, body, out)
	return args.Error(0)
}

// MockStatusUpdater implements bookhive.BookStatusUpdater
type MockStatusUpdater struct {
	mock.Mock
}

func (m *MockStatusUpdater) UpdateBookStatus(ctx context.Context, id int64, status bookhive.BookStatus) (*bookhive.Book, error) {
	args := m.Called(ctx, id, status)
	if book := args.Get(0); book != nil {
		return book.(*bookhive.Book), args.Error(1)
	}
	return nil, args.Error(1)
}
