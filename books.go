package bookhive

import (
	"context"
	"net/http"
)

const (
	pathBooksAll = "/api/books/all"
	pathBooksAdd = "/api/books/add"
)

// bookResponse accepts either a book or an acknowledgement body
type bookResponse struct {
	Book
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type statusRequest struct {
	Status BookStatus `json:"status"`
}

// ListBooks returns every book in the catalog
func (m *Manager) ListBooks(ctx context.Context) ([]Book, error) {
	books := []Book{}
	if err := m.gateway.Request(ctx, http.MethodGet, pathBooksAll, nil, &books); err != nil {
		return nil, err
	}
	return books, nil
}

// GetBook fetches one book. A missing book yields a NotFound error.
func (m *Manager) GetBook(ctx context.Context, id int64) (*Book, error) {
	book := &Book{}
	if err := m.gateway.Request(ctx, http.MethodGet, bookPath(id), nil, book); err != nil {
		return nil, notFoundFrom(err, "book", id)
	}
	if book.ID == 0 {
		book.ID = id
	}
	return book, nil
}

// CreateBook validates draft, defaults its status to Available and adds it
func (m *Manager) CreateBook(ctx context.Context, draft BookDraft) (*Book, error) {
	draft = draft.Normalize()
	draft.Status = draft.Status.OrDefault()
	if err := draft.Validate(); err != nil {
		return nil, validationError("title, author and genre are required", err)
	}

	var resp bookResponse
	if err := m.gateway.Request(ctx, http.MethodPost, pathBooksAdd, draft, &resp); err != nil {
		return nil, err
	}
	if err := ackError(resp.Error); err != nil {
		return nil, err
	}

	book := resolveBook(resp, draft.Book(0))

	m.record(ctx, ActivityEvent{
		EventType: ActivityEventBookCreated,
		BookID:    book.ID,
		ToStatus:  book.Status,
	})

	return book, nil
}

// UpdateBook replaces every editable field of book id. An empty status
// keeps the status the book currently has.
func (m *Manager) UpdateBook(ctx context.Context, id int64, draft BookDraft) (*Book, error) {
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, validationError("title, author and genre are required", err)
	}

	if draft.Status == "" {
		current, err := m.GetBook(ctx, id)
		if err != nil {
			return nil, err
		}
		draft.Status = current.Status.OrDefault()
	}

	var resp bookResponse
	if err := m.gateway.Request(ctx, http.MethodPut, bookPath(id), draft, &resp); err != nil {
		return nil, notFoundFrom(err, "book", id)
	}
	if err := ackError(resp.Error); err != nil {
		return nil, notFoundFrom(err, "book", id)
	}

	book := resolveBook(resp, draft.Book(id))

	m.record(ctx, ActivityEvent{
		EventType: ActivityEventBookUpdated,
		BookID:    id,
		ToStatus:  book.Status,
	})

	return book, nil
}

// UpdateBookStatus changes only the status of book id
func (m *Manager) UpdateBookStatus(ctx context.Context, id int64, status BookStatus) (*Book, error) {
	book, err := m.updateBookStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	m.record(ctx, ActivityEvent{
		EventType: ActivityEventBookStatusChanged,
		BookID:    id,
		ToStatus:  status,
	})

	return book, nil
}

func (m *Manager) updateBookStatus(ctx context.Context, id int64, status BookStatus) (*Book, error) {
	if !status.IsValid() {
		return nil, ErrValidation("invalid book status", map[string]any{
			"status": string(status),
		})
	}

	var resp bookResponse
	if err := m.gateway.Request(ctx, http.MethodPut, bookStatusPath(id), statusRequest{Status: status}, &resp); err != nil {
		return nil, notFoundFrom(err, "book", id)
	}
	if err := ackError(resp.Error); err != nil {
		return nil, notFoundFrom(err, "book", id)
	}

	book := resolveBook(resp, Book{ID: id, Status: status})
	book.Status = status
	return book, nil
}

// EditBook applies next over current. When the only change is the status
// the narrow status endpoint is used; with no change nothing is sent.
func (m *Manager) EditBook(ctx context.Context, current Book, next BookDraft) (*Book, error) {
	if next.Status == "" {
		next.Status = current.Status
	}

	changed := current.ChangedFields(next)
	switch {
	case len(changed) == 0:
		book := current
		return &book, nil
	case len(changed) == 1 && changed[0] == "status":
		return m.UpdateBookStatus(ctx, current.ID, next.Status)
	default:
		return m.UpdateBook(ctx, current.ID, next)
	}
}

// DeleteBook removes book id
func (m *Manager) DeleteBook(ctx context.Context, id int64) error {
	var resp ackResponse
	if err := m.gateway.Request(ctx, http.MethodDelete, bookPath(id), nil, &resp); err != nil {
		return notFoundFrom(err, "book", id)
	}
	if err := ackError(resp.Error); err != nil {
		return notFoundFrom(err, "book", id)
	}

	m.record(ctx, ActivityEvent{
		EventType: ActivityEventBookDeleted,
		BookID:    id,
	})

	return nil
}

// TransitionBook moves book to target through the BookStateMachine
func (m *Manager) TransitionBook(ctx context.Context, book *Book, target BookStatus, opts ...TransitionOption) (*Book, error) {
	return m.machine.Transition(ctx, m.actorFromContext(ctx), book, target, opts...)
}

// resolveBook prefers the book echoed by the API and falls back to the
// request projection when the API only acknowledged
func resolveBook(resp bookResponse, fallback Book) *Book {
	if resp.ID == 0 {
		book := fallback
		return &book
	}

	book := resp.Book
	if book.Status == "" {
		book.Status = fallback.Status
	}
	return &book
}
