package bookhive

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeAuthRequired       = "AUTH_REQUIRED"
	TextCodeRequestFailed      = "REQUEST_FAILED"
	TextCodeValidation         = "VALIDATION_FAILED"
	TextCodeNotFound           = "NOT_FOUND"
	TextCodeRentalInconsistent = "RENTAL_INCONSISTENT"
	TextCodeInvalidTransition  = "INVALID_BOOK_STATUS_TRANSITION"
)

const (
	// DefaultRequestFailedMessage is used when a failed response has no readable message
	DefaultRequestFailedMessage = "Request failed"
	// DefaultLoginFailedMessage is used when a login failure has no readable message
	DefaultLoginFailedMessage = "Login failed"
	authRequiredMessage       = "Authentication required"
)

// ErrAuthRequired builds the error returned for any 401 response
func ErrAuthRequired() *goerrors.Error {
	return goerrors.New(authRequiredMessage, goerrors.CategoryAuth).
		WithTextCode(TextCodeAuthRequired).
		WithCode(goerrors.CodeUnauthorized)
}

// ErrRequestFailed builds the error returned for non 2xx responses other than 401
func ErrRequestFailed(status int, message string) *goerrors.Error {
	if message == "" {
		message = DefaultRequestFailedMessage
	}
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return goerrors.New(message, goerrors.CategoryOperation).
		WithTextCode(TextCodeRequestFailed).
		WithCode(status)
}

func errTransport(err error, method, path string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, DefaultRequestFailedMessage).
		WithTextCode(TextCodeRequestFailed).
		WithCode(goerrors.CodeInternal).
		WithMetadata(map[string]any{
			"method": method,
			"path":   path,
		})
}

// ErrValidation builds a client side validation error
func ErrValidation(message string, fields map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryValidation).
		WithTextCode(TextCodeValidation).
		WithCode(goerrors.CodeBadRequest)
	if len(fields) > 0 {
		err = err.WithMetadata(fields)
	}
	return err
}

// ErrNotFound builds the error for a missing book or rental
func ErrNotFound(resource string, id int64) *goerrors.Error {
	return goerrors.New(resource+" not found", goerrors.CategoryNotFound).
		WithTextCode(TextCodeNotFound).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{
			"resource": resource,
			"id":       id,
		})
}

// ErrRentalInconsistent is returned when a rental was created but the
// book status could not be moved to Borrowed
func ErrRentalInconsistent(cause error, rental *Rental) *goerrors.Error {
	meta := map[string]any{}
	if rental != nil {
		meta["rental_id"] = rental.ID
		meta["book_id"] = rental.BookID
	}
	return goerrors.Wrap(cause, goerrors.CategoryConflict, "rental created but book status was not updated").
		WithTextCode(TextCodeRentalInconsistent).
		WithCode(goerrors.CodeConflict).
		WithMetadata(meta)
}

// ErrInvalidTransition is returned when a requested status change is not allowed
func ErrInvalidTransition(from, to BookStatus, reason string) *goerrors.Error {
	meta := map[string]any{
		"from": from,
		"to":   to,
	}
	if reason != "" {
		meta["reason"] = reason
	}
	return goerrors.New("invalid book status transition", goerrors.CategoryValidation).
		WithTextCode(TextCodeInvalidTransition).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(meta)
}

// IsAuthRequired reports whether the caller has to log in again
func IsAuthRequired(err error) bool {
	return hasTextCode(err, TextCodeAuthRequired)
}

// IsRequestFailed reports whether the remote API rejected the request
func IsRequestFailed(err error) bool {
	return hasTextCode(err, TextCodeRequestFailed)
}

// IsValidation reports whether the request was rejected before dispatch
func IsValidation(err error) bool {
	return hasTextCode(err, TextCodeValidation)
}

// IsNotFound reports whether the resource does not exist
func IsNotFound(err error) bool {
	return hasTextCode(err, TextCodeNotFound)
}

// IsRentalInconsistent reports a half applied RentBook
func IsRentalInconsistent(err error) bool {
	return hasTextCode(err, TextCodeRentalInconsistent)
}

// IsInvalidTransition reports a rejected status transition
func IsInvalidTransition(err error) bool {
	return hasTextCode(err, TextCodeInvalidTransition)
}

// ErrorMessage returns the user facing message of err
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}
	return err.Error()
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}
