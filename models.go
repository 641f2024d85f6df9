package bookhive

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

// DateLayout is the wire format for rental dates
const DateLayout = "2006-01-02"

// BookStatus is the availability of a book
type BookStatus string

const (
	BookStatusAvailable   BookStatus = "Available"
	BookStatusBorrowed    BookStatus = "Borrowed"
	BookStatusCheckedOut  BookStatus = "Checked Out"
	BookStatusMaintenance BookStatus = "Maintenance"
)

// BookStatuses lists every status the catalog accepts
func BookStatuses() []BookStatus {
	return []BookStatus{
		BookStatusAvailable,
		BookStatusBorrowed,
		BookStatusCheckedOut,
		BookStatusMaintenance,
	}
}

// IsValid reports whether s is a known status
func (s BookStatus) IsValid() bool {
	for _, known := range BookStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// OrDefault returns Available for an empty status
func (s BookStatus) OrDefault() BookStatus {
	if s == "" {
		return BookStatusAvailable
	}
	return s
}

// ParseBookStatus matches s against the known statuses ignoring case
func ParseBookStatus(s string) (BookStatus, bool) {
	s = strings.TrimSpace(s)
	for _, known := range BookStatuses() {
		if strings.EqualFold(s, string(known)) {
			return known, true
		}
	}
	return "", false
}

// Book is a catalog entry
type Book struct {
	ID     int64      `json:"bookId"`
	Title  string     `json:"title"`
	Author string     `json:"author"`
	Genre  string     `json:"genre"`
	Status BookStatus `json:"status"`
}

// Draft returns the editable fields of the book
func (b Book) Draft() BookDraft {
	return BookDraft{
		Title:  b.Title,
		Author: b.Author,
		Genre:  b.Genre,
		Status: b.Status,
	}
}

// BookDraft is the payload for create and full update requests
type BookDraft struct {
	Title  string     `json:"title"`
	Author string     `json:"author"`
	Genre  string     `json:"genre"`
	Status BookStatus `json:"status"`
}

// Normalize trims text fields. The status is left as given.
func (d BookDraft) Normalize() BookDraft {
	return BookDraft{
		Title:  strings.TrimSpace(d.Title),
		Author: strings.TrimSpace(d.Author),
		Genre:  strings.TrimSpace(d.Genre),
		Status: d.Status,
	}
}

func (d BookDraft) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Title, validation.Required),
		validation.Field(&d.Author, validation.Required),
		validation.Field(&d.Genre, validation.Required),
		validation.Field(&d.Status, validation.By(validStatus)),
	)
}

// Book projects the draft onto a book with the given id
func (d BookDraft) Book(id int64) Book {
	return Book{
		ID:     id,
		Title:  d.Title,
		Author: d.Author,
		Genre:  d.Genre,
		Status: d.Status,
	}
}

// ChangedFields lists the json names of the fields that differ between b and next
func (b Book) ChangedFields(next BookDraft) []string {
	changed := []string{}
	if b.Title != next.Title {
		changed = append(changed, "title")
	}
	if b.Author != next.Author {
		changed = append(changed, "author")
	}
	if b.Genre != next.Genre {
		changed = append(changed, "genre")
	}
	if b.Status != next.Status {
		changed = append(changed, "status")
	}
	return changed
}

// Rental records a book lent to a user between two dates
type Rental struct {
	ID         int64  `json:"rentalId"`
	BookID     int64  `json:"bookId"`
	Username   string `json:"username"`
	RentalDate string `json:"rentalDate"`
	ReturnDate string `json:"returnDate"`
}

// Draft returns the editable fields of the rental
func (r Rental) Draft() RentalDraft {
	return RentalDraft{
		BookID:     r.BookID,
		Username:   r.Username,
		RentalDate: r.RentalDate,
		ReturnDate: r.ReturnDate,
	}
}

// RentalDraft is the payload for rental create and update requests
type RentalDraft struct {
	BookID     int64  `json:"bookId"`
	Username   string `json:"username"`
	RentalDate string `json:"rentalDate"`
	ReturnDate string `json:"returnDate"`
}

func (d RentalDraft) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.BookID, validation.Required),
		validation.Field(&d.Username, validation.Required),
		validation.Field(&d.RentalDate, validation.Required, validation.By(validDate)),
		validation.Field(&d.ReturnDate, validation.Required, validation.By(validDate)),
	)
}

// Rental projects the draft onto a rental with the given id
func (d RentalDraft) Rental(id int64) Rental {
	return Rental{
		ID:         id,
		BookID:     d.BookID,
		Username:   d.Username,
		RentalDate: d.RentalDate,
		ReturnDate: d.ReturnDate,
	}
}

// RentRequest describes a RentBook call. DurationDays is trusted as given.
type RentRequest struct {
	BookID       int64
	Username     string
	RentalDate   time.Time
	DurationDays int
}

func (r RentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.BookID, validation.Required),
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.RentalDate, validation.Required),
	)
}

// ReturnDate is RentalDate plus DurationDays calendar days
func (r RentRequest) ReturnDate() time.Time {
	return ReturnDate(r.RentalDate, r.DurationDays)
}

// Draft builds the rental payload sent to the API
func (r RentRequest) Draft() RentalDraft {
	return RentalDraft{
		BookID:     r.BookID,
		Username:   r.Username,
		RentalDate: FormatDate(r.RentalDate),
		ReturnDate: FormatDate(r.ReturnDate()),
	}
}

// ReturnDate adds days calendar days to rentalDate
func ReturnDate(rentalDate time.Time, days int) time.Time {
	return rentalDate.AddDate(0, 0, days)
}

// FormatDate renders t in DateLayout
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a DateLayout string
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// User is the account returned by the auth endpoints
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
}

// RegisterRequest is the payload for account registration
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100)),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
	)
}

func validStatus(value any) error {
	s, _ := value.(BookStatus)
	if s == "" || s.IsValid() {
		return nil
	}
	return errors.New("must be one of Available, Borrowed, Checked Out, Maintenance")
}

func validDate(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := ParseDate(s); err != nil {
		return errors.New("must be a date in YYYY-MM-DD format")
	}
	return nil
}

// validationError converts ozzo field errors into an ErrValidation
func validationError(message string, err error) error {
	if err == nil {
		return nil
	}
	fields := map[string]any{}
	if errs, ok := err.(validation.Errors); ok {
		for field, fieldErr := range errs {
			if fieldErr != nil {
				fields[field] = fieldErr.Error()
			}
		}
	} else {
		fields["error"] = err.Error()
	}
	return ErrValidation(message, fields)
}
