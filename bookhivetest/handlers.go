package bookhivetest

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-bookhive"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type statusPayload struct {
	Status bookhive.BookStatus `json:"status"`
}

func (s *Server) login(c *fiber.Ctx) error {
	var payload loginPayload
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid login payload")
	}

	s.mu.Lock()
	acc, ok := s.accounts[strings.ToLower(strings.TrimSpace(payload.Username))]
	s.mu.Unlock()

	if !ok || ComparePasswordAndHash(payload.Password, acc.PasswordHash) != nil {
		return c.JSON(fiber.Map{
			"token":   nil,
			"error":   "User not found",
			"message": "Token not generated",
		})
	}

	s.mu.Lock()
	token, err := s.issueToken(acc)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":       acc.ID,
			"username": acc.Username,
		},
		"message": "Token generated successfully",
	})
}

func (s *Server) register(c *fiber.Ctx) error {
	var req bookhive.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid registration payload")
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   fieldMessage(err),
			"message": "Invalid registration",
		})
	}

	acc, err := s.addAccount(req.Username, req.Email, req.Name, req.Password)
	if err != nil {
		return c.JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("User registered at %d", acc.ID),
	})
}

func (s *Server) me(c *fiber.Ctx) error {
	acc, ok := s.currentAccount(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "User not found"})
	}
	return c.JSON(bookhive.User{
		ID:       acc.ID,
		Username: acc.Username,
		Email:    acc.Email,
		Name:     acc.Name,
	})
}

func (s *Server) listBooks(c *fiber.Ctx) error {
	s.mu.Lock()
	books := s.sortedBooks()
	s.mu.Unlock()
	return c.JSON(books)
}

func (s *Server) getBook(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid book id")
	}

	book, ok := s.Book(int64(id))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Book not found"})
	}
	return c.JSON(book)
}

func (s *Server) addBook(c *fiber.Ctx) error {
	var draft bookhive.BookDraft
	if err := c.BodyParser(&draft); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid book payload")
	}
	draft = draft.Normalize()
	draft.Status = draft.Status.OrDefault()
	if err := draft.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   fieldMessage(err),
			"message": "Failed to add book",
		})
	}

	s.mu.Lock()
	book := s.putBook(draft.Book(0))
	s.mu.Unlock()

	return c.JSON(bookBody(book, "Book Added Successfully"))
}

func (s *Server) updateBook(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid book id")
	}

	var draft bookhive.BookDraft
	if err := c.BodyParser(&draft); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid book payload")
	}
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   fieldMessage(err),
			"message": "Failed to update book",
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.books[int64(id)]
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Book not found"})
	}
	if draft.Status == "" {
		draft.Status = current.Status
	}
	book := s.putBook(draft.Book(int64(id)))

	return c.JSON(bookBody(book, "Book Updated Successfully"))
}

func (s *Server) updateBookStatus(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid book id")
	}

	var payload statusPayload
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid status payload")
	}
	if !payload.Status.IsValid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid status"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[int64(id)]
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Book not found"})
	}
	book.Status = payload.Status

	return c.JSON(bookBody(*book, "Book Status Updated Successfully"))
}

func (s *Server) deleteBook(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid book id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[int64(id)]; !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Book not found"})
	}
	delete(s.books, int64(id))

	return c.JSON(fiber.Map{"message": "Book Deleted Successfully"})
}

func (s *Server) listRentals(c *fiber.Ctx) error {
	return c.JSON(s.Rentals())
}

func (s *Server) getRental(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid rental id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rental, ok := s.rentals[int64(id)]
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Rental not found"})
	}
	return c.JSON(rental)
}

func (s *Server) addRental(c *fiber.Ctx) error {
	var draft bookhive.RentalDraft
	if err := c.BodyParser(&draft); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid rental payload")
	}
	if err := draft.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   fieldMessage(err),
			"message": "Failed to add rental",
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRental++
	rental := draft.Rental(s.nextRental)
	s.rentals[rental.ID] = &rental

	return c.JSON(rentalBody(rental, "Rental Added Successfully"))
}

func (s *Server) updateRental(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid rental id")
	}

	var draft bookhive.RentalDraft
	if err := c.BodyParser(&draft); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid rental payload")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rentals[int64(id)]; !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Rental not found"})
	}
	rental := draft.Rental(int64(id))
	s.rentals[rental.ID] = &rental

	return c.JSON(rentalBody(rental, "Rental Updated Successfully"))
}

// addAccount registers a user. Usernames are matched case insensitively.
func (s *Server) addAccount(username, email, name, password string) (*account, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	hash, err := HashPassword(password, s.passwordCost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[strings.ToLower(username)]; ok {
		return nil, errors.New("Username already exists")
	}
	for _, acc := range s.accounts {
		if strings.EqualFold(acc.Email, email) {
			return nil, errors.New("Email already exists")
		}
	}

	s.nextUser++
	acc := &account{
		ID:           s.nextUser,
		Username:     username,
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	}
	s.accounts[strings.ToLower(username)] = acc
	return acc, nil
}

func bookBody(book bookhive.Book, message string) fiber.Map {
	return fiber.Map{
		"bookId":  book.ID,
		"title":   book.Title,
		"author":  book.Author,
		"genre":   book.Genre,
		"status":  book.Status,
		"message": message,
	}
}

func rentalBody(rental bookhive.Rental, message string) fiber.Map {
	return fiber.Map{
		"rentalId":   rental.ID,
		"bookId":     rental.BookID,
		"username":   rental.Username,
		"rentalDate": rental.RentalDate,
		"returnDate": rental.ReturnDate,
		"message":    message,
	}
}

// fieldMessage flattens ozzo field errors into one line
func fieldMessage(err error) string {
	if errs, ok := err.(validation.Errors); ok {
		return errs.Error()
	}
	return err.Error()
}
