// Package bookhivetest provides an in-memory implementation of the BookHive
// catalog API for tests and local development.
package bookhivetest

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-bookhive"
	"github.com/goliatone/go-bookhive/middleware/jwtware"
	"github.com/goliatone/go-print"
	"golang.org/x/crypto/bcrypt"
)

const defaultSigningKey = "bookhive-stub-secret"

// RecordedRequest is a request observed by the stub
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	ContentType   string
	RequestID     string
	Body          string
}

type account struct {
	ID           int64
	Username     string
	Email        string
	Name         string
	PasswordHash string
}

type failure struct {
	method  string
	path    string
	status  int
	message string
}

// Server is an in-memory catalog API
type Server struct {
	app *fiber.App

	mu         sync.Mutex
	books      map[int64]*bookhive.Book
	rentals    map[int64]*bookhive.Rental
	accounts   map[string]*account
	nextBook   int64
	nextRental int64
	nextUser   int64
	failures   []failure
	requests   []RecordedRequest
	generation int

	signingKey   []byte
	issuer       string
	tokenTTL     time.Duration
	passwordCost int
	now          func() time.Time
	debug        bool
	logger       bookhive.Logger
}

// Option customizes the stub
type Option func(*Server)

// WithSigningKey sets the HS256 key used to sign and verify tokens
func WithSigningKey(key string) Option {
	return func(s *Server) {
		if key != "" {
			s.signingKey = []byte(key)
		}
	}
}

// WithTokenTTL sets the lifetime of issued tokens
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPasswordCost sets the bcrypt cost for stored passwords
func WithPasswordCost(cost int) Option {
	return func(s *Server) {
		s.passwordCost = cost
	}
}

// WithUser seeds an account
func WithUser(username, email, password string) Option {
	return func(s *Server) {
		if _, err := s.addAccount(username, email, "", password); err != nil {
			panic("bookhivetest: unable to seed user " + username + ": " + err.Error())
		}
	}
}

// WithBooks seeds books. Zero ids are assigned.
func WithBooks(books ...bookhive.Book) Option {
	return func(s *Server) {
		for _, b := range books {
			s.putBook(b)
		}
	}
}

// WithDebug dumps every request and response body through the logger
func WithDebug(debug bool) Option {
	return func(s *Server) {
		s.debug = debug
	}
}

// WithLogger sets the logger used in debug mode
func WithLogger(logger bookhive.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a stub with its routes registered
func New(opts ...Option) *Server {
	s := &Server{
		books:        map[int64]*bookhive.Book{},
		rentals:      map[int64]*bookhive.Rental{},
		accounts:     map[string]*account{},
		signingKey:   []byte(defaultSigningKey),
		issuer:       "bookhive",
		tokenTTL:     time.Hour,
		passwordCost: bcrypt.MinCost,
		now:          time.Now,
		logger:       stdLogger{},
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		Immutable:             true,
		ErrorHandler:          s.errorHandler,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.routes()

	return s
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Client returns an http.Client that dispatches into the stub in process
func (s *Server) Client() *http.Client {
	return &http.Client{
		Transport: fiberTransport{app: s.app},
		Timeout:   10 * time.Second,
	}
}

// BaseURL is the base URL to pair with Client
func (s *Server) BaseURL() string {
	return "http://bookhive.test"
}

// Listen serves the stub on addr until Shutdown
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops a listening stub
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// FailNext makes the next request matching method and path answer with
// status and message. Failures are consumed in order.
func (s *Server) FailNext(method, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{
		method:  strings.ToUpper(method),
		path:    path,
		status:  status,
		message: message,
	})
}

// ExpireSessions invalidates every token issued so far
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

// Requests returns the requests observed so far
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the last request matching method and path
func (s *Server) LastRequest(method, path string) (RecordedRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		r := s.requests[i]
		if r.Method == method && r.Path == path {
			return r, true
		}
	}
	return RecordedRequest{}, false
}

// Book returns a copy of the stored book
func (s *Server) Book(id int64) (bookhive.Book, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return bookhive.Book{}, false
	}
	return *b, true
}

// Rentals returns a copy of every stored rental ordered by id
func (s *Server) Rentals() []bookhive.Rental {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedRentals()
}

func (s *Server) routes() {
	s.app.Use(s.recordRequest)
	s.app.Use(s.injectFailures)

	api := s.app.Group("/api")
	api.Post("/auth/login", s.login)
	api.Post("/auth/register", s.register)

	protected := api.Group("", jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{
			Key:    s.signingKey,
			JWTAlg: jwt.SigningMethodHS256.Alg(),
		},
		NewClaims: func() jwt.Claims {
			return &Claims{}
		},
		TimeFunc: func() time.Time {
			return s.now()
		},
		ValidationListeners: []jwtware.ValidationListener{
			s.rejectStaleGeneration,
		},
	}))

	protected.Get("/auth/me", s.me)

	protected.Get("/books/all", s.listBooks)
	protected.Post("/books/add", s.addBook)
	protected.Get("/books/:id", s.getBook)
	protected.Put("/books/:id/status", s.updateBookStatus)
	protected.Put("/books/:id", s.updateBook)
	protected.Delete("/books/:id", s.deleteBook)

	protected.Get("/rentals/all", s.listRentals)
	protected.Post("/rentals/add", s.addRental)
	protected.Put("/rentals/update/:id", s.updateRental)
	protected.Get("/rentals/:id", s.getRental)
}

func (s *Server) recordRequest(c *fiber.Ctx) error {
	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method:        c.Method(),
		Path:          c.Path(),
		Authorization: c.Get(fiber.HeaderAuthorization),
		ContentType:   c.Get(fiber.HeaderContentType),
		RequestID:     c.Get(bookhive.HeaderRequestID),
		Body:          string(c.Body()),
	})
	s.mu.Unlock()

	if s.debug {
		s.logger.Debug("%s %s %s", c.Method(), c.Path(), print.MaybePrettyJSON(jsonBody(c.Body())))
	}

	return c.Next()
}

func (s *Server) injectFailures(c *fiber.Ctx) error {
	s.mu.Lock()
	idx := -1
	for i, f := range s.failures {
		if f.method == c.Method() && f.path == c.Path() {
			idx = i
			break
		}
	}
	var f failure
	if idx >= 0 {
		f = s.failures[idx]
		s.failures = append(s.failures[:idx], s.failures[idx+1:]...)
	}
	s.mu.Unlock()

	if idx < 0 {
		return c.Next()
	}

	return c.Status(f.status).JSON(fiber.Map{
		"message": f.message,
	})
}

func (s *Server) rejectStaleGeneration(_ *fiber.Ctx, token *jwt.Token) error {
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return errors.New("unexpected claims type")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if claims.Generation != s.generation {
		return errors.New("session expired")
	}
	if _, ok := s.accounts[strings.ToLower(claims.Username)]; !ok {
		return errors.New("unknown account")
	}
	return nil
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"message": err.Error(),
	})
}

func (s *Server) currentAccount(c *fiber.Ctx) (*account, bool) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return nil, false
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[strings.ToLower(claims.Username)]
	return acc, ok
}

// putBook stores b, assigning an id when missing. Callers hold s.mu
// except while options run.
func (s *Server) putBook(b bookhive.Book) bookhive.Book {
	if b.ID == 0 {
		s.nextBook++
		b.ID = s.nextBook
	} else if b.ID > s.nextBook {
		s.nextBook = b.ID
	}
	b.Status = b.Status.OrDefault()
	stored := b
	s.books[b.ID] = &stored
	return b
}

func (s *Server) sortedBooks() []bookhive.Book {
	out := make([]bookhive.Book, 0, len(s.books))
	for _, b := range s.books {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) sortedRentals() []bookhive.Rental {
	out := make([]bookhive.Rental, 0, len(s.rentals))
	for _, r := range s.rentals {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// fiberTransport routes client requests into a fiber app without a socket
type fiberTransport struct {
	app *fiber.App
}

func (t fiberTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.app.Test(req, -1)
}

func jsonBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var out any
	if err := json.Unmarshal(body, &out); err != nil {
		return string(body)
	}
	return out
}

type stdLogger struct{}

func (stdLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] BOOKHIVE STUB "+format+"\n", args...)
}

func (stdLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] BOOKHIVE STUB "+format+"\n", args...)
}

func (stdLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] BOOKHIVE STUB "+format+"\n", args...)
}

func (stdLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] BOOKHIVE STUB "+format+"\n", args...)
}
