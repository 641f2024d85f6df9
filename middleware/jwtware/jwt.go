// Package jwtware is a fiber middleware that admits requests carrying a
// valid bearer token.
package jwtware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")

// ValidationListener runs after the token signature and claims check out.
// A non nil error rejects the request.
type ValidationListener func(c *fiber.Ctx, token *jwt.Token) error

type Config struct {
	SigningKey   SigningKey
	ErrorHandler fiber.ErrorHandler
	// ContextKey is the locals key holding the parsed *jwt.Token. Defaults to "user".
	ContextKey string
	// AuthScheme prefixes the Authorization header value. Defaults to "Bearer".
	AuthScheme string
	// NewClaims returns the claims value tokens are decoded into.
	// Defaults to jwt.MapClaims.
	NewClaims func() jwt.Claims
	// TimeFunc overrides the clock used for exp/nbf/iat checks.
	TimeFunc func() time.Time

	ValidationListeners []ValidationListener
}

type SigningKey struct {
	JWTAlg string
	Key    any
}

func New(config ...Config) fiber.Handler {
	cfg := withDefaults(config...)
	parser := jwt.NewParser(cfg.parserOptions()...)

	keyFunc := func(*jwt.Token) (any, error) {
		return cfg.SigningKey.Key, nil
	}

	return func(c *fiber.Ctx) error {
		raw, err := bearerToken(c.Get(fiber.HeaderAuthorization), cfg.AuthScheme)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		token, err := parser.ParseWithClaims(raw, cfg.NewClaims(), keyFunc)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		for _, listener := range cfg.ValidationListeners {
			if listener == nil {
				continue
			}
			if err := listener(c, token); err != nil {
				return cfg.ErrorHandler(c, err)
			}
		}

		c.Locals(cfg.ContextKey, token)
		return c.Next()
	}
}

func withDefaults(config ...Config) Config {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SigningKey.Key == nil {
		panic("BOOKHIVE: JWT middleware configuration: SigningKey is required.")
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = unauthorized
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	if cfg.NewClaims == nil {
		cfg.NewClaims = func() jwt.Claims {
			return jwt.MapClaims{}
		}
	}

	return cfg
}

func (cfg Config) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{}
	if cfg.SigningKey.JWTAlg != "" {
		opts = append(opts, jwt.WithValidMethods([]string{cfg.SigningKey.JWTAlg}))
	}
	if cfg.TimeFunc != nil {
		opts = append(opts, jwt.WithTimeFunc(cfg.TimeFunc))
	}
	return opts
}

func unauthorized(c *fiber.Ctx, err error) error {
	message := "Invalid or expired token"
	if errors.Is(err, ErrJWTMissingOrMalformed) {
		message = ErrJWTMissingOrMalformed.Error()
	}
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": message})
}

// bearerToken strips scheme from header, matching it case insensitively
func bearerToken(header, scheme string) (string, error) {
	n := len(scheme)
	if len(header) <= n+1 || !strings.EqualFold(header[:n], scheme) || header[n] != ' ' {
		return "", ErrJWTMissingOrMalformed
	}

	token := strings.TrimSpace(header[n+1:])
	if token == "" {
		return "", ErrJWTMissingOrMalformed
	}
	return token, nil
}
