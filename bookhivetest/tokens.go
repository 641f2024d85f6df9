package bookhivetest

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/hashid/pkg/hashid"
)

// Claims are the claims carried by tokens issued by the stub. The payload
// exposes id, username and email the way the catalog API does.
type Claims struct {
	jwt.RegisteredClaims
	UserID     int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Generation int    `json:"gen"`
}

func (s *Server) issueToken(u *account) (string, error) {
	now := s.now()

	subject := u.Username
	if id, err := hashid.NewUUID(u.Email); err == nil {
		subject = id.String()
	}

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
		UserID:     u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Generation: s.generation,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// SignToken signs arbitrary claims with the stub key, useful to forge
// expired or foreign tokens in tests.
func (s *Server) SignToken(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// NewClaims builds claims for username as the stub would at time now
func NewClaims(id int64, username, email string, now time.Time, ttl time.Duration) *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:   id,
		Username: username,
		Email:    email,
	}
}
