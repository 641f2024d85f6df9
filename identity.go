package bookhive

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the display projection of a session token
type Identity struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// IsZero reports whether no identity fields are set
func (i Identity) IsZero() bool {
	return i.ID == "" && i.Username == "" && i.Email == ""
}

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// DecodeIdentity reads username and email from the payload segment of
// token without verifying its signature. Any malformed input yields false.
func DecodeIdentity(token string) (Identity, bool) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return Identity{}, false
	}

	parts := strings.Split(token, ".")
	if len(parts) < 2 || parts[1] == "" {
		return Identity{}, false
	}

	payload, err := decodePayload(parts[1])
	if err != nil {
		return Identity{}, false
	}

	claims := map[string]any{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Identity{}, false
	}

	id := claimString(claims, "id")
	if id == "" {
		id = claimString(claims, "sub")
	}

	identity := Identity{
		ID:       id,
		Username: claimString(claims, "username"),
		Email:    claimString(claims, "email"),
	}

	if identity.Username == "" && identity.Email == "" {
		return Identity{}, false
	}

	return identity, true
}

// decodePayload accepts base64url, the JWT encoding, and falls back to
// standard base64 with or without padding
func decodePayload(seg string) ([]byte, error) {
	payload, err := segmentParser.DecodeSegment(seg)
	if err == nil {
		return payload, nil
	}
	if payload, stdErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(seg, "=")); stdErr == nil {
		return payload, nil
	}
	return nil, err
}

func claimString(claims map[string]any, key string) string {
	return anyString(claims[key])
}

func anyString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
