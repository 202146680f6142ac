package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrNoCredential = errors.New("no credential")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims mirrors the access token issued by the storefront backend.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	UserType string `json:"user_type"`
	jwt.RegisteredClaims
}

// Identity is what the cart needs to know about a decoded credential.
type Identity struct {
	UserID    string
	Username  string
	ExpiresAt time.Time
}

// Decoder turns a credential into an identity. Any error means anonymous.
type Decoder interface {
	Decode(token string) (*Identity, error)
}

// UnverifiedDecoder reads the claims without checking the signature; the
// client never holds the signing key. Expiry is still enforced.
type UnverifiedDecoder struct {
	parser *jwt.Parser
	now    func() time.Time
}

func NewUnverifiedDecoder() *UnverifiedDecoder {
	return &UnverifiedDecoder{parser: jwt.NewParser(), now: time.Now}
}

func (d *UnverifiedDecoder) Decode(token string) (*Identity, error) {
	token = stripBearer(token)
	if token == "" {
		return nil, ErrNoCredential
	}

	claims := &Claims{}
	if _, _, err := d.parser.ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(d.now()) {
		return nil, jwt.ErrTokenExpired
	}

	return claims.identity()
}

// HMACDecoder verifies HS256 tokens with a shared secret.
type HMACDecoder struct {
	secret []byte
}

func NewHMACDecoder(secret string) *HMACDecoder {
	return &HMACDecoder{secret: []byte(secret)}
}

func (d *HMACDecoder) Decode(token string) (*Identity, error) {
	token = stripBearer(token)
	if token == "" {
		return nil, ErrNoCredential
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return d.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := parsed.Claims.(*Claims); ok && parsed.Valid {
		return claims.identity()
	}
	return nil, ErrInvalidToken
}

// NewDecoder picks the HMAC decoder when a secret is configured.
func NewDecoder(secret string) Decoder {
	if secret != "" {
		return NewHMACDecoder(secret)
	}
	return NewUnverifiedDecoder()
}

func (c *Claims) identity() (*Identity, error) {
	userID := c.UserID
	if userID == "" {
		userID = c.Subject
	}
	if userID == "" {
		return nil, ErrInvalidToken
	}

	identity := &Identity{UserID: userID, Username: c.Username}
	if c.ExpiresAt != nil {
		identity.ExpiresAt = c.ExpiresAt.Time
	}
	return identity, nil
}

func stripBearer(token string) string {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
