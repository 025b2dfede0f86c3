package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/travelhub/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSecret = errors.New("auth: token secret must not be empty")
	ErrInvalidToken  = apperr.New(apperr.KindInvalidToken, "invalid token")
)

// Claim is the identity minted into a token at login.
type Claim struct {
	ID   string
	Name string
}

type Claims struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager refuses to build without a secret; callers treat that as a
// startup failure. A ttl of zero issues tokens without an exp claim.
func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}

	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (m *Manager) IssueToken(c Claim) (string, error) {
	now := m.now().UTC()

	claims := Claims{
		ID:   c.ID,
		Name: c.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}

	if m.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *Manager) VerifyToken(tokenStr string) (*Claims, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HMAC

		_, ok := t.Method.(*jwt.SigningMethodHMAC)

		if !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))

	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidToken, "auth.verify", errors.Join(ErrInvalidToken, err))
	}

	claims, ok := token.Claims.(*Claims)

	if !ok || !token.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
