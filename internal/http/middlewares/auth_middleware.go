package middlewares

import (
	"errors"
	"strings"

	"github.com/geocoder89/travelhub/internal/actorctx"
	"github.com/geocoder89/travelhub/internal/apperr"
	"github.com/geocoder89/travelhub/internal/auth"
	"github.com/gin-gonic/gin"
)

var ErrForbidden = apperr.New(apperr.KindForbidden, "Incorrect user or password")

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// RequireAuth verifies the bearer token and attaches its claims. Every
// failure is reported as Forbidden and stops the chain.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abort(c, ErrForbidden)
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if raw == "" {
			abort(c, ErrForbidden)
			return
		}

		claims, err := m.jwt.VerifyToken(raw)
		if err != nil {
			abort(c, apperr.Wrap(apperr.KindForbidden, "auth", errors.Join(ErrForbidden, err)))
			return
		}

		c.Set(CtxClaims, claims)
		c.Request = c.Request.WithContext(actorctx.WithClaims(c.Request.Context(), claims))

		c.Next()
	}
}

// ClaimsFromContext returns the verified token claims, if any.
func ClaimsFromContext(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(CtxClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok && claims != nil
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
