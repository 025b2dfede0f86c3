// Package actorctx carries the authenticated caller through context.Context
// so code below the HTTP layer can read it without importing gin.
package actorctx

import (
	"context"

	"github.com/geocoder89/travelhub/internal/auth"
	"github.com/geocoder89/travelhub/internal/domain/place"
	"github.com/geocoder89/travelhub/internal/domain/user"
)

type ctxKey string

const (
	keyClaims    ctxKey = "claims"
	keyActor     ctxKey = "actor"
	keyPlace     ctxKey = "place"
	keyRequestID ctxKey = "request_id"
)

func WithClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, keyClaims, c)
}

func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(keyClaims).(*auth.Claims)
	return c, ok && c != nil && c.ID != ""
}

// UserIDFrom returns the verified token subject.
func UserIDFrom(ctx context.Context) (string, bool) {
	c, ok := ClaimsFrom(ctx)
	if !ok {
		return "", false
	}
	return c.ID, true
}

// WithActor stores the user record confirmed by the ownership stage.
func WithActor(ctx context.Context, u user.User) context.Context {
	return context.WithValue(ctx, keyActor, u)
}

func ActorFrom(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(keyActor).(user.User)
	return u, ok && u.ID != ""
}

// WithPlace stores the place the ownership stage already loaded.
func WithPlace(ctx context.Context, p place.Place) context.Context {
	return context.WithValue(ctx, keyPlace, p)
}

func PlaceFrom(ctx context.Context) (place.Place, bool) {
	p, ok := ctx.Value(keyPlace).(place.Place)
	return p, ok && p.ID != ""
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

func RequestIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(keyRequestID).(string)
	return v
}
