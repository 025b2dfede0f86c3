package middlewares

import (
	"context"

	"github.com/geocoder89/travelhub/internal/actorctx"
	"github.com/geocoder89/travelhub/internal/apperr"
	"github.com/geocoder89/travelhub/internal/domain/place"
	"github.com/geocoder89/travelhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type UserGetter interface {
	Get(ctx context.Context, id string) (user.User, error)
}

type PlaceGetter interface {
	Get(ctx context.Context, id string) (place.Place, error)
}

// RequireSelf loads the token subject and confirms it still exists.
// Must run after RequireAuth.
func RequireSelf(users UserGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			abort(c, ErrForbidden)
			return
		}

		u, err := users.Get(c.Request.Context(), claims.ID)
		if err != nil {
			if apperr.IsKind(err, apperr.KindNotFound) {
				abort(c, ErrForbidden)
				return
			}
			abort(c, apperr.Unavailable("auth.self", err))
			return
		}

		if u.ID != claims.ID {
			abort(c, ErrForbidden)
			return
		}

		c.Request = c.Request.WithContext(actorctx.WithActor(c.Request.Context(), u))

		c.Next()
	}
}

// RequirePlaceOwner admits the request only when the place named by :id
// belongs to the token subject. Must run after RequireAuth.
func RequirePlaceOwner(places PlaceGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			abort(c, ErrForbidden)
			return
		}

		p, err := places.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			abort(c, apperr.Unavailable("auth.place_owner", err))
			return
		}

		if p.Owner == "" || p.Owner != claims.ID {
			abort(c, ErrForbidden)
			return
		}

		c.Request = c.Request.WithContext(actorctx.WithPlace(c.Request.Context(), p))

		c.Next()
	}
}
