package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/travelhub/internal/actorctx"
	"github.com/geocoder89/travelhub/internal/apperr"
	"github.com/geocoder89/travelhub/internal/auth"
	"github.com/geocoder89/travelhub/internal/config"
	"github.com/geocoder89/travelhub/internal/domain/place"
	"github.com/geocoder89/travelhub/internal/domain/user"
	"github.com/geocoder89/travelhub/internal/security"
	"github.com/gin-gonic/gin"
)

const dbTimeout = 3 * time.Second

var (
	ErrBadCredentials = apperr.New(apperr.KindValidationFailed, "Incorrect user or password")
	ErrNoActor        = apperr.New(apperr.KindForbidden, "Incorrect user or password")
)

type UserStore interface {
	GetProfile(ctx context.Context, id string) (user.Profile, error)
	Create(ctx context.Context, params user.CreateParams) (user.User, error)
	Find(ctx context.Context, criteria user.Criteria) (user.User, error)
	AddRef(ctx context.Context, id string, list user.RefList, placeID string) (user.User, bool, error)
	RemoveRef(ctx context.Context, id string, list user.RefList, placeID string) (user.User, bool, error)
}

type PlaceGetter interface {
	Get(ctx context.Context, id string) (place.Place, error)
}

type TokenIssuer interface {
	IssueToken(c auth.Claim) (string, error)
}

type UsersHandler struct {
	users  UserStore
	places PlaceGetter
	tokens TokenIssuer
	log    *slog.Logger
}

func NewUsersHandler(users UserStore, places PlaceGetter, tokens TokenIssuer, log *slog.Logger) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UsersHandler{users: users, places: places, tokens: tokens, log: log}
}

// Register stores a new user with a hashed password. The response carries
// the public profile only.
func (h *UsersHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest
	if !BindJSON(ctx, &req) {
		return
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		Fail(ctx, apperr.Wrap(apperr.KindInternal, "users.register", err))
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), dbTimeout)
	defer cancel()

	u, err := h.users.Create(cctx, user.CreateParams{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
	})
	if err != nil {
		Fail(ctx, apperr.Unavailable("users.register", err))
		return
	}

	h.log.InfoContext(ctx.Request.Context(), "user_registered", "user_id", u.ID)

	ctx.JSON(http.StatusCreated, gin.H{"user": user.Expand(u, nil)})
}

func (h *UsersHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), dbTimeout)
	defer cancel()

	u, err := h.users.Find(cctx, user.Criteria{Email: req.Email})
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			Fail(ctx, ErrBadCredentials)
			return
		}
		Fail(ctx, apperr.Unavailable("users.login", err))
		return
	}

	if !security.VerifyPassword(req.Password, u.PasswordHash) {
		Fail(ctx, ErrBadCredentials)
		return
	}

	token, err := h.tokens.IssueToken(auth.Claim{ID: u.ID, Name: u.Name})
	if err != nil {
		Fail(ctx, apperr.Wrap(apperr.KindInternal, "users.login", err))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *UsersHandler) Get(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), dbTimeout)
	defer cancel()

	profile, err := h.users.GetProfile(cctx, ctx.Param("id"))
	if err != nil {
		Fail(ctx, apperr.Unavailable("users.get", err))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": profile})
}

// AddFavorite bookmarks place :id for the authenticated actor. The
// duplicate check runs against the stored list, not the actor snapshot.
func (h *UsersHandler) AddFavorite(ctx *gin.Context) {
	actor, ok := actorctx.ActorFrom(ctx.Request.Context())
	if !ok {
		Fail(ctx, ErrNoActor)
		return
	}

	placeID := ctx.Param("id")

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), dbTimeout)
	defer cancel()

	if _, err := h.places.Get(cctx, placeID); err != nil {
		Fail(ctx, apperr.Unavailable("users.add_favorite", err))
		return
	}

	_, added, err := h.users.AddRef(cctx, actor.ID, user.RefFavorites, placeID)
	if err != nil {
		Fail(ctx, apperr.Unavailable("users.add_favorite", err))
		return
	}
	if !added {
		Fail(ctx, user.ErrDuplicateFavorite)
		return
	}

	h.respondProfile(ctx, cctx, actor.ID)
}

func (h *UsersHandler) RemoveFavorite(ctx *gin.Context) {
	actor, ok := actorctx.ActorFrom(ctx.Request.Context())
	if !ok {
		Fail(ctx, ErrNoActor)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), dbTimeout)
	defer cancel()

	_, removed, err := h.users.RemoveRef(cctx, actor.ID, user.RefFavorites, ctx.Param("id"))
	if err != nil {
		Fail(ctx, apperr.Unavailable("users.remove_favorite", err))
		return
	}
	if !removed {
		Fail(ctx, user.ErrFavoriteNotFound)
		return
	}

	h.respondProfile(ctx, cctx, actor.ID)
}

func (h *UsersHandler) respondProfile(ctx *gin.Context, cctx context.Context, userID string) {
	profile, err := h.users.GetProfile(cctx, userID)
	if err != nil {
		Fail(ctx, apperr.Unavailable("users.profile", err))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": profile})
}
