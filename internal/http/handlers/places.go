package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/travelhub/internal/actorctx"
	"github.com/geocoder89/travelhub/internal/apperr"
	"github.com/geocoder89/travelhub/internal/config"
	"github.com/geocoder89/travelhub/internal/domain/place"
	"github.com/geocoder89/travelhub/internal/domain/user"
	"github.com/geocoder89/travelhub/internal/jobs"
	"github.com/geocoder89/travelhub/internal/observability"
	"github.com/gin-gonic/gin"
)

var ErrRepairUnavailable = errors.New("repair queue unavailable")

type PlaceStore interface {
	Get(ctx context.Context, id string) (place.Place, error)
	Create(ctx context.Context, params place.CreateParams) (place.Place, error)
	Update(ctx context.Context, id string, patch place.Patch) (place.Place, error)
	List(ctx context.Context) ([]place.Place, error)
	Query(ctx context.Context, field, value string) ([]place.Place, error)
	Delete(ctx context.Context, id string) (string, error)
}

// OwnerStore is the slice of the user repository that keeps createdPlaces
// in step with the places collection.
type OwnerStore interface {
	AddRef(ctx context.Context, id string, list user.RefList, placeID string) (user.User, bool, error)
	RemoveRef(ctx context.Context, id string, list user.RefList, placeID string) (user.User, bool, error)
}

type RepairQueue interface {
	Enqueue(ctx context.Context, j jobs.Job) error
}

type PlacesHandler struct {
	places  PlaceStore
	owners  OwnerStore
	repairs RepairQueue
	prom    *observability.Prom
	log     *slog.Logger
}

// NewPlacesHandler wires the handler. repairs and prom may be nil; without a
// queue a failed owner link is compensated by deleting the new place.
func NewPlacesHandler(places PlaceStore, owners OwnerStore, repairs RepairQueue, prom *observability.Prom, log *slog.Logger) *PlacesHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PlacesHandler{places: places, owners: owners, repairs: repairs, prom: prom, log: log}
}

func (h *PlacesHandler) List(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), dbTimeout)
	defer cancel()

	places, err := h.places.List(cctx)
	if err != nil {
		Fail(ctx, apperr.Unavailable("places.list", err))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"places": places})
}

func (h *PlacesHandler) Find(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), dbTimeout)
	defer cancel()

	places, err := h.places.Query(cctx, ctx.Param("key"), ctx.Param("value"))
	if err != nil {
		Fail(ctx, apperr.Unavailable("places.find", err))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"places": places})
}

func (h *PlacesHandler) Get(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), dbTimeout)
	defer cancel()

	p, err := h.places.Get(cctx, ctx.Param("id"))
	if err != nil {
		Fail(ctx, apperr.Unavailable("places.get", err))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"places": p})
}

// Create stores the place owned by the actor, then links it into the
// actor's createdPlaces.
func (h *PlacesHandler) Create(ctx *gin.Context) {
	actor, ok := actorctx.ActorFrom(ctx.Request.Context())
	if !ok {
		Fail(ctx, ErrNoActor)
		return
	}

	var req place.CreatePlaceRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), dbTimeout)
	defer cancel()

	p, err := h.places.Create(cctx, req.Params(actor.ID))
	if err != nil {
		Fail(ctx, apperr.Unavailable("places.create", err))
		return
	}

	if _, _, linkErr := h.owners.AddRef(cctx, actor.ID, user.RefCreated, p.ID); linkErr != nil {
		// the link write may have spent the request deadline
		rctx, rcancel := detached(ctx)
		defer rcancel()

		if err := h.repair(rctx, jobs.JobLinkCreatedPlace, actor.ID, p.ID); err != nil {
			h.log.ErrorContext(rctx, "place_link_failed",
				"place_id", p.ID, "user_id", actor.ID, "err", linkErr, "repair_err", err)

			if _, delErr := h.places.Delete(rctx, p.ID); delErr != nil {
				h.log.ErrorContext(rctx, "place_compensation_failed", "place_id", p.ID, "err", delErr)
			}

			Fail(ctx, apperr.Unavailable("places.create", linkErr))
			return
		}

		h.log.WarnContext(rctx, "place_link_deferred", "place_id", p.ID, "user_id", actor.ID, "err", linkErr)
	}

	ctx.JSON(http.StatusCreated, gin.H{"place": p})
}

func (h *PlacesHandler) Update(ctx *gin.Context) {
	var req place.UpdatePlaceRequest
	if !BindJSON(ctx, &req) {
		return
	}

	patch := req.Patch()
	id := ctx.Param("id")

	// the ownership stage already loaded the place
	if patch.IsEmpty() {
		if p, ok := actorctx.PlaceFrom(ctx.Request.Context()); ok && p.ID == id {
			ctx.JSON(http.StatusOK, gin.H{"places": p})
			return
		}
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), dbTimeout)
	defer cancel()

	var (
		p   place.Place
		err error
	)
	if patch.IsEmpty() {
		p, err = h.places.Get(cctx, id)
	} else {
		p, err = h.places.Update(cctx, id, patch)
	}
	if err != nil {
		Fail(ctx, apperr.Unavailable("places.update", err))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"places": p})
}

// Delete removes the place and pulls it from the owner's createdPlaces. The
// place is gone once the first write succeeds, so a failed unlink is handed
// to the repair queue and only logged.
func (h *PlacesHandler) Delete(ctx *gin.Context) {
	ownerID, ok := actorctx.UserIDFrom(ctx.Request.Context())
	if !ok {
		Fail(ctx, ErrNoActor)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), dbTimeout)
	defer cancel()

	id, err := h.places.Delete(cctx, ctx.Param("id"))
	if err != nil {
		Fail(ctx, apperr.Unavailable("places.delete", err))
		return
	}

	if unlinkErr := h.unlink(cctx, ownerID, id); unlinkErr != nil {
		rctx, rcancel := detached(ctx)
		defer rcancel()

		if err := h.repair(rctx, jobs.JobUnlinkCreatedPlace, ownerID, id); err != nil {
			h.log.ErrorContext(rctx, "place_unlink_failed",
				"place_id", id, "user_id", ownerID, "err", unlinkErr, "repair_err", err)
		} else {
			h.log.WarnContext(rctx, "place_unlink_deferred", "place_id", id, "user_id", ownerID, "err", unlinkErr)
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"id": id})
}

// unlink treats a vanished owner as already unlinked.
func (h *PlacesHandler) unlink(ctx context.Context, ownerID, placeID string) error {
	_, _, err := h.owners.RemoveRef(ctx, ownerID, user.RefCreated, placeID)
	if apperr.IsKind(err, apperr.KindNotFound) {
		return nil
	}
	return err
}

// detached outlives both the client and the request deadline so recovery
// writes still get their own time budget.
func detached(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return config.WithTimeout(context.WithoutCancel(ctx.Request.Context()), dbTimeout)
}

func (h *PlacesHandler) repair(ctx context.Context, t jobs.JobType, userID, placeID string) error {
	if h.repairs == nil {
		return ErrRepairUnavailable
	}

	j, err := jobs.NewRepairJob(t, jobs.RepairPayload{
		UserID:    userID,
		PlaceID:   placeID,
		RequestID: actorctx.RequestIDFrom(ctx),
	})
	if err != nil {
		return err
	}

	if err := h.repairs.Enqueue(ctx, j); err != nil {
		return err
	}

	if h.prom != nil {
		h.prom.RepairEnqueued.WithLabelValues(string(t)).Inc()
	}
	return nil
}
