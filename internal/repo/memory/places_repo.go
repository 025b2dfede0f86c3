package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/geocoder89/travelhub/internal/domain/place"
	"github.com/google/uuid"
)

type PlacesRepo struct {
	mu    sync.RWMutex
	items map[string]place.Place
	order []string
}

func NewPlacesRepo() *PlacesRepo {
	return &PlacesRepo{
		items: make(map[string]place.Place),
	}
}

func (r *PlacesRepo) Get(ctx context.Context, id string) (place.Place, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[id]
	if !ok {
		return place.Place{}, place.ErrNotFound
	}
	return p, nil
}

func (r *PlacesRepo) Create(ctx context.Context, params place.CreateParams) (place.Place, error) {
	if err := params.Validate(); err != nil {
		return place.Place{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if existing.City == params.City {
			return place.Place{}, place.ErrDuplicateCity
		}
	}

	p := place.Place{
		ID:          uuid.NewString(),
		City:        params.City,
		Description: params.Description,
		MustVisit:   params.MustVisit,
		Img:         params.Img,
		Category:    params.Category,
		Owner:       params.Owner,
	}

	r.items[p.ID] = p
	r.order = append(r.order, p.ID)

	return p, nil
}

func (r *PlacesRepo) Update(ctx context.Context, id string, patch place.Patch) (place.Place, error) {
	if err := patch.Validate(); err != nil {
		return place.Place{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[id]
	if !ok {
		return place.Place{}, place.ErrNotFound
	}

	updated := patch.Apply(current)

	if updated.City != current.City {
		for otherID, other := range r.items {
			if otherID != id && other.City == updated.City {
				return place.Place{}, place.ErrDuplicateCity
			}
		}
	}

	r.items[id] = updated
	return updated, nil
}

func (r *PlacesRepo) List(ctx context.Context) ([]place.Place, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]place.Place, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id])
	}
	return out, nil
}

func (r *PlacesRepo) Query(ctx context.Context, field, value string) ([]place.Place, error) {
	key, err := place.NormalizeField(field)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]place.Place, 0)
	for _, id := range r.order {
		p := r.items[id]
		if strings.EqualFold(place.FieldValue(p, key), value) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *PlacesRepo) Delete(ctx context.Context, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return "", place.ErrNotFound
	}

	delete(r.items, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return id, nil
}

// byIDs snapshots the requested places for profile expansion.
func (r *PlacesRepo) byIDs(ids []string) map[string]place.Place {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]place.Place, len(ids))
	for _, id := range ids {
		if p, ok := r.items[id]; ok {
			out[id] = p
		}
	}
	return out
}
