package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/geocoder89/travelhub/internal/domain/user"
	"github.com/google/uuid"
)

type UsersRepo struct {
	mu     sync.RWMutex
	items  map[string]user.User
	order  []string
	places *PlacesRepo
}

// NewUsersRepo expands profiles from places; a nil places repo yields empty lists.
func NewUsersRepo(places *PlacesRepo) *UsersRepo {
	return &UsersRepo{
		items:  make(map[string]user.User),
		places: places,
	}
}

func (r *UsersRepo) Get(ctx context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return clone(u), nil
}

func (r *UsersRepo) GetProfile(ctx context.Context, id string) (user.Profile, error) {
	u, err := r.Get(ctx, id)
	if err != nil {
		return user.Profile{}, err
	}

	if r.places == nil {
		return user.Expand(u, nil), nil
	}
	return user.Expand(u, r.places.byIDs(u.ReferencedIDs())), nil
}

func (r *UsersRepo) Create(ctx context.Context, params user.CreateParams) (user.User, error) {
	if err := params.Validate(); err != nil {
		return user.User{}, err
	}

	email := user.NormalizeEmail(params.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if existing.Email == email {
			return user.User{}, user.ErrDuplicateEmail
		}
	}

	u := user.User{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(params.Name),
		Email:         email,
		PasswordHash:  params.PasswordHash,
		FavPlaces:     []string{},
		CreatedPlaces: []string{},
	}

	r.items[u.ID] = u
	r.order = append(r.order, u.ID)

	return clone(u), nil
}

func (r *UsersRepo) Update(ctx context.Context, id string, patch user.Patch) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	updated := patch.Apply(current)

	if updated.Email != current.Email {
		for otherID, other := range r.items {
			if otherID != id && other.Email == updated.Email {
				return user.User{}, user.ErrDuplicateEmail
			}
		}
	}

	r.items[id] = updated
	return clone(updated), nil
}

func (r *UsersRepo) Find(ctx context.Context, c user.Criteria) (user.User, error) {
	if c.IsEmpty() {
		return user.User{}, user.ErrEmptyCriteria
	}

	email := user.NormalizeEmail(c.Email)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		u := r.items[id]
		if email != "" && u.Email != email {
			continue
		}
		if c.Name != "" && u.Name != c.Name {
			continue
		}
		return clone(u), nil
	}

	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) AddRef(ctx context.Context, id string, list user.RefList, placeID string) (user.User, bool, error) {
	if !list.Valid() {
		return user.User{}, false, user.ErrUnknownRefList
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, false, user.ErrNotFound
	}

	refs := u.Refs(list)
	if slices.Contains(refs, placeID) {
		return clone(u), false, nil
	}

	u.SetRefs(list, append(slices.Clone(refs), placeID))
	r.items[id] = u

	return clone(u), true, nil
}

func (r *UsersRepo) RemoveRef(ctx context.Context, id string, list user.RefList, placeID string) (user.User, bool, error) {
	if !list.Valid() {
		return user.User{}, false, user.ErrUnknownRefList
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, false, user.ErrNotFound
	}

	refs := u.Refs(list)
	if !slices.Contains(refs, placeID) {
		return clone(u), false, nil
	}

	u.SetRefs(list, user.Without(refs, placeID))
	r.items[id] = u

	return clone(u), true, nil
}

// clone detaches reference slices so callers cannot mutate stored state.
func clone(u user.User) user.User {
	u.FavPlaces = slices.Clone(u.FavPlaces)
	u.CreatedPlaces = slices.Clone(u.CreatedPlaces)
	if u.FavPlaces == nil {
		u.FavPlaces = []string{}
	}
	if u.CreatedPlaces == nil {
		u.CreatedPlaces = []string{}
	}
	return u
}
