package user

import (
	"context"
	"slices"
	"strings"

	"github.com/geocoder89/travelhub/internal/apperr"
	"github.com/geocoder89/travelhub/internal/domain/place"
)

// User is the stored record. Place references are identifiers.
type User struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	PasswordHash  string   `json:"-"` // never expose hash in JSON
	FavPlaces     []string `json:"favPlaces"`
	CreatedPlaces []string `json:"createdPlaces"`
}

// Profile is the outward representation with place references expanded.
type Profile struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	FavPlaces     []place.Place `json:"favPlaces"`
	CreatedPlaces []place.Place `json:"createdPlaces"`
}

var (
	ErrNotFound          = apperr.New(apperr.KindNotFound, "user not found")
	ErrDuplicateEmail    = apperr.New(apperr.KindValidationFailed, "email is already in use")
	ErrMissingFields     = apperr.New(apperr.KindValidationFailed, "name, email and password are required")
	ErrBadReference      = apperr.New(apperr.KindValidationFailed, "place reference is not a valid identifier")
	ErrEmptyCriteria     = apperr.New(apperr.KindValidationFailed, "search criteria must not be empty")
	ErrDuplicateFavorite = apperr.New(apperr.KindValidationFailed, "duplicate favorites")
	ErrFavoriteNotFound  = apperr.New(apperr.KindNotFound, "place is not a favorite")
	ErrUnknownRefList    = apperr.New(apperr.KindInternal, "unknown place reference list")
)

// RefList names one of the user's place reference lists.
type RefList string

const (
	RefFavorites RefList = "favPlaces"
	RefCreated   RefList = "createdPlaces"
)

func (l RefList) Valid() bool {
	return l == RefFavorites || l == RefCreated
}

// Repository is the only gateway to persisted users.
type Repository interface {
	Get(ctx context.Context, id string) (User, error)
	GetProfile(ctx context.Context, id string) (Profile, error)
	Create(ctx context.Context, params CreateParams) (User, error)
	Update(ctx context.Context, id string, patch Patch) (User, error)
	Find(ctx context.Context, criteria Criteria) (User, error)

	// AddRef appends placeID to list in one atomic write unless it is
	// already there; added reports whether the stored list changed.
	AddRef(ctx context.Context, id string, list RefList, placeID string) (u User, added bool, err error)
	// RemoveRef drops placeID from list in one atomic write; removed reports
	// whether it was present.
	RemoveRef(ctx context.Context, id string, list RefList, placeID string) (u User, removed bool, err error)
}

type CreateParams struct {
	Name         string
	Email        string
	PasswordHash string
}

func (p CreateParams) Validate() error {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Email) == "" || p.PasswordHash == "" {
		return ErrMissingFields
	}
	return nil
}

// Patch carries a partial update; nil fields are left untouched.
type Patch struct {
	Name          *string
	Email         *string
	PasswordHash  *string
	FavPlaces     *[]string
	CreatedPlaces *[]string
}

func (p Patch) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = NormalizeEmail(*p.Email)
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.FavPlaces != nil {
		u.FavPlaces = slices.Clone(*p.FavPlaces)
	}
	if p.CreatedPlaces != nil {
		u.CreatedPlaces = slices.Clone(*p.CreatedPlaces)
	}
	return u
}

// Criteria is a partial-field match; empty fields are ignored.
type Criteria struct {
	Email string
	Name  string
}

func (c Criteria) IsEmpty() bool {
	return strings.TrimSpace(c.Email) == "" && strings.TrimSpace(c.Name) == ""
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Refs returns the list named by l.
func (u User) Refs(l RefList) []string {
	if l == RefFavorites {
		return u.FavPlaces
	}
	return u.CreatedPlaces
}

// SetRefs replaces the list named by l.
func (u *User) SetRefs(l RefList, ids []string) {
	if l == RefFavorites {
		u.FavPlaces = ids
		return
	}
	u.CreatedPlaces = ids
}

// Without returns ids minus every occurrence of id.
func Without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Expand resolves u's references using byID; dangling references are skipped.
func Expand(u User, byID map[string]place.Place) Profile {
	pick := func(ids []string) []place.Place {
		out := make([]place.Place, 0, len(ids))
		for _, id := range ids {
			if p, ok := byID[id]; ok {
				out = append(out, p)
			}
		}
		return out
	}

	return Profile{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		FavPlaces:     pick(u.FavPlaces),
		CreatedPlaces: pick(u.CreatedPlaces),
	}
}

// ReferencedIDs lists every distinct place id u points at.
func (u User) ReferencedIDs() []string {
	seen := make(map[string]struct{}, len(u.FavPlaces)+len(u.CreatedPlaces))
	out := make([]string, 0, len(u.FavPlaces)+len(u.CreatedPlaces))

	for _, id := range append(slices.Clone(u.FavPlaces), u.CreatedPlaces...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=80"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=1,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
