package place

import (
	"context"
	"strings"

	"github.com/geocoder89/travelhub/internal/apperr"
)

type Category string

const (
	CategoryBeach    Category = "beach"
	CategoryMountain Category = "mountain"
	CategoryForest   Category = "forest"
	CategoryLake     Category = "lake"
	CategoryCity     Category = "city"
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryBeach, CategoryMountain, CategoryForest, CategoryLake, CategoryCity:
		return true
	default:
		return false
	}
}

type Place struct {
	ID          string   `json:"id"`
	City        string   `json:"city"`
	Description string   `json:"description"`
	MustVisit   string   `json:"mustVisit,omitempty"`
	Img         string   `json:"img,omitempty"`
	Category    Category `json:"category,omitempty"`
	Owner       string   `json:"owner,omitempty"`
}

var (
	ErrNotFound      = apperr.New(apperr.KindNotFound, "place not found")
	ErrDuplicateCity = apperr.New(apperr.KindValidationFailed, "city already exists")
	ErrMissingFields = apperr.New(apperr.KindValidationFailed, "city and description are required")
	ErrBadCategory   = apperr.New(apperr.KindValidationFailed, "unknown category")
	ErrBadOwner      = apperr.New(apperr.KindValidationFailed, "owner is not a valid identifier")
	ErrUnknownField  = apperr.New(apperr.KindValidationFailed, "field is not searchable")
)

// Repository is the only gateway to persisted places.
type Repository interface {
	Get(ctx context.Context, id string) (Place, error)
	Create(ctx context.Context, params CreateParams) (Place, error)
	Update(ctx context.Context, id string, patch Patch) (Place, error)
	List(ctx context.Context) ([]Place, error)
	Query(ctx context.Context, field, value string) ([]Place, error)
	Delete(ctx context.Context, id string) (string, error)
}

type CreateParams struct {
	City        string
	Description string
	MustVisit   string
	Img         string
	Category    Category
	Owner       string
}

// Validate checks what every backend requires before writing.
func (p CreateParams) Validate() error {
	if strings.TrimSpace(p.City) == "" || strings.TrimSpace(p.Description) == "" {
		return ErrMissingFields
	}
	if p.Category != "" && !p.Category.IsValid() {
		return ErrBadCategory
	}
	return nil
}

// Patch carries a partial update; nil fields are left untouched.
type Patch struct {
	City        *string
	Description *string
	MustVisit   *string
	Img         *string
	Category    *Category
}

func (p Patch) Validate() error {
	if p.City != nil && strings.TrimSpace(*p.City) == "" {
		return ErrMissingFields
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return ErrMissingFields
	}
	if p.Category != nil && *p.Category != "" && !p.Category.IsValid() {
		return ErrBadCategory
	}
	return nil
}

func (p Patch) IsEmpty() bool {
	return p.City == nil && p.Description == nil && p.MustVisit == nil && p.Img == nil && p.Category == nil
}

// Apply merges the patch into pl and returns the result.
func (p Patch) Apply(pl Place) Place {
	if p.City != nil {
		pl.City = *p.City
	}
	if p.Description != nil {
		pl.Description = *p.Description
	}
	if p.MustVisit != nil {
		pl.MustVisit = *p.MustVisit
	}
	if p.Img != nil {
		pl.Img = *p.Img
	}
	if p.Category != nil {
		pl.Category = *p.Category
	}
	return pl
}

// Searchable fields for Query, keyed by their public JSON name.
var searchable = map[string]struct{}{
	"city":        {},
	"description": {},
	"mustVisit":   {},
	"img":         {},
	"category":    {},
	"owner":       {},
}

// NormalizeField returns the canonical field name, or ErrUnknownField.
func NormalizeField(field string) (string, error) {
	f := strings.TrimSpace(field)

	if _, ok := searchable[f]; ok {
		return f, nil
	}

	// tolerate case differences from clients: "mustvisit", "City"
	for k := range searchable {
		if strings.EqualFold(k, f) {
			return k, nil
		}
	}

	return "", ErrUnknownField
}

// FieldValue reads the named searchable field from pl.
func FieldValue(pl Place, field string) string {
	switch field {
	case "city":
		return pl.City
	case "description":
		return pl.Description
	case "mustVisit":
		return pl.MustVisit
	case "img":
		return pl.Img
	case "category":
		return string(pl.Category)
	case "owner":
		return pl.Owner
	default:
		return ""
	}
}

type CreatePlaceRequest struct {
	City        string   `json:"city" binding:"required,min=1,max=120"`
	Description string   `json:"description" binding:"required,max=2000"`
	MustVisit   string   `json:"mustVisit" binding:"omitempty,max=2000"`
	Img         string   `json:"img" binding:"omitempty,max=2048"`
	Category    Category `json:"category" binding:"omitempty,oneof=beach mountain forest lake city"`
}

func (r CreatePlaceRequest) Params(owner string) CreateParams {
	return CreateParams{
		City:        strings.TrimSpace(r.City),
		Description: r.Description,
		MustVisit:   r.MustVisit,
		Img:         r.Img,
		Category:    r.Category,
		Owner:       owner,
	}
}

// UpdatePlaceRequest is a partial update; absent fields stay as stored.
type UpdatePlaceRequest struct {
	City        *string   `json:"city" binding:"omitempty,min=1,max=120"`
	Description *string   `json:"description" binding:"omitempty,min=1,max=2000"`
	MustVisit   *string   `json:"mustVisit" binding:"omitempty,max=2000"`
	Img         *string   `json:"img" binding:"omitempty,max=2048"`
	Category    *Category `json:"category" binding:"omitempty,oneof=beach mountain forest lake city"`
}

func (r UpdatePlaceRequest) Patch() Patch {
	p := Patch{
		Description: r.Description,
		MustVisit:   r.MustVisit,
		Img:         r.Img,
		Category:    r.Category,
	}

	if r.City != nil {
		city := strings.TrimSpace(*r.City)
		p.City = &city
	}

	return p
}
