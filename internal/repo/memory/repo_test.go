package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/geocoder89/travelhub/internal/apperr"
	"github.com/geocoder89/travelhub/internal/domain/place"
	"github.com/geocoder89/travelhub/internal/domain/user"
)

func seedPlace(t *testing.T, r *PlacesRepo, city string) place.Place {
	t.Helper()

	p, err := r.Create(context.Background(), place.CreateParams{
		City:        city,
		Description: "nice",
		Category:    place.CategoryCity,
		Owner:       "u1",
	})
	if err != nil {
		t.Fatalf("Create(%q) error: %v", city, err)
	}
	return p
}

func TestPlacesRepo_CreateGetDelete(t *testing.T) {
	r := NewPlacesRepo()
	ctx := context.Background()

	p := seedPlace(t, r, "Madrid")

	got, err := r.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != p {
		t.Fatalf("got %+v, want %+v", got, p)
	}

	id, err := r.Delete(ctx, p.ID)
	if err != nil || id != p.ID {
		t.Fatalf("Delete = (%q, %v), want (%q, nil)", id, err, p.ID)
	}

	if _, err := r.Get(ctx, p.ID); !errors.Is(err, place.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := r.Delete(ctx, p.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not_found on second delete, got %v", err)
	}
}

func TestPlacesRepo_CreateRejects(t *testing.T) {
	r := NewPlacesRepo()
	seedPlace(t, r, "Madrid")

	tests := []struct {
		name   string
		params place.CreateParams
		want   error
	}{
		{"missing_city", place.CreateParams{Description: "d"}, place.ErrMissingFields},
		{"missing_description", place.CreateParams{City: "Roma"}, place.ErrMissingFields},
		{"bad_category", place.CreateParams{City: "Roma", Description: "d", Category: "desert"}, place.ErrBadCategory},
		{"duplicate_city", place.CreateParams{City: "Madrid", Description: "d"}, place.ErrDuplicateCity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Create(context.Background(), tt.params)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if !apperr.IsKind(err, apperr.KindValidationFailed) {
				t.Fatalf("expected validation_failed, got %s", apperr.KindOf(err))
			}
		})
	}
}

func TestPlacesRepo_QueryCaseInsensitive(t *testing.T) {
	r := NewPlacesRepo()
	ctx := context.Background()

	madrid := seedPlace(t, r, "Madrid")
	seedPlace(t, r, "Madridejos")

	got, err := r.Query(ctx, "city", "mAdRiD")
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(got) != 1 || got[0].ID != madrid.ID {
		t.Fatalf("expected only Madrid, got %+v", got)
	}

	got, err = r.Query(ctx, "city", "Atlantis")
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}

	if _, err := r.Query(ctx, "password", "x"); !errors.Is(err, place.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestPlacesRepo_UpdatePartial(t *testing.T) {
	r := NewPlacesRepo()
	ctx := context.Background()

	p := seedPlace(t, r, "Lisboa")
	seedPlace(t, r, "Porto")

	desc := "pasteis de nata"
	got, err := r.Update(ctx, p.ID, place.Patch{Description: &desc})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if got.City != "Lisboa" || got.Description != desc || got.Owner != "u1" {
		t.Fatalf("unexpected place after update: %+v", got)
	}

	clash := "Porto"
	if _, err := r.Update(ctx, p.ID, place.Patch{City: &clash}); !errors.Is(err, place.ErrDuplicateCity) {
		t.Fatalf("expected ErrDuplicateCity, got %v", err)
	}

	if _, err := r.Update(ctx, "nope", place.Patch{Description: &desc}); !errors.Is(err, place.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPlacesRepo_ListKeepsInsertionOrder(t *testing.T) {
	r := NewPlacesRepo()

	a := seedPlace(t, r, "A")
	b := seedPlace(t, r, "B")
	c := seedPlace(t, r, "C")

	if _, err := r.Delete(context.Background(), b.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	got, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 2 || got[0].ID != a.ID || got[1].ID != c.ID {
		t.Fatalf("unexpected list: %+v", got)
	}
}

func TestUsersRepo_CreateAndFind(t *testing.T) {
	users := NewUsersRepo(NewPlacesRepo())
	ctx := context.Background()

	u, err := users.Create(ctx, user.CreateParams{Name: "Pepe", Email: "Pepe@Gmail.com", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if u.Email != "pepe@gmail.com" {
		t.Fatalf("expected normalized email, got %q", u.Email)
	}
	if u.FavPlaces == nil || u.CreatedPlaces == nil {
		t.Fatalf("expected empty reference lists, got %+v", u)
	}

	if _, err := users.Create(ctx, user.CreateParams{Name: "Other", Email: "pepe@gmail.com", PasswordHash: "h"}); !errors.Is(err, user.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	found, err := users.Find(ctx, user.Criteria{Email: " PEPE@gmail.com"})
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if found.ID != u.ID || found.PasswordHash != "h" {
		t.Fatalf("unexpected match: %+v", found)
	}

	if _, err := users.Find(ctx, user.Criteria{Email: "ghost@gmail.com"}); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := users.Find(ctx, user.Criteria{}); !errors.Is(err, user.ErrEmptyCriteria) {
		t.Fatalf("expected ErrEmptyCriteria, got %v", err)
	}
}

func TestUsersRepo_GetProfileExpandsPlaces(t *testing.T) {
	places := NewPlacesRepo()
	users := NewUsersRepo(places)
	ctx := context.Background()

	fav := seedPlace(t, places, "Sevilla")
	mine := seedPlace(t, places, "Granada")

	u, err := users.Create(ctx, user.CreateParams{Name: "Ana", Email: "ana@gmail.com", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	favs := []string{fav.ID, "deleted-place"}
	created := []string{mine.ID}
	if _, err := users.Update(ctx, u.ID, user.Patch{FavPlaces: &favs, CreatedPlaces: &created}); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	p, err := users.GetProfile(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetProfile error: %v", err)
	}

	if len(p.FavPlaces) != 1 || p.FavPlaces[0] != fav {
		t.Fatalf("unexpected favPlaces: %+v", p.FavPlaces)
	}
	if len(p.CreatedPlaces) != 1 || p.CreatedPlaces[0] != mine {
		t.Fatalf("unexpected createdPlaces: %+v", p.CreatedPlaces)
	}

	if _, err := users.GetProfile(ctx, "missing"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUsersRepo_GetReturnsDetachedCopy(t *testing.T) {
	users := NewUsersRepo(nil)
	ctx := context.Background()

	u, err := users.Create(ctx, user.CreateParams{Name: "Ana", Email: "ana@gmail.com", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	favs := []string{"p1"}
	if _, err := users.Update(ctx, u.ID, user.Patch{FavPlaces: &favs}); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	favs[0] = "mutated"

	got, err := users.Get(ctx, u.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	got.FavPlaces[0] = "mutated-again"

	again, _ := users.Get(ctx, u.ID)
	if again.FavPlaces[0] != "p1" {
		t.Fatalf("stored state was mutated: %+v", again.FavPlaces)
	}
}

func TestUsersRepo_AddRemoveRef(t *testing.T) {
	users := NewUsersRepo(nil)
	ctx := context.Background()

	u, err := users.Create(ctx, user.CreateParams{Name: "Ana", Email: "ana@gmail.com", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	got, added, err := users.AddRef(ctx, u.ID, user.RefFavorites, "p1")
	if err != nil || !added {
		t.Fatalf("AddRef = (%v, %v)", added, err)
	}
	if len(got.FavPlaces) != 1 || len(got.CreatedPlaces) != 0 {
		t.Fatalf("unexpected lists: %+v", got)
	}

	if _, added, _ := users.AddRef(ctx, u.ID, user.RefFavorites, "p1"); added {
		t.Fatalf("duplicate reference was added")
	}

	got, removed, err := users.RemoveRef(ctx, u.ID, user.RefFavorites, "p1")
	if err != nil || !removed || len(got.FavPlaces) != 0 {
		t.Fatalf("RemoveRef = (%+v, %v, %v)", got, removed, err)
	}
	if _, removed, _ := users.RemoveRef(ctx, u.ID, user.RefFavorites, "p1"); removed {
		t.Fatalf("absent reference reported as removed")
	}

	if _, _, err := users.AddRef(ctx, "ghost", user.RefCreated, "p1"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := users.AddRef(ctx, u.ID, user.RefList("email"), "p1"); !errors.Is(err, user.ErrUnknownRefList) {
		t.Fatalf("expected ErrUnknownRefList, got %v", err)
	}
}

func TestUsersRepo_ConcurrentAddRefKeepsEveryLink(t *testing.T) {
	users := NewUsersRepo(nil)
	ctx := context.Background()

	u, err := users.Create(ctx, user.CreateParams{Name: "Ana", Email: "ana@gmail.com", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, _, err := users.AddRef(ctx, u.ID, user.RefCreated, fmt.Sprintf("p%d", i)); err != nil {
				t.Errorf("AddRef(%d) error: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := users.Get(ctx, u.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(got.CreatedPlaces) != n {
		t.Fatalf("createdPlaces has %d entries, want %d", len(got.CreatedPlaces), n)
	}
}
