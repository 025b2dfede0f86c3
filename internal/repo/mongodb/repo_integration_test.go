package mongodb

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/travelhub/internal/domain/place"
	"github.com/geocoder89/travelhub/internal/domain/user"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func setupMongo(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := Connect(ctx, uri)
	if err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	db := client.Database("travelhub_repo_test")
	if err := db.Drop(ctx); err != nil {
		t.Fatalf("drop db: %v", err)
	}
	if err := EnsureIndexes(ctx, db); err != nil {
		t.Fatalf("EnsureIndexes error: %v", err)
	}

	return db
}

func TestMongoRepos_RoundTrip(t *testing.T) {
	db := setupMongo(t)
	ctx := context.Background()

	places := NewPlacesRepo(db, nil)
	users := NewUsersRepo(db, places, nil)

	u, err := users.Create(ctx, user.CreateParams{Name: "Pepe", Email: "Pepe@gmail.com", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("users.Create error: %v", err)
	}

	if _, err := users.Create(ctx, user.CreateParams{Name: "Dup", Email: "pepe@gmail.com", PasswordHash: "h"}); !errors.Is(err, user.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	p, err := places.Create(ctx, place.CreateParams{City: "Madrid", Description: "capital", Category: place.CategoryCity, Owner: u.ID})
	if err != nil {
		t.Fatalf("places.Create error: %v", err)
	}
	if p.Owner != u.ID {
		t.Fatalf("owner = %q, want %q", p.Owner, u.ID)
	}

	if _, err := places.Create(ctx, place.CreateParams{City: "Madrid", Description: "again"}); !errors.Is(err, place.ErrDuplicateCity) {
		t.Fatalf("expected ErrDuplicateCity, got %v", err)
	}

	found, err := places.Query(ctx, "city", "MADRID")
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(found) != 1 || found[0].ID != p.ID {
		t.Fatalf("unexpected query result: %+v", found)
	}

	byOwner, err := places.Query(ctx, "owner", u.ID)
	if err != nil || len(byOwner) != 1 {
		t.Fatalf("owner query = (%+v, %v)", byOwner, err)
	}

	created := []string{p.ID}
	favs := []string{p.ID}
	if _, err := users.Update(ctx, u.ID, user.Patch{CreatedPlaces: &created, FavPlaces: &favs}); err != nil {
		t.Fatalf("users.Update error: %v", err)
	}

	bad := []string{"not-an-object-id"}
	if _, err := users.Update(ctx, u.ID, user.Patch{FavPlaces: &bad}); !errors.Is(err, user.ErrBadReference) {
		t.Fatalf("expected ErrBadReference, got %v", err)
	}

	profile, err := users.GetProfile(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetProfile error: %v", err)
	}
	if len(profile.FavPlaces) != 1 || profile.FavPlaces[0].City != "Madrid" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	if _, err := places.Get(ctx, "123"); !errors.Is(err, place.ErrNotFound) {
		t.Fatalf("malformed id: expected ErrNotFound, got %v", err)
	}

	if _, err := places.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := places.Delete(ctx, p.ID); !errors.Is(err, place.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMongoUsersRepo_RefChangesAreAtomic(t *testing.T) {
	users := NewUsersRepo(setupMongo(t), nil, nil)
	ctx := context.Background()

	u, err := users.Create(ctx, user.CreateParams{Name: "Ana", Email: "ana@gmail.com", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("users.Create error: %v", err)
	}

	const n = 10
	ids := make([]string, n)
	for i := range ids {
		ids[i] = primitive.NewObjectID().Hex()
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, _, err := users.AddRef(ctx, u.ID, user.RefCreated, id); err != nil {
				t.Errorf("AddRef(%s) error: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	got, err := users.Get(ctx, u.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(got.CreatedPlaces) != n {
		t.Fatalf("createdPlaces has %d entries, want %d", len(got.CreatedPlaces), n)
	}

	if _, added, err := users.AddRef(ctx, u.ID, user.RefCreated, ids[0]); err != nil || added {
		t.Fatalf("re-adding = (%v, %v), want no change", added, err)
	}

	got, removed, err := users.RemoveRef(ctx, u.ID, user.RefCreated, ids[0])
	if err != nil || !removed || len(got.CreatedPlaces) != n-1 {
		t.Fatalf("RemoveRef = (%d entries, %v, %v)", len(got.CreatedPlaces), removed, err)
	}
	if _, removed, err := users.RemoveRef(ctx, u.ID, user.RefFavorites, ids[0]); err != nil || removed {
		t.Fatalf("removing absent favorite = (%v, %v)", removed, err)
	}

	if _, _, err := users.AddRef(ctx, primitive.NewObjectID().Hex(), user.RefFavorites, ids[1]); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := users.AddRef(ctx, u.ID, user.RefFavorites, "bogus"); !errors.Is(err, user.ErrBadReference) {
		t.Fatalf("expected ErrBadReference, got %v", err)
	}
}
