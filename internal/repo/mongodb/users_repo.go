package mongodb

import (
	"context"
	"strings"

	"github.com/geocoder89/travelhub/internal/apperr"
	"github.com/geocoder89/travelhub/internal/domain/user"
	"github.com/geocoder89/travelhub/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UsersRepo struct {
	col    *mongo.Collection
	places *PlacesRepo
	observer
}

func NewUsersRepo(db *mongo.Database, places *PlacesRepo, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{
		col:      db.Collection(usersCollection),
		places:   places,
		observer: observer{prom: prom},
	}
}

func (r *UsersRepo) Get(ctx context.Context, id string) (user.User, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	return doc.toDomain(), nil
}

func (r *UsersRepo) GetProfile(ctx context.Context, id string) (user.Profile, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return user.Profile{}, err
	}

	refs := make([]primitive.ObjectID, 0, len(doc.FavPlaces)+len(doc.CreatedPlaces))
	refs = append(refs, doc.FavPlaces...)
	refs = append(refs, doc.CreatedPlaces...)

	byID, err := r.places.byIDs(ctx, refs)
	if err != nil {
		return user.Profile{}, err
	}

	return user.Expand(doc.toDomain(), byID), nil
}

func (r *UsersRepo) Create(ctx context.Context, params user.CreateParams) (user.User, error) {
	if err := params.Validate(); err != nil {
		return user.User{}, err
	}

	doc := userDoc{
		Name:          strings.TrimSpace(params.Name),
		Email:         user.NormalizeEmail(params.Email),
		Password:      params.PasswordHash,
		FavPlaces:     []primitive.ObjectID{},
		CreatedPlaces: []primitive.ObjectID{},
	}

	err := r.observe("users.create", func() error {
		res, err := r.col.InsertOne(ctx, doc)
		if err != nil {
			return err
		}
		doc.ID = res.InsertedID.(primitive.ObjectID)
		return nil
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, user.ErrDuplicateEmail
		}
		return user.User{}, apperr.Wrap(apperr.KindUnavailable, "users.create", err)
	}

	return doc.toDomain(), nil
}

func (r *UsersRepo) Update(ctx context.Context, id string, patch user.Patch) (user.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return user.User{}, user.ErrNotFound
	}

	set := bson.M{}
	if patch.Name != nil {
		set["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Email != nil {
		set["email"] = user.NormalizeEmail(*patch.Email)
	}
	if patch.PasswordHash != nil {
		set["password"] = *patch.PasswordHash
	}
	if patch.FavPlaces != nil {
		refs, err := objectIDs(*patch.FavPlaces)
		if err != nil {
			return user.User{}, err
		}
		set["favPlaces"] = refs
	}
	if patch.CreatedPlaces != nil {
		refs, err := objectIDs(*patch.CreatedPlaces)
		if err != nil {
			return user.User{}, err
		}
		set["createdPlaces"] = refs
	}

	if len(set) == 0 {
		return r.Get(ctx, id)
	}

	var doc userDoc
	err = r.observe("users.update", func() error {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		return r.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc)
	})
	if err != nil {
		switch {
		case isNoDocuments(err):
			return user.User{}, user.ErrNotFound
		case mongo.IsDuplicateKeyError(err):
			return user.User{}, user.ErrDuplicateEmail
		}
		return user.User{}, apperr.Wrap(apperr.KindUnavailable, "users.update", err)
	}

	return doc.toDomain(), nil
}

func (r *UsersRepo) Find(ctx context.Context, c user.Criteria) (user.User, error) {
	if c.IsEmpty() {
		return user.User{}, user.ErrEmptyCriteria
	}

	filter := bson.M{}
	if email := user.NormalizeEmail(c.Email); email != "" {
		filter["email"] = email
	}
	if c.Name != "" {
		filter["name"] = c.Name
	}

	var doc userDoc
	err := r.observe("users.find", func() error {
		return r.col.FindOne(ctx, filter).Decode(&doc)
	})
	if err != nil {
		if isNoDocuments(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, apperr.Wrap(apperr.KindUnavailable, "users.find", err)
	}

	return doc.toDomain(), nil
}

func (r *UsersRepo) get(ctx context.Context, id string) (userDoc, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return userDoc{}, user.ErrNotFound
	}

	var doc userDoc
	err = r.observe("users.get", func() error {
		return r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	})
	if err != nil {
		if isNoDocuments(err) {
			return userDoc{}, user.ErrNotFound
		}
		return userDoc{}, apperr.Wrap(apperr.KindUnavailable, "users.get", err)
	}

	return doc, nil
}

// AddRef and RemoveRef change one array element server-side, so concurrent
// writers never overwrite each other's list.
func (r *UsersRepo) AddRef(ctx context.Context, id string, list user.RefList, placeID string) (user.User, bool, error) {
	oid, ref, err := refTarget(id, list, placeID)
	if err != nil {
		return user.User{}, false, err
	}

	field := string(list)
	filter := bson.M{"_id": oid, field: bson.M{"$ne": ref}}
	update := bson.M{"$addToSet": bson.M{field: ref}}

	return r.changeRef(ctx, "users.add_ref", id, filter, update)
}

func (r *UsersRepo) RemoveRef(ctx context.Context, id string, list user.RefList, placeID string) (user.User, bool, error) {
	oid, ref, err := refTarget(id, list, placeID)
	if err != nil {
		return user.User{}, false, err
	}

	field := string(list)
	filter := bson.M{"_id": oid, field: ref}
	update := bson.M{"$pull": bson.M{field: ref}}

	return r.changeRef(ctx, "users.remove_ref", id, filter, update)
}

// changeRef applies update when filter matches. No match means either the
// user is gone or the list already had the wanted shape.
func (r *UsersRepo) changeRef(ctx context.Context, op, id string, filter, update bson.M) (user.User, bool, error) {
	var doc userDoc
	err := r.observe(op, func() error {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		return r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	})
	if err == nil {
		return doc.toDomain(), true, nil
	}
	if !isNoDocuments(err) {
		return user.User{}, false, apperr.Wrap(apperr.KindUnavailable, op, err)
	}

	u, err := r.Get(ctx, id)
	if err != nil {
		return user.User{}, false, err
	}
	return u, false, nil
}

func refTarget(id string, list user.RefList, placeID string) (primitive.ObjectID, primitive.ObjectID, error) {
	if !list.Valid() {
		return primitive.NilObjectID, primitive.NilObjectID, user.ErrUnknownRefList
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, user.ErrNotFound
	}

	ref, err := primitive.ObjectIDFromHex(placeID)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, user.ErrBadReference
	}

	return oid, ref, nil
}
