package mongodb

import (
	"context"
	"regexp"

	"github.com/geocoder89/travelhub/internal/apperr"
	"github.com/geocoder89/travelhub/internal/domain/place"
	"github.com/geocoder89/travelhub/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PlacesRepo struct {
	col *mongo.Collection
	observer
}

func NewPlacesRepo(db *mongo.Database, prom *observability.Prom) *PlacesRepo {
	return &PlacesRepo{
		col:      db.Collection(placesCollection),
		observer: observer{prom: prom},
	}
}

func (r *PlacesRepo) Get(ctx context.Context, id string) (place.Place, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return place.Place{}, place.ErrNotFound
	}

	var doc placeDoc
	err = r.observe("places.get", func() error {
		return r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	})
	if err != nil {
		if isNoDocuments(err) {
			return place.Place{}, place.ErrNotFound
		}
		return place.Place{}, apperr.Wrap(apperr.KindUnavailable, "places.get", err)
	}

	return doc.toDomain(), nil
}

func (r *PlacesRepo) Create(ctx context.Context, params place.CreateParams) (place.Place, error) {
	if err := params.Validate(); err != nil {
		return place.Place{}, err
	}

	doc := placeDoc{
		City:        params.City,
		Description: params.Description,
		MustVisit:   params.MustVisit,
		Img:         params.Img,
		Category:    string(params.Category),
	}

	if params.Owner != "" {
		owner, err := primitive.ObjectIDFromHex(params.Owner)
		if err != nil {
			return place.Place{}, place.ErrBadOwner
		}
		doc.Owner = owner
	}

	err := r.observe("places.create", func() error {
		res, err := r.col.InsertOne(ctx, doc)
		if err != nil {
			return err
		}
		doc.ID = res.InsertedID.(primitive.ObjectID)
		return nil
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return place.Place{}, place.ErrDuplicateCity
		}
		return place.Place{}, apperr.Wrap(apperr.KindUnavailable, "places.create", err)
	}

	return doc.toDomain(), nil
}

func (r *PlacesRepo) Update(ctx context.Context, id string, patch place.Patch) (place.Place, error) {
	if err := patch.Validate(); err != nil {
		return place.Place{}, err
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return place.Place{}, place.ErrNotFound
	}

	set := bson.M{}
	if patch.City != nil {
		set["city"] = *patch.City
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.MustVisit != nil {
		set["mustVisit"] = *patch.MustVisit
	}
	if patch.Img != nil {
		set["img"] = *patch.Img
	}
	if patch.Category != nil {
		set["category"] = string(*patch.Category)
	}

	if len(set) == 0 {
		return r.Get(ctx, id)
	}

	var doc placeDoc
	err = r.observe("places.update", func() error {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		return r.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc)
	})
	if err != nil {
		switch {
		case isNoDocuments(err):
			return place.Place{}, place.ErrNotFound
		case mongo.IsDuplicateKeyError(err):
			return place.Place{}, place.ErrDuplicateCity
		}
		return place.Place{}, apperr.Wrap(apperr.KindUnavailable, "places.update", err)
	}

	return doc.toDomain(), nil
}

func (r *PlacesRepo) List(ctx context.Context) ([]place.Place, error) {
	return r.find(ctx, "places.list", bson.M{})
}

// Query matches one field case-insensitively and in full.
func (r *PlacesRepo) Query(ctx context.Context, field, value string) ([]place.Place, error) {
	key, err := place.NormalizeField(field)
	if err != nil {
		return nil, err
	}

	if key == "owner" {
		oid, err := primitive.ObjectIDFromHex(value)
		if err != nil {
			return []place.Place{}, nil
		}
		return r.find(ctx, "places.query", bson.M{"owner": oid})
	}

	pattern := primitive.Regex{Pattern: "^" + regexp.QuoteMeta(value) + "$", Options: "i"}
	return r.find(ctx, "places.query", bson.M{key: pattern})
}

func (r *PlacesRepo) Delete(ctx context.Context, id string) (string, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return "", place.ErrNotFound
	}

	var deleted int64
	err = r.observe("places.delete", func() error {
		res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
		if err != nil {
			return err
		}
		deleted = res.DeletedCount
		return nil
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "places.delete", err)
	}
	if deleted == 0 {
		return "", place.ErrNotFound
	}

	return id, nil
}

// byIDs loads the places referenced by ids in one round trip.
func (r *PlacesRepo) byIDs(ctx context.Context, ids []primitive.ObjectID) (map[string]place.Place, error) {
	out := make(map[string]place.Place, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	places, err := r.find(ctx, "places.by_ids", bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}

	for _, p := range places {
		out[p.ID] = p
	}
	return out, nil
}

func (r *PlacesRepo) find(ctx context.Context, op string, filter bson.M) ([]place.Place, error) {
	var docs []placeDoc

	err := r.observe(op, func() error {
		cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
		if err != nil {
			return err
		}
		defer cur.Close(ctx)

		return cur.All(ctx, &docs)
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, op, err)
	}

	out := make([]place.Place, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}
