package mongodb

import (
	"github.com/geocoder89/travelhub/internal/domain/place"
	"github.com/geocoder89/travelhub/internal/domain/user"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type userDoc struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty"`
	Name          string               `bson:"name"`
	Email         string               `bson:"email"`
	Password      string               `bson:"password"`
	FavPlaces     []primitive.ObjectID `bson:"favPlaces"`
	CreatedPlaces []primitive.ObjectID `bson:"createdPlaces"`
}

type placeDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	City        string             `bson:"city"`
	Description string             `bson:"description"`
	MustVisit   string             `bson:"mustVisit,omitempty"`
	Img         string             `bson:"img,omitempty"`
	Category    string             `bson:"category,omitempty"`
	Owner       primitive.ObjectID `bson:"owner,omitempty"`
}

func (d userDoc) toDomain() user.User {
	return user.User{
		ID:            d.ID.Hex(),
		Name:          d.Name,
		Email:         d.Email,
		PasswordHash:  d.Password,
		FavPlaces:     hexes(d.FavPlaces),
		CreatedPlaces: hexes(d.CreatedPlaces),
	}
}

func (d placeDoc) toDomain() place.Place {
	p := place.Place{
		ID:          d.ID.Hex(),
		City:        d.City,
		Description: d.Description,
		MustVisit:   d.MustVisit,
		Img:         d.Img,
		Category:    place.Category(d.Category),
	}
	if !d.Owner.IsZero() {
		p.Owner = d.Owner.Hex()
	}
	return p
}

func hexes(ids []primitive.ObjectID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	return out
}

// objectIDs parses every reference; the first malformed one fails the batch.
func objectIDs(ids []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, user.ErrBadReference
		}
		out = append(out, oid)
	}
	return out, nil
}
