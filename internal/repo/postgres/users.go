package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/geocoder89/travelhub/internal/apperr"
	"github.com/geocoder89/travelhub/internal/domain/user"
	"github.com/geocoder89/travelhub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id::text, name, email, password_hash, fav_places, created_places`

type UsersRepo struct {
	pool   *pgxpool.Pool
	places *PlacesRepo
	prom   *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, places *PlacesRepo, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, places: places, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.FavPlaces, &u.CreatedPlaces)
	if u.FavPlaces == nil {
		u.FavPlaces = []string{}
	}
	if u.CreatedPlaces == nil {
		u.CreatedPlaces = []string{}
	}

	return u, err
}

func (r *UsersRepo) Get(ctx context.Context, id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}

	var u user.User
	err := r.observe("users.get", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, apperr.Wrap(apperr.KindUnavailable, "users.get", err)
	}

	return u, nil
}

func (r *UsersRepo) GetProfile(ctx context.Context, id string) (user.Profile, error) {
	u, err := r.Get(ctx, id)
	if err != nil {
		return user.Profile{}, err
	}

	byID, err := r.places.byIDs(ctx, u.ReferencedIDs())
	if err != nil {
		return user.Profile{}, err
	}

	return user.Expand(u, byID), nil
}

func (r *UsersRepo) Create(ctx context.Context, params user.CreateParams) (user.User, error) {
	if err := params.Validate(); err != nil {
		return user.User{}, err
	}

	u := user.User{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(params.Name),
		Email:         user.NormalizeEmail(params.Email),
		PasswordHash:  params.PasswordHash,
		FavPlaces:     []string{},
		CreatedPlaces: []string{},
	}

	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (id, name, email, password_hash, fav_places, created_places)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			u.ID, u.Name, u.Email, u.PasswordHash, u.FavPlaces, u.CreatedPlaces)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrDuplicateEmail
		}
		return user.User{}, apperr.Wrap(apperr.KindUnavailable, "users.create", err)
	}

	return u, nil
}

func (r *UsersRepo) Update(ctx context.Context, id string, patch user.Patch) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}

	for _, refs := range []*[]string{patch.FavPlaces, patch.CreatedPlaces} {
		if refs == nil {
			continue
		}
		for _, ref := range *refs {
			if _, err := uuid.Parse(ref); err != nil {
				return user.User{}, user.ErrBadReference
			}
		}
	}

	var email *string
	if patch.Email != nil {
		e := user.NormalizeEmail(*patch.Email)
		email = &e
	}

	// nil slices are sent as NULL and keep the stored array
	var favs, created []string
	if patch.FavPlaces != nil {
		favs = append([]string{}, *patch.FavPlaces...)
	}
	if patch.CreatedPlaces != nil {
		created = append([]string{}, *patch.CreatedPlaces...)
	}

	var u user.User
	err := r.observe("users.update", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`UPDATE users SET
				name = COALESCE($2, name),
				email = COALESCE($3, email),
				password_hash = COALESCE($4, password_hash),
				fav_places = COALESCE($5, fav_places),
				created_places = COALESCE($6, created_places)
			 WHERE id = $1
			 RETURNING `+userColumns,
			id, patch.Name, email, patch.PasswordHash, favs, created))
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return user.User{}, user.ErrNotFound
		case isUniqueViolation(err):
			return user.User{}, user.ErrDuplicateEmail
		}
		return user.User{}, apperr.Wrap(apperr.KindUnavailable, "users.update", err)
	}

	return u, nil
}

func (r *UsersRepo) Find(ctx context.Context, c user.Criteria) (user.User, error) {
	if c.IsEmpty() {
		return user.User{}, user.ErrEmptyCriteria
	}

	var email, name *string
	if e := user.NormalizeEmail(c.Email); e != "" {
		email = &e
	}
	if c.Name != "" {
		name = &c.Name
	}

	var u user.User
	err := r.observe("users.find", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users
			 WHERE ($1::text IS NULL OR email = $1)
			   AND ($2::text IS NULL OR name = $2)
			 ORDER BY created_at
			 LIMIT 1`,
			email, name))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, apperr.Wrap(apperr.KindUnavailable, "users.find", err)
	}

	return u, nil
}

// refColumns maps a reference list to its column; only these names are ever
// spliced into SQL.
var refColumns = map[user.RefList]string{
	user.RefFavorites: "fav_places",
	user.RefCreated:   "created_places",
}

// AddRef and RemoveRef edit the array in a single UPDATE, so concurrent
// writers never overwrite each other's list.
func (r *UsersRepo) AddRef(ctx context.Context, id string, list user.RefList, placeID string) (user.User, bool, error) {
	col, err := refColumn(id, list, placeID)
	if err != nil {
		return user.User{}, false, err
	}

	return r.changeRef(ctx, "users.add_ref", id,
		`UPDATE users SET `+col+` = array_append(`+col+`, $2)
		 WHERE id = $1 AND NOT ($2 = ANY(`+col+`))
		 RETURNING `+userColumns,
		placeID)
}

func (r *UsersRepo) RemoveRef(ctx context.Context, id string, list user.RefList, placeID string) (user.User, bool, error) {
	col, err := refColumn(id, list, placeID)
	if err != nil {
		return user.User{}, false, err
	}

	return r.changeRef(ctx, "users.remove_ref", id,
		`UPDATE users SET `+col+` = array_remove(`+col+`, $2)
		 WHERE id = $1 AND $2 = ANY(`+col+`)
		 RETURNING `+userColumns,
		placeID)
}

// changeRef runs a guarded update. No row means either the user is gone or
// the list already had the wanted shape.
func (r *UsersRepo) changeRef(ctx context.Context, op, id, sql, placeID string) (user.User, bool, error) {
	var u user.User
	err := r.observe(op, func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, sql, id, placeID))
		return err
	})
	if err == nil {
		return u, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return user.User{}, false, apperr.Wrap(apperr.KindUnavailable, op, err)
	}

	u, err = r.Get(ctx, id)
	if err != nil {
		return user.User{}, false, err
	}
	return u, false, nil
}

func refColumn(id string, list user.RefList, placeID string) (string, error) {
	col, ok := refColumns[list]
	if !ok {
		return "", user.ErrUnknownRefList
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", user.ErrNotFound
	}
	if _, err := uuid.Parse(placeID); err != nil {
		return "", user.ErrBadReference
	}
	return col, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
