package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/travelhub/internal/apperr"
	"github.com/geocoder89/travelhub/internal/domain/place"
	"github.com/geocoder89/travelhub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const placeColumns = `id::text, city, description, must_visit, img, category, owner`

// placeColumnFor maps searchable JSON fields to table columns.
var placeColumnFor = map[string]string{
	"city":        "city",
	"description": "description",
	"mustVisit":   "must_visit",
	"img":         "img",
	"category":    "category",
	"owner":       "owner",
}

type PlacesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewPlacesRepo(pool *pgxpool.Pool, prom *observability.Prom) *PlacesRepo {
	return &PlacesRepo{pool: pool, prom: prom}
}

func (r *PlacesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanPlace(row pgx.Row) (place.Place, error) {
	var (
		p        place.Place
		category string
	)

	err := row.Scan(&p.ID, &p.City, &p.Description, &p.MustVisit, &p.Img, &category, &p.Owner)
	p.Category = place.Category(category)

	return p, err
}

func (r *PlacesRepo) Get(ctx context.Context, id string) (place.Place, error) {
	if _, err := uuid.Parse(id); err != nil {
		return place.Place{}, place.ErrNotFound
	}

	var p place.Place
	err := r.observe("places.get", func() error {
		var err error
		p, err = scanPlace(r.pool.QueryRow(ctx, `SELECT `+placeColumns+` FROM places WHERE id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return place.Place{}, place.ErrNotFound
		}
		return place.Place{}, apperr.Wrap(apperr.KindUnavailable, "places.get", err)
	}

	return p, nil
}

func (r *PlacesRepo) Create(ctx context.Context, params place.CreateParams) (place.Place, error) {
	if err := params.Validate(); err != nil {
		return place.Place{}, err
	}
	if params.Owner != "" {
		if _, err := uuid.Parse(params.Owner); err != nil {
			return place.Place{}, place.ErrBadOwner
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

	err := r.observe("places.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO places (id, city, description, must_visit, img, category, owner)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			p.ID, p.City, p.Description, p.MustVisit, p.Img, string(p.Category), p.Owner)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return place.Place{}, place.ErrDuplicateCity
		}
		return place.Place{}, apperr.Wrap(apperr.KindUnavailable, "places.create", err)
	}

	return p, nil
}

// Update merges the patch with COALESCE so absent fields keep their value.
func (r *PlacesRepo) Update(ctx context.Context, id string, patch place.Patch) (place.Place, error) {
	if err := patch.Validate(); err != nil {
		return place.Place{}, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return place.Place{}, place.ErrNotFound
	}

	var category *string
	if patch.Category != nil {
		c := string(*patch.Category)
		category = &c
	}

	var p place.Place
	err := r.observe("places.update", func() error {
		var err error
		p, err = scanPlace(r.pool.QueryRow(ctx,
			`UPDATE places SET
				city = COALESCE($2, city),
				description = COALESCE($3, description),
				must_visit = COALESCE($4, must_visit),
				img = COALESCE($5, img),
				category = COALESCE($6, category)
			 WHERE id = $1
			 RETURNING `+placeColumns,
			id, patch.City, patch.Description, patch.MustVisit, patch.Img, category))
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return place.Place{}, place.ErrNotFound
		case isUniqueViolation(err):
			return place.Place{}, place.ErrDuplicateCity
		}
		return place.Place{}, apperr.Wrap(apperr.KindUnavailable, "places.update", err)
	}

	return p, nil
}

func (r *PlacesRepo) List(ctx context.Context) ([]place.Place, error) {
	return r.query(ctx, "places.list", `SELECT `+placeColumns+` FROM places ORDER BY created_at, id`)
}

func (r *PlacesRepo) Query(ctx context.Context, field, value string) ([]place.Place, error) {
	key, err := place.NormalizeField(field)
	if err != nil {
		return nil, err
	}

	col := placeColumnFor[key]
	sql := fmt.Sprintf(`SELECT %s FROM places WHERE lower(%s) = lower($1) ORDER BY created_at, id`, placeColumns, col)

	return r.query(ctx, "places.query", sql, value)
}

func (r *PlacesRepo) Delete(ctx context.Context, id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", place.ErrNotFound
	}

	var affected int64
	err := r.observe("places.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM places WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "places.delete", err)
	}
	if affected == 0 {
		return "", place.ErrNotFound
	}

	return id, nil
}

func (r *PlacesRepo) byIDs(ctx context.Context, ids []string) (map[string]place.Place, error) {
	out := make(map[string]place.Place, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	places, err := r.query(ctx, "places.by_ids", `SELECT `+placeColumns+` FROM places WHERE id::text = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}

	for _, p := range places {
		out[p.ID] = p
	}
	return out, nil
}

func (r *PlacesRepo) query(ctx context.Context, op, sql string, args ...any) ([]place.Place, error) {
	out := make([]place.Place, 0)

	err := r.observe(op, func() error {
		rows, err := r.pool.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanPlace(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, op, err)
	}

	return out, nil
}
