package studios

import (
	"context"
	"errors"
	"fmt"

	"github.com/pilatesloop/backend/internal/telemetry/tracing"
	"github.com/pilatesloop/backend/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrStudioNotFound = errors.New("studio not found")
	ErrStudioExists   = errors.New("studio already exists")
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, studio Studio) (_ *Studio, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.studios.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO studio
				(name, address, city, latitude, longitude, phone, website, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id;`,
		studio.Name, studio.Address, studio.City, studio.Latitude, studio.Longitude,
		studio.Phone, studio.Website, studio.CreatedAt,
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return nil, ErrStudioExists
		}
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		if pkg.IsUniqueViolationError(err) {
			return nil, ErrStudioExists
		}
		return nil, err
	}

	if !rows.Next() {
		return nil, errors.New("unexpected error [no rows next]")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	span.SetAttributes(attribute.Int("studio.id", id))

	studio.ID = id
	return &studio, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Studio, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.studios.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, name, address, city, latitude, longitude, phone, website, created_at
			FROM studio WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	studios, err := r.rows2studios(rows)
	if err != nil {
		return nil, err
	}

	if len(studios) != 1 {
		return nil, ErrStudioNotFound
	}

	return &studios[0], nil
}

// ListAll returns all studios, alphabetically.
func (r *Repo) ListAll(ctx context.Context) (_ []Studio, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.studios.listall")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT id, name, address, city, latitude, longitude, phone, website, created_at
			FROM studio ORDER BY name;`,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return r.rows2studios(rows)
}

// Search matches the query against studio name and city, case-insensitive.
func (r *Repo) Search(ctx context.Context, query string) (_ []Studio, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.studios.search")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("query", query))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, name, address, city, latitude, longitude, phone, website, created_at
			FROM studio
			WHERE name ILIKE '%' || $1 || '%' OR city ILIKE '%' || $1 || '%'
			ORDER BY name;`,
		query,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return r.rows2studios(rows)
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.studios.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(ctx, `DELETE FROM studio WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStudioNotFound
	}
	return nil
}

func (r *Repo) rows2studios(rows pgx.Rows) ([]Studio, error) {
	var studios []Studio
	for rows.Next() {
		var s Studio
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Address, &s.City, &s.Latitude, &s.Longitude,
			&s.Phone, &s.Website, &s.CreatedAt,
		); err != nil {
			return nil, err
		}
		studios = append(studios, s)
	}

	if studios == nil {
		studios = make([]Studio, 0)
	}

	return studios, nil
}
