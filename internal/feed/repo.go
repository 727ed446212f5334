package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pilatesloop/backend/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrPostNotFound = errors.New("post not found")

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, post Post) (_ *Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.feed.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO feed_post
				(user_id, image_url, caption, workout_id, status, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id;`,
		post.UserID, post.ImageURL, post.Caption, post.WorkoutID, post.Status, post.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, errors.New("unexpected error [no rows next]")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	span.SetAttributes(attribute.Int("post.id", id))

	post.ID = id
	return &post, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.feed.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, image_url, caption, workout_id, status, created_at, moderated_at
			FROM feed_post WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	posts, err := r.rows2posts(rows)
	if err != nil {
		return nil, err
	}

	if len(posts) != 1 {
		return nil, ErrPostNotFound
	}

	return &posts[0], nil
}

// List returns the given page of posts with the given status, newest first.
func (r *Repo) List(ctx context.Context, status PostStatus, page, size int) (_ []Post, total int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.feed.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("status", string(status)))
	span.SetAttributes(attribute.Int("page", page))
	span.SetAttributes(attribute.Int("size", size))

	if page < 1 {
		return nil, -1, errors.New("page must be greater than 0")
	}
	if size < 1 {
		return nil, -1, errors.New("size must be greater than 0")
	}

	limit := size
	offset := (page - 1) * size
	countAll, err := r.Count(ctx, status)
	if err != nil {
		return nil, -1, err
	}

	if countAll <= limit {
		limit = countAll
		offset = 0
	}

	if countAll-offset < limit {
		offset = countAll - limit
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, image_url, caption, workout_id, status, created_at, moderated_at
			FROM feed_post
			WHERE status = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
			OFFSET $3;`,
		status, limit, offset,
	)
	if err != nil {
		return nil, -1, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, -1, err
	}

	posts, err := r.rows2posts(rows)
	if err != nil {
		return nil, -1, err
	}
	return posts, countAll, nil
}

func (r *Repo) Count(ctx context.Context, status PostStatus) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.feed.count")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT COUNT(*) FROM feed_post WHERE status = $1;`,
		status,
	)
	if err != nil {
		return -1, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return -1, err
	}

	if rows.Next() {
		var count int
		if err := rows.Scan(&count); err == nil {
			return count, nil
		}
	}

	return -1, errors.New("unexpected error, failed to get posts count")
}

// SetStatus moderates one post. Only pending posts can be moderated.
func (r *Repo) SetStatus(ctx context.Context, id int, status PostStatus, moderatedAt time.Time) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.feed.setStatus")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))
	span.SetAttributes(attribute.String("status", string(status)))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE feed_post SET status = $1, moderated_at = $2
			WHERE id = $3 AND status = $4;`,
		status, moderatedAt, id, StatusPending,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.feed.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(ctx, `DELETE FROM feed_post WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *Repo) rows2posts(rows pgx.Rows) ([]Post, error) {
	var posts []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.ImageURL, &p.Caption, &p.WorkoutID,
			&p.Status, &p.CreatedAt, &p.ModeratedAt,
		); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}

	if posts == nil {
		posts = make([]Post, 0)
	}

	return posts, nil
}
