package workouts

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

var ErrWorkoutNotFound = errors.New("workout not found")

type WorkoutParams struct {
	UserID      string
	WorkoutType WorkoutType
	From        *time.Time
	To          *time.Time
}

type ListParams struct {
	WorkoutParams
	Page int
	Size int
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, workout WorkoutLog) (_ *WorkoutLog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO workout_log
				(user_id, workout_date, duration_minutes, workout_type, rpe, focus_areas,
				 calorie_estimate, studio_id, custom_studio_name, session_id, image_url, is_shared, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id;`,
		workout.UserID, DateOnly(workout.WorkoutDate), workout.DurationMinutes, workout.WorkoutType,
		workout.RPE, workout.FocusAreas, workout.CalorieEstimate, workout.StudioID,
		workout.CustomStudioName, workout.SessionID, workout.ImageURL, workout.IsShared, workout.CreatedAt,
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

	span.SetAttributes(attribute.Int("workout.id", id))

	workout.ID = id
	return &workout, nil
}

func (r *Repo) Update(ctx context.Context, workout *WorkoutLog) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", workout.ID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE workout_log SET
				workout_date = $1, duration_minutes = $2, workout_type = $3, rpe = $4,
				focus_areas = $5, calorie_estimate = $6, studio_id = $7, custom_studio_name = $8,
				session_id = $9, image_url = $10
			WHERE id = $11 AND user_id = $12;`,
		DateOnly(workout.WorkoutDate), workout.DurationMinutes, workout.WorkoutType, workout.RPE,
		workout.FocusAreas, workout.CalorieEstimate, workout.StudioID, workout.CustomStudioName,
		workout.SessionID, workout.ImageURL,
		workout.ID, workout.UserID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrWorkoutNotFound
	}

	return nil
}

func (r *Repo) SetShared(ctx context.Context, id int, shared bool) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.setShared")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE workout_log SET is_shared = $1 WHERE id = $2;`,
		shared, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkoutNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM workout_log WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkoutNotFound
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *WorkoutLog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		`
			SELECT
				id, user_id, workout_date, duration_minutes, workout_type, rpe, focus_areas,
				calorie_estimate, studio_id, custom_studio_name, session_id, image_url, is_shared, created_at
			FROM workout_log
			WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	logs, err := r.rows2workouts(rows)
	if err != nil {
		return nil, err
	}

	if len(logs) != 1 {
		return nil, ErrWorkoutNotFound
	}

	return &logs[0], nil
}

// ListAll returns all workout logs matching the given params, most recent first.
func (r *Repo) ListAll(ctx context.Context, params WorkoutParams) (_ []WorkoutLog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.listall")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", params.UserID))
	span.SetAttributes(attribute.String("workout_type", string(params.WorkoutType)))
	if params.From != nil {
		span.SetAttributes(attribute.String("from", params.From.String()))
	}
	if params.To != nil {
		span.SetAttributes(attribute.String("to", params.To.String()))
	}

	rows, err := r.db.Query(
		ctx,
		`
			SELECT
				id, user_id, workout_date, duration_minutes, workout_type, rpe, focus_areas,
				calorie_estimate, studio_id, custom_studio_name, session_id, image_url, is_shared, created_at
			FROM workout_log
				WHERE ($1::text = '' OR user_id = $1)
				AND ($2::text = '' OR workout_type = $2)
				AND ($3::date IS NULL OR workout_date >= $3)
				AND ($4::date IS NULL OR workout_date <= $4)
			ORDER BY workout_date DESC, id DESC;`,
		params.UserID, string(params.WorkoutType),
		params.From, params.To,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	logs, err := r.rows2workouts(rows)
	if err != nil {
		return nil, fmt.Errorf("rows2workouts: %w", err)
	}
	return logs, nil
}

// List is like ListAll, but returns the specific PAGE, i.e. is used for pagination.
func (r *Repo) List(ctx context.Context, params ListParams) (_ []WorkoutLog, total int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("page", params.Page))
	span.SetAttributes(attribute.Int("size", params.Size))
	span.SetAttributes(attribute.String("user.id", params.UserID))

	if params.Page < 1 {
		return nil, -1, errors.New("page must be greater than 0")
	}
	if params.Size < 1 {
		return nil, -1, errors.New("size must be greater than 0")
	}

	limit := params.Size
	offset := (params.Page - 1) * params.Size
	countAll, err := r.Count(ctx, params.WorkoutParams)
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

	span.SetAttributes(attribute.Int("count_all", countAll))
	span.SetAttributes(attribute.Int("limit", limit))
	span.SetAttributes(attribute.Int("offset", offset))

	rows, err := r.db.Query(
		ctx,
		`
			SELECT
				id, user_id, workout_date, duration_minutes, workout_type, rpe, focus_areas,
				calorie_estimate, studio_id, custom_studio_name, session_id, image_url, is_shared, created_at
			FROM workout_log
				WHERE ($1::text = '' OR user_id = $1)
				AND ($2::text = '' OR workout_type = $2)
			ORDER BY workout_date DESC, id DESC
			LIMIT $3
			OFFSET $4;`,
		params.UserID, string(params.WorkoutType),
		limit, offset,
	)
	if err != nil {
		return nil, -1, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, -1, err
	}

	logs, err := r.rows2workouts(rows)
	if err != nil {
		return nil, -1, err
	}
	return logs, countAll, nil
}

func (r *Repo) Count(ctx context.Context, params WorkoutParams) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.count")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `
		SELECT COUNT(*) FROM workout_log
			WHERE ($1::text = '' OR user_id = $1)
			AND ($2::text = '' OR workout_type = $2)
			AND ($3::date IS NULL OR workout_date >= $3)
			AND ($4::date IS NULL OR workout_date <= $4);
	`,
		params.UserID, string(params.WorkoutType),
		params.From, params.To,
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

	return -1, errors.New("unexpected error, failed to get workouts count")
}

func (r *Repo) rows2workouts(rows pgx.Rows) ([]WorkoutLog, error) {
	var logs []WorkoutLog
	for rows.Next() {
		var wl WorkoutLog
		if err := rows.Scan(
			&wl.ID, &wl.UserID, &wl.WorkoutDate, &wl.DurationMinutes, &wl.WorkoutType,
			&wl.RPE, &wl.FocusAreas, &wl.CalorieEstimate, &wl.StudioID,
			&wl.CustomStudioName, &wl.SessionID, &wl.ImageURL, &wl.IsShared, &wl.CreatedAt,
		); err != nil {
			return nil, err
		}

		// stored as DATE, but scanned into time.Time; normalize right away
		wl.WorkoutDate = DateOnly(wl.WorkoutDate)
		if wl.FocusAreas == nil {
			wl.FocusAreas = []string{}
		}

		logs = append(logs, wl)
	}

	if logs == nil {
		logs = make([]WorkoutLog, 0)
	}

	return logs, nil
}
