package workouts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/pilatesloop/backend/internal/cache"
	"github.com/pilatesloop/backend/internal/telemetry/metrics"
	"github.com/pilatesloop/backend/internal/telemetry/tracing"
	"github.com/pilatesloop/backend/pkg"
)

//go:generate mockgen -source=$GOFILE -destination=workouts_mocks_test.go -package=workouts_test

type workoutsRepo interface {
	Add(ctx context.Context, workout WorkoutLog) (*WorkoutLog, error)
	Get(ctx context.Context, id int) (*WorkoutLog, error)
	List(ctx context.Context, params ListParams) (_ []WorkoutLog, total int, err error)
	ListAll(ctx context.Context, params WorkoutParams) (_ []WorkoutLog, err error)
	Update(ctx context.Context, workout *WorkoutLog) error
	Delete(ctx context.Context, id int) error
	SetShared(ctx context.Context, id int, shared bool) error
}

type AddWorkoutResponse struct {
	WorkoutLog
	CountToday int `json:"countToday"`
}

type UpdateWorkoutResponse struct {
	UpdatedID int `json:"updatedId"`
}

type DeleteWorkoutResponse struct {
	DeletedID int `json:"deletedId"`
}

type ListResponse struct {
	Workouts []WorkoutLog `json:"workouts"`
	Total    int          `json:"total"`
}

type Handler struct {
	repo       workoutsRepo
	analyzer   *Analyzer
	statsCache *cache.StatsCache
	metrics    *metrics.Manager
}

func NewHandler(
	repo workoutsRepo,
	statsCache *cache.StatsCache,
	metrics *metrics.Manager,
) *Handler {
	return &Handler{
		repo:       repo,
		analyzer:   NewAnalyzer(repo),
		statsCache: statsCache,
		metrics:    metrics,
	}
}

func userIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func validateWorkout(wl *WorkoutLog) string {
	if wl.UserID == "" {
		return "error, user id empty"
	}
	if wl.DurationMinutes <= 0 {
		return "error, duration must be a positive number of minutes"
	}
	if !wl.WorkoutType.Valid() {
		return "error, unknown workout type"
	}
	if wl.RPE < 1 || wl.RPE > 10 {
		return "error, rpe must be between 1 and 10"
	}
	for _, area := range wl.FocusAreas {
		if !ValidFocusArea(area) {
			return "error, unknown focus area: " + area
		}
	}
	if wl.CalorieEstimate != nil && *wl.CalorieEstimate < 0 {
		return "error, calorie estimate must not be negative"
	}
	return ""
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.new")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var workout WorkoutLog
	if err := json.NewDecoder(r.Body).Decode(&workout); err != nil {
		log.Tracef("new workout, unmarshal json params: %s", err)
		http.Error(w, "add workout failed", http.StatusBadRequest)
		return
	}

	workout.UserID = userIDFromRequest(r)

	now := time.Now()
	if workout.WorkoutDate.IsZero() {
		workout.WorkoutDate = now
	}
	workout.WorkoutDate = DateOnly(workout.WorkoutDate)
	if workout.CreatedAt.IsZero() {
		workout.CreatedAt = now
	}

	if errMsg := validateWorkout(&workout); errMsg != "" {
		http.Error(w, errMsg, http.StatusBadRequest)
		return
	}

	addedWorkout, err := handler.repo.Add(ctx, workout)
	if err != nil {
		log.Errorf("failed to add new workout for user [%s]: %s", workout.UserID, err)
		http.Error(w, "error, failed to add new workout", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterWorkoutsLogged.Inc()
	handler.statsCache.Invalidate(addedWorkout.UserID)

	today := DateOnly(now)
	workoutsToday, err := handler.repo.ListAll(ctx, WorkoutParams{
		UserID: addedWorkout.UserID,
		From:   &today,
		To:     &today,
	})
	if err != nil {
		// just log the error, no need to return error to the client
		log.Errorf("failed to get workouts today for user [%s]: %s", addedWorkout.UserID, err)
	}

	addWorkoutResponse := AddWorkoutResponse{
		WorkoutLog: *addedWorkout,
		CountToday: len(workoutsToday),
	}

	addedJson, err := json.Marshal(addWorkoutResponse)
	if err != nil {
		log.Errorf("failed to marshal new workout: %s", err)
		http.Error(w, "error, failed to add new workout", http.StatusInternalServerError)
		return
	}

	log.Debugf("new workout added: %s", addedJson)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedJson, http.StatusCreated)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.get")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	workout, err := handler.repo.Get(ctx, id)
	if err != nil {
		log.Errorf("failed to get workout %d: %s", id, err)
		http.Error(w, "workout not found", http.StatusNotFound)
		return
	}

	workoutJson, err := json.Marshal(workout)
	if err != nil {
		log.Errorf("failed to marshal workout: %s", err)
		http.Error(w, "failed to marshal workout", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, workoutJson, http.StatusOK)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.update")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var workout WorkoutLog
	if err := json.NewDecoder(r.Body).Decode(&workout); err != nil {
		log.Errorf("update workout, unmarshal json params: %s", err)
		http.Error(w, "update workout failed", http.StatusBadRequest)
		return
	}

	workout.UserID = userIDFromRequest(r)
	workout.WorkoutDate = DateOnly(workout.WorkoutDate)

	if errMsg := validateWorkout(&workout); errMsg != "" {
		http.Error(w, errMsg, http.StatusBadRequest)
		return
	}

	currentWorkout, err := handler.repo.Get(ctx, workout.ID)
	if err != nil && !errors.Is(err, ErrWorkoutNotFound) {
		log.Errorf("failed to get workout %d: %s", workout.ID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	} else if errors.Is(err, ErrWorkoutNotFound) {
		log.Debugf("workout %d not found", workout.ID)
		http.Error(w, "workout not found", http.StatusNotFound)
		return
	}
	log.Debugf("update workout %+v -> %+v", currentWorkout, workout)

	if err := handler.repo.Update(ctx, &workout); err != nil {
		log.Errorf("failed to update workout [%d]: %s", workout.ID, err)
		http.Error(w, "error, failed to update workout", http.StatusInternalServerError)
		return
	}

	handler.statsCache.Invalidate(workout.UserID)

	updateRespJson, err := json.Marshal(UpdateWorkoutResponse{
		UpdatedID: workout.ID,
	})
	if err != nil {
		log.Errorf("failed to marshal update response: %s", err)
		http.Error(w, "failed to marshal update response", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(updateRespJson))
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.delete")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	workout, err := handler.repo.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrWorkoutNotFound) {
		log.Errorf("failed to get workout %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	} else if errors.Is(err, ErrWorkoutNotFound) {
		log.Debugf("workout %d not found", id)
		http.Error(w, "workout not found", http.StatusNotFound)
		return
	}

	if workout.UserID != userIDFromRequest(r) {
		http.Error(w, "not allowed", http.StatusForbidden)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		log.Errorf("failed to delete workout %d: %s", id, err)
		http.Error(w, "workout not deleted", http.StatusInternalServerError)
		return
	}

	handler.statsCache.Invalidate(workout.UserID)

	deleteRespJson, err := json.Marshal(DeleteWorkoutResponse{
		DeletedID: id,
	})
	if err != nil {
		log.Errorf("failed to marshal delete response: %s", err)
		http.Error(w, "failed to marshal delete response", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(deleteRespJson))
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.list")
	defer span.End()

	vars := mux.Vars(r)
	page, err := strconv.Atoi(vars["page"])
	if err != nil {
		log.Tracef("handle list workouts, from <page> param: %s", err)
		http.Error(w, "parse form error, parameter <page>", http.StatusBadRequest)
		return
	}
	size, err := strconv.Atoi(vars["size"])
	if err != nil {
		log.Tracef("handle list workouts, from <size> param: %s", err)
		http.Error(w, "parse form error, parameter <size>", http.StatusBadRequest)
		return
	}

	if page < 1 {
		http.Error(w, "invalid page (has to be non-zero value)", http.StatusBadRequest)
		return
	}
	if size < 1 {
		http.Error(w, "invalid size (has to be non-zero value)", http.StatusBadRequest)
		return
	}

	userID := userIDFromRequest(r)
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	listParams := ListParams{
		WorkoutParams: WorkoutParams{
			UserID:      userID,
			WorkoutType: WorkoutType(r.URL.Query().Get("type")),
		},
		Page: page,
		Size: size,
	}

	logs, total, err := handler.repo.List(ctx, listParams)
	if err != nil {
		log.Errorf("list workouts error: %s", err)
		http.Error(w, "failed to get workouts", http.StatusInternalServerError)
		return
	}

	listResponseJson, err := json.Marshal(ListResponse{
		Workouts: logs,
		Total:    total,
	})
	if err != nil {
		log.Errorf("marshal workouts error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, listResponseJson, http.StatusOK)
}

// HandleStats returns the aggregate workout stats for the requesting user.
// "today" is resolved exactly once here and threaded through the whole
// computation, so week and month boundaries stay consistent even if the
// request straddles midnight.
func (handler *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.stats")
	defer span.End()

	userID := userIDFromRequest(r)
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	today := DateOnly(time.Now())
	day := today.Format(time.DateOnly)

	if cached, ok := handler.statsCache.Get(userID, day); ok {
		handler.metrics.CounterStatsCacheHits.Inc()
		pkg.WriteResponseBytes(w, pkg.ContentType.JSON, cached, http.StatusOK)
		return
	}
	handler.metrics.CounterStatsCacheMisses.Inc()

	stats, err := handler.analyzer.Stats(ctx, userID, today)
	if err != nil {
		log.Errorf("failed to get workout stats for user [%s]: %s", userID, err)
		http.Error(w, "failed to get workout stats", http.StatusInternalServerError)
		return
	}

	statsJson, err := json.Marshal(stats)
	if err != nil {
		log.Errorf("failed to marshal workout stats: %s", err)
		http.Error(w, "failed to marshal workout stats", http.StatusInternalServerError)
		return
	}

	handler.statsCache.Set(userID, day, statsJson)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, statsJson, http.StatusOK)
}

func (handler *Handler) HandleCalendar(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.calendar")
	defer span.End()

	userID := userIDFromRequest(r)
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	vars := mux.Vars(r)
	year, err := strconv.Atoi(vars["year"])
	if err != nil {
		http.Error(w, "error, year NaN", http.StatusBadRequest)
		return
	}
	month, err := strconv.Atoi(vars["month"])
	if err != nil || month < 1 || month > 12 {
		http.Error(w, "error, invalid month", http.StatusBadRequest)
		return
	}

	calendar, err := handler.analyzer.MonthlyCalendar(ctx, userID, year, time.Month(month), time.Now())
	if err != nil {
		log.Errorf("failed to get workout calendar for user [%s]: %s", userID, err)
		http.Error(w, "failed to get workout calendar", http.StatusInternalServerError)
		return
	}

	calendarJson, err := json.Marshal(calendar)
	if err != nil {
		log.Errorf("failed to marshal workout calendar: %s", err)
		http.Error(w, "failed to marshal workout calendar", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, calendarJson, http.StatusOK)
}

// HandleShareRecap builds the shareable recap for one workout and marks it shared.
func (handler *Handler) HandleShareRecap(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.shareRecap")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	workout, err := handler.repo.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrWorkoutNotFound) {
		log.Errorf("failed to get workout %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	} else if errors.Is(err, ErrWorkoutNotFound) {
		http.Error(w, "workout not found", http.StatusNotFound)
		return
	}

	if workout.UserID != userIDFromRequest(r) {
		http.Error(w, "not allowed", http.StatusForbidden)
		return
	}

	stats, err := handler.analyzer.Stats(ctx, workout.UserID, time.Now())
	if err != nil {
		log.Errorf("failed to get stats for recap of workout %d: %s", id, err)
		http.Error(w, "failed to build recap", http.StatusInternalServerError)
		return
	}

	if err := handler.repo.SetShared(ctx, id, true); err != nil {
		log.Errorf("failed to mark workout %d as shared: %s", id, err)
		http.Error(w, "failed to mark workout as shared", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterRecapsShared.Inc()

	recapJson, err := json.Marshal(BuildRecap(*workout, stats.CurrentStreak))
	if err != nil {
		log.Errorf("failed to marshal recap: %s", err)
		http.Error(w, "failed to marshal recap", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, recapJson, http.StatusOK)
}
