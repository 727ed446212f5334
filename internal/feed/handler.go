package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/pilatesloop/backend/internal/telemetry/metrics"
	"github.com/pilatesloop/backend/internal/telemetry/tracing"
	"github.com/pilatesloop/backend/pkg"
)

type feedRepo interface {
	Add(ctx context.Context, post Post) (*Post, error)
	Get(ctx context.Context, id int) (*Post, error)
	List(ctx context.Context, status PostStatus, page, size int) (_ []Post, total int, err error)
	SetStatus(ctx context.Context, id int, status PostStatus, moderatedAt time.Time) error
	Delete(ctx context.Context, id int) error
}

type ListResponse struct {
	Posts []Post `json:"posts"`
	Total int    `json:"total"`
}

type ModerateResponse struct {
	ModeratedID int        `json:"moderatedId"`
	Status      PostStatus `json:"status"`
}

type Handler struct {
	repo    feedRepo
	metrics *metrics.Manager
}

func NewHandler(repo feedRepo, metrics *metrics.Manager) *Handler {
	return &Handler{
		repo:    repo,
		metrics: metrics,
	}
}

// HandleAdd creates a new post in pending status. Whatever status the
// client sends is ignored, visibility is decided by moderation only.
func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.feed.new")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var post Post
	if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
		log.Tracef("new post, unmarshal json params: %s", err)
		http.Error(w, "add post failed", http.StatusBadRequest)
		return
	}

	post.UserID = r.Header.Get("X-User-ID")
	if post.UserID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}
	if post.ImageURL == "" {
		http.Error(w, "error, image url empty", http.StatusBadRequest)
		return
	}

	post.Status = StatusPending
	post.ModeratedAt = nil
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}

	addedPost, err := handler.repo.Add(ctx, post)
	if err != nil {
		log.Errorf("failed to add new post for user [%s]: %s", post.UserID, err)
		http.Error(w, "error, failed to add new post", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterFeedPosts.Inc()

	addedJson, err := json.Marshal(addedPost)
	if err != nil {
		log.Errorf("failed to marshal new post: %s", err)
		http.Error(w, "error, failed to add new post", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedJson, http.StatusCreated)
}

// HandleList returns the public feed: approved posts only.
func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	handler.handleListWithStatus(w, r, StatusApproved, "handler.feed.list")
}

// HandleListPending returns posts awaiting moderation. Admin only,
// enforced by the auth middleware.
func (handler *Handler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	handler.handleListWithStatus(w, r, StatusPending, "handler.feed.listPending")
}

func (handler *Handler) handleListWithStatus(
	w http.ResponseWriter,
	r *http.Request,
	status PostStatus,
	spanName string,
) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), spanName)
	defer span.End()

	vars := mux.Vars(r)
	page, err := strconv.Atoi(vars["page"])
	if err != nil {
		http.Error(w, "parse form error, parameter <page>", http.StatusBadRequest)
		return
	}
	size, err := strconv.Atoi(vars["size"])
	if err != nil {
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

	posts, total, err := handler.repo.List(ctx, status, page, size)
	if err != nil {
		log.Errorf("list %s posts error: %s", status, err)
		http.Error(w, "failed to get posts", http.StatusInternalServerError)
		return
	}

	listResponseJson, err := json.Marshal(ListResponse{
		Posts: posts,
		Total: total,
	})
	if err != nil {
		log.Errorf("marshal posts error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, listResponseJson, http.StatusOK)
}

// HandleApprove makes a pending post publicly visible. Admin only.
func (handler *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	handler.handleModerate(w, r, StatusApproved, "handler.feed.approve")
}

// HandleReject hides a pending post for good. Admin only.
func (handler *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	handler.handleModerate(w, r, StatusRejected, "handler.feed.reject")
}

func (handler *Handler) handleModerate(
	w http.ResponseWriter,
	r *http.Request,
	status PostStatus,
	spanName string,
) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), spanName)
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	if err := handler.repo.SetStatus(ctx, id, status, time.Now()); err != nil {
		if errors.Is(err, ErrPostNotFound) {
			http.Error(w, "pending post not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to set post %d status to %s: %s", id, status, err)
		http.Error(w, "failed to moderate post", http.StatusInternalServerError)
		return
	}

	moderateRespJson, err := json.Marshal(ModerateResponse{
		ModeratedID: id,
		Status:      status,
	})
	if err != nil {
		log.Errorf("failed to marshal moderate response: %s", err)
		http.Error(w, "failed to marshal moderate response", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(moderateRespJson))
}

// HandleDelete removes a post. Users can remove their own posts, the
// ownership check happens here since the auth middleware only knows
// about admin routes.
func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.feed.delete")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	post, err := handler.repo.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrPostNotFound) {
		log.Errorf("failed to get post %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	} else if errors.Is(err, ErrPostNotFound) {
		http.Error(w, "post not found", http.StatusNotFound)
		return
	}

	if post.UserID != r.Header.Get("X-User-ID") {
		http.Error(w, "not allowed", http.StatusForbidden)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		log.Errorf("failed to delete post %d: %s", id, err)
		http.Error(w, "post not deleted", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, `{"deleted":`+strconv.Itoa(id)+`}`)
}
