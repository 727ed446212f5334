package studios

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/pilatesloop/backend/internal/telemetry/tracing"
	"github.com/pilatesloop/backend/pkg"
)

type studiosRepo interface {
	Add(ctx context.Context, studio Studio) (*Studio, error)
	Get(ctx context.Context, id int) (*Studio, error)
	ListAll(ctx context.Context) ([]Studio, error)
	Search(ctx context.Context, query string) ([]Studio, error)
	Delete(ctx context.Context, id int) error
}

type requestLocator interface {
	LocateRequest(ctx context.Context, r *http.Request) (*GeoPoint, error)
}

type addressGeocoder interface {
	Geocode(ctx context.Context, query string) (*GeoPoint, error)
}

type StudioWithDistance struct {
	Studio
	DistanceKm float64 `json:"distanceKm"`
}

type NearbyResponse struct {
	Origin  GeoPoint             `json:"origin"`
	Studios []StudioWithDistance `json:"studios"`
}

const defaultNearbyLimit = 20

type Handler struct {
	repo     studiosRepo
	geocoder addressGeocoder
	locator  requestLocator
}

func NewHandler(
	repo studiosRepo,
	geocoder addressGeocoder,
	locator requestLocator,
) *Handler {
	return &Handler{
		repo:     repo,
		geocoder: geocoder,
		locator:  locator,
	}
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.studios.list")
	defer span.End()

	studios, err := handler.repo.ListAll(ctx)
	if err != nil {
		log.Errorf("list studios error: %s", err)
		http.Error(w, "failed to get studios", http.StatusInternalServerError)
		return
	}

	studiosJson, err := json.Marshal(studios)
	if err != nil {
		log.Errorf("marshal studios error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, studiosJson, http.StatusOK)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.studios.get")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	studio, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrStudioNotFound) {
			http.Error(w, "studio not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get studio %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	studioJson, err := json.Marshal(studio)
	if err != nil {
		log.Errorf("marshal studio error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, studioJson, http.StatusOK)
}

func (handler *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.studios.search")
	defer span.End()

	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "error, query empty", http.StatusBadRequest)
		return
	}

	studios, err := handler.repo.Search(ctx, query)
	if err != nil {
		log.Errorf("search studios [%s] error: %s", query, err)
		http.Error(w, "failed to search studios", http.StatusInternalServerError)
		return
	}

	studiosJson, err := json.Marshal(studios)
	if err != nil {
		log.Errorf("marshal studios error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, studiosJson, http.StatusOK)
}

// HandleAdd inserts a new studio. Reachable for admins only, the auth
// middleware takes care of that. Missing coordinates are resolved by
// geocoding the address.
func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.studios.new")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var studio Studio
	if err := json.NewDecoder(r.Body).Decode(&studio); err != nil {
		log.Tracef("new studio, unmarshal json params: %s", err)
		http.Error(w, "add studio failed", http.StatusBadRequest)
		return
	}

	if studio.Name == "" || studio.Address == "" || studio.City == "" {
		http.Error(w, "error, name, address and city required", http.StatusBadRequest)
		return
	}
	if studio.CreatedAt.IsZero() {
		studio.CreatedAt = time.Now()
	}

	if studio.Latitude == 0 && studio.Longitude == 0 {
		point, err := handler.geocoder.Geocode(ctx, studio.Address+", "+studio.City)
		if err != nil {
			log.Errorf("failed to geocode studio [%s]: %s", studio.Name, err)
			http.Error(w, "failed to geocode studio address", http.StatusBadRequest)
			return
		}
		studio.Latitude = point.Latitude
		studio.Longitude = point.Longitude
	}

	addedStudio, err := handler.repo.Add(ctx, studio)
	if err != nil {
		if errors.Is(err, ErrStudioExists) {
			http.Error(w, "studio already exists", http.StatusConflict)
			return
		}
		log.Errorf("failed to add new studio [%s]: %s", studio.Name, err)
		http.Error(w, "error, failed to add new studio", http.StatusInternalServerError)
		return
	}

	addedJson, err := json.Marshal(addedStudio)
	if err != nil {
		log.Errorf("failed to marshal new studio: %s", err)
		http.Error(w, "error, failed to add new studio", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedJson, http.StatusCreated)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.studios.delete")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrStudioNotFound) {
			http.Error(w, "studio not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete studio %d: %s", id, err)
		http.Error(w, "studio not deleted", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, `{"deleted":`+strconv.Itoa(id)+`}`)
}

// HandleNearby orders all studios by distance from the requester's
// approximate, IP-derived location.
func (handler *Handler) HandleNearby(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.studios.nearby")
	defer span.End()

	origin, err := handler.locator.LocateRequest(ctx, r)
	if err != nil {
		log.Errorf("failed to locate request: %s", err)
		http.Error(w, "failed to locate request", http.StatusInternalServerError)
		return
	}

	limit := defaultNearbyLimit
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		limit, err = strconv.Atoi(limitParam)
		if err != nil || limit < 1 {
			http.Error(w, "error, invalid limit", http.StatusBadRequest)
			return
		}
	}

	studios, err := handler.repo.ListAll(ctx)
	if err != nil {
		log.Errorf("list studios error: %s", err)
		http.Error(w, "failed to get studios", http.StatusInternalServerError)
		return
	}

	nearby := make([]StudioWithDistance, 0, len(studios))
	for _, s := range studios {
		nearby = append(nearby, StudioWithDistance{
			Studio: s,
			DistanceKm: DistanceKm(*origin, GeoPoint{
				Latitude:  s.Latitude,
				Longitude: s.Longitude,
			}),
		})
	}
	sort.Slice(nearby, func(i, j int) bool {
		return nearby[i].DistanceKm < nearby[j].DistanceKm
	})
	if len(nearby) > limit {
		nearby = nearby[:limit]
	}

	nearbyJson, err := json.Marshal(NearbyResponse{
		Origin:  *origin,
		Studios: nearby,
	})
	if err != nil {
		log.Errorf("marshal nearby studios error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, nearbyJson, http.StatusOK)
}
