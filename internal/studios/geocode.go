package studios

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/pilatesloop/backend/internal/telemetry/tracing"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrNoGeocodeResult = errors.New("no geocode result")

// used for development, when no geocode api key is set
var devGeocodePoint = GeoPoint{
	Latitude:  52.52,
	Longitude: 13.405,
}

type GeocodeResult struct {
	Formatted string  `json:"formatted"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

type geocodeResponse struct {
	Results []GeocodeResult `json:"results"`
}

// Geocoder resolves free-text addresses to coordinates through an
// external provider. Responses are cached in redis without expiry,
// addresses do not move.
type Geocoder struct {
	mu           sync.Mutex
	baseEndpoint string
	apiKey       string
	httpClient   *http.Client
	redisClient  *redis.Client
}

func NewGeocoder(
	baseEndpoint, apiKey string,
	httpClient *http.Client,
	redisClient *redis.Client,
) *Geocoder {
	return &Geocoder{
		baseEndpoint: baseEndpoint,
		apiKey:       apiKey,
		httpClient:   httpClient,
		redisClient:  redisClient,
	}
}

func (g *Geocoder) Geocode(ctx context.Context, query string) (*GeoPoint, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "geocoder.geocode")
	defer span.End()
	span.SetAttributes(attribute.String("query", query))

	if query == "" {
		return nil, errors.New("geocode query empty")
	}

	// the free plan of the geocode provider is tight, keep the calls down
	if g.apiKey == "" {
		log.Debugf("geocode: no api key set, returning development fallback")
		point := devGeocodePoint
		return &point, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	queryKey := fmt.Sprintf("geocode::%s", query)
	cmd := g.redisClient.Get(ctx, queryKey)
	if cachedBytes := cmd.Val(); cachedBytes != "" {
		span.SetAttributes(attribute.Bool("geocode.from-cache", true))
		log.Tracef("found geocode result for [%s] in redis cache", query)
		var point GeoPoint
		if err := json.Unmarshal([]byte(cachedBytes), &point); err == nil {
			return &point, nil
		}
		log.Errorf("failed to unmarshal cached geocode result for [%s]", query)
		// fall through to the provider
	} else {
		span.SetAttributes(attribute.Bool("geocode.from-cache", false))
	}

	geocodeUrl := fmt.Sprintf(
		"%s/v1/search?apikey=%s&q=%s",
		g.baseEndpoint, g.apiKey, url.QueryEscape(query),
	)

	req, err := http.NewRequest("GET", geocodeUrl, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("error getting geocode response: %s", err.Error())
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read geocode response bytes: %s", err)
	}

	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, fmt.Sprintf("geocode provider status %d", resp.StatusCode))
		return nil, fmt.Errorf("geocode provider status %d: %s", resp.StatusCode, respBytes)
	}

	var geocodeResp geocodeResponse
	if err := json.Unmarshal(respBytes, &geocodeResp); err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("unmarshal geocode resp: %s", err))
		return nil, fmt.Errorf("unmarshal geocode response bytes: %w", err)
	}

	if len(geocodeResp.Results) == 0 {
		return nil, ErrNoGeocodeResult
	}

	point := GeoPoint{
		Latitude:  geocodeResp.Results[0].Latitude,
		Longitude: geocodeResp.Results[0].Longitude,
	}

	pointBytes, err := json.Marshal(point)
	if err != nil {
		return nil, fmt.Errorf("marshal geocode point: %w", err)
	}
	if err := g.redisClient.Set(ctx, queryKey, pointBytes, 0).Err(); err != nil {
		log.Errorf("failed to cache geocode result for [%s]: %s", query, err)
	}

	return &point, nil
}
