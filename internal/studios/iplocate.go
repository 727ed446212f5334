package studios

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/pilatesloop/backend/internal/telemetry/tracing"
	"github.com/pilatesloop/backend/pkg"

	"github.com/ipinfo/go/v2/ipinfo"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// IPLocator resolves the approximate location of a request from its
// source IP via the ipinfo service. IP geolocation is city-level at
// best, good enough for ordering nearby studios.
type IPLocator struct {
	client *ipinfo.Client
}

func NewIPLocator(token string) *IPLocator {
	return &IPLocator{
		client: ipinfo.NewClient(nil, nil, token),
	}
}

func (l *IPLocator) LocateRequest(ctx context.Context, r *http.Request) (*GeoPoint, error) {
	_, span := tracing.GlobalTracer.Start(ctx, "ipLocator.locateRequest")
	defer span.End()

	userIp, err := pkg.ReadUserIP(r)
	if err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("get user ip: %s", err))
		return nil, fmt.Errorf("get user ip: %w", err)
	}
	span.SetAttributes(attribute.String("user.ip", userIp))

	// used for development
	if userIp == "localhost" {
		log.Debugf("locate request: returning development fallback point")
		point := devGeocodePoint
		return &point, nil
	}

	ipInfo, err := l.client.GetIPInfo(net.ParseIP(userIp))
	if err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("get ip info: %s", err))
		return nil, fmt.Errorf("get ip info for %s: %w", userIp, err)
	}

	return parseIpInfoLocation(ipInfo.Location)
}

// parseIpInfoLocation parses the "lat,lng" location string of an ipinfo response.
func parseIpInfoLocation(location string) (*GeoPoint, error) {
	parts := strings.Split(location, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("unexpected ip info location format: %q", location)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, fmt.Errorf("parse latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("parse longitude: %w", err)
	}

	return &GeoPoint{
		Latitude:  lat,
		Longitude: lng,
	}, nil
}
