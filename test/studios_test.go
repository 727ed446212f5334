package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pilatesloop/backend/internal/studios"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) deleteAllStudios() {
	_, err := s.DB.Exec("DELETE FROM studio")
	require.NoError(s.T(), err)
}

func (s *IntegrationTestSuite) newStudioRequest(
	ctx context.Context,
	token string,
	studio studios.Studio,
) studios.Studio {
	t := s.T()

	studioJson, err := json.Marshal(studio)
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/studios", serverEndpoint),
		bytes.NewReader(studioJson),
	)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("X-PILATES-TOKEN", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var addedStudio studios.Studio
	require.NoError(t, json.Unmarshal(respBytes, &addedStudio))
	return addedStudio
}

func (s *IntegrationTestSuite) TestStudios() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t := s.T()
	s.deleteAllStudios()
	token := s.doLogin(ctx)

	// adding a studio without a session is rejected
	studioJson, err := json.Marshal(studios.Studio{
		Name: "Nope Studio", Address: "Nowhere 1", City: "Berlin",
	})
	require.NoError(t, err)
	req, err := http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/studios", serverEndpoint),
		bytes.NewReader(studioJson),
	)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	berlin := s.newStudioRequest(ctx, token, studios.Studio{
		Name:      "Core Balance Berlin",
		Address:   "Torstrasse 99",
		City:      "Berlin",
		Latitude:  52.53,
		Longitude: 13.40,
	})
	assert.Greater(t, berlin.ID, 0)

	madrid := s.newStudioRequest(ctx, token, studios.Studio{
		Name:      "Align Studio Madrid",
		Address:   "Gran Via 10",
		City:      "Madrid",
		Latitude:  40.42,
		Longitude: -3.70,
	})

	// without coordinates the address is geocoded (dev fallback: Berlin)
	geocoded := s.newStudioRequest(ctx, token, studios.Studio{
		Name:    "Mitte Reformer Loft",
		Address: "Alexanderplatz 1",
		City:    "Berlin",
	})
	assert.InDelta(t, 52.52, geocoded.Latitude, 0.01)
	assert.InDelta(t, 13.405, geocoded.Longitude, 0.01)

	// duplicate name
	studioJson, err = json.Marshal(studios.Studio{
		Name: "Core Balance Berlin", Address: "Elsewhere 5", City: "Hamburg",
		Latitude: 53.55, Longitude: 9.99,
	})
	require.NoError(t, err)
	req, err = http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/studios", serverEndpoint),
		bytes.NewReader(studioJson),
	)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("X-PILATES-TOKEN", token)
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.httpClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// listing studios is public, no auth at all
	req, err = http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/studios", serverEndpoint),
		nil,
	)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	resp, err = s.httpClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var allStudios []studios.Studio
	require.NoError(t, json.Unmarshal(respBytes, &allStudios))
	assert.Len(t, allStudios, 3)

	// nearby: the request comes from localhost, the dev location is Berlin
	req, err = http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/studios/nearby?limit=2", serverEndpoint),
		nil,
	)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	resp, err = s.httpClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	respBytes, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var nearby studios.NearbyResponse
	require.NoError(t, json.Unmarshal(respBytes, &nearby))
	require.Len(t, nearby.Studios, 2)
	// both Berlin studios come before Madrid
	assert.NotEqual(t, madrid.ID, nearby.Studios[0].ID)
	assert.NotEqual(t, madrid.ID, nearby.Studios[1].ID)
	assert.LessOrEqual(t, nearby.Studios[0].DistanceKm, nearby.Studios[1].DistanceKm)

	// search by city
	req, err = http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/studios/search?q=madrid", serverEndpoint),
		nil,
	)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	resp, err = s.httpClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	respBytes, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var found []studios.Studio
	require.NoError(t, json.Unmarshal(respBytes, &found))
	require.Len(t, found, 1)
	assert.Equal(t, madrid.ID, found[0].ID)

	// deleting needs the admin session
	req, err = http.NewRequestWithContext(
		ctx,
		"DELETE", fmt.Sprintf("%s/studios/%d", serverEndpoint, geocoded.ID),
		nil,
	)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("X-PILATES-TOKEN", token)
	resp, err = s.httpClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
