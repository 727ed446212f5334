package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pilatesloop/backend/internal/workouts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) deleteAllWorkouts() {
	_, err := s.DB.Exec("DELETE FROM workout_log")
	require.NoError(s.T(), err)
}

func (s *IntegrationTestSuite) newWorkoutRequest(
	ctx context.Context,
	userID string,
	workout workouts.WorkoutLog,
) workouts.AddWorkoutResponse {
	t := s.T()

	workoutJson, err := json.Marshal(workout)
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/workout", serverEndpoint),
		bytes.NewReader(workoutJson),
	)
	require.NoError(t, err)
	appRequest(t, req, userID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var addedWorkout workouts.AddWorkoutResponse
	require.NoError(t, json.Unmarshal(respBytes, &addedWorkout))
	return addedWorkout
}

func (s *IntegrationTestSuite) getStatsRequest(ctx context.Context, userID string) workouts.WorkoutStats {
	t := s.T()

	req, err := http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/workouts/stats", serverEndpoint),
		nil,
	)
	require.NoError(t, err)
	appRequest(t, req, userID)

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var stats workouts.WorkoutStats
	require.NoError(t, json.Unmarshal(respBytes, &stats))
	return stats
}

func (s *IntegrationTestSuite) TestWorkouts_LogAndStats() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t := s.T()
	s.deleteAllWorkouts()
	userID := "e2e-user-1"

	// unauthorized without the app secret
	req, err := http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/workouts/stats", serverEndpoint),
		nil,
	)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "PilatesLoop/1.0")
	req.Header.Set("Authorization", "wrong-secret")
	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// empty stats
	stats := s.getStatsRequest(ctx, userID)
	assert.Equal(t, 0, stats.TotalWorkouts)
	assert.Equal(t, 0, stats.CurrentStreak)
	assert.Nil(t, stats.AverageRPE)
	assert.Nil(t, stats.LastWorkoutDate)

	// a three day streak ending today
	calories := 250.0
	today := time.Now()
	for dayOffset := 2; dayOffset >= 0; dayOffset-- {
		added := s.newWorkoutRequest(ctx, userID, workouts.WorkoutLog{
			WorkoutDate:     today.AddDate(0, 0, -dayOffset),
			DurationMinutes: 45,
			WorkoutType:     workouts.TypeReformer,
			RPE:             7,
			FocusAreas:      []string{"core", "glutes"},
			CalorieEstimate: &calories,
		})
		assert.Greater(t, added.ID, 0)
		assert.Equal(t, userID, added.UserID)
	}

	// logging a workout invalidates the cached stats
	stats = s.getStatsRequest(ctx, userID)
	assert.Equal(t, 3, stats.TotalWorkouts)
	assert.Equal(t, 3, stats.CurrentStreak)
	assert.Equal(t, 3, stats.LongestStreak)
	assert.Equal(t, 135, stats.TotalMinutes)
	assert.Equal(t, 750.0, stats.TotalCalories)
	assert.Equal(t, 3, stats.FocusAreaCounts["core"])
	assert.Equal(t, 3, stats.FocusAreaCounts["glutes"])
	assert.Equal(t, 3, stats.WorkoutTypeBreakdown[workouts.TypeReformer])
	require.NotNil(t, stats.AverageRPE)
	assert.Equal(t, 7.0, *stats.AverageRPE)
	require.NotNil(t, stats.LastWorkoutDate)

	// another user sees nothing
	stats = s.getStatsRequest(ctx, "e2e-user-2")
	assert.Equal(t, 0, stats.TotalWorkouts)
}

func (s *IntegrationTestSuite) TestWorkouts_ListAndRecap() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t := s.T()
	s.deleteAllWorkouts()
	userID := "e2e-user-recap"

	today := time.Now()
	added := s.newWorkoutRequest(ctx, userID, workouts.WorkoutLog{
		WorkoutDate:     today,
		DurationMinutes: 50,
		WorkoutType:     workouts.TypeMat,
		RPE:             6,
		FocusAreas:      []string{"mobility"},
	})
	s.newWorkoutRequest(ctx, userID, workouts.WorkoutLog{
		WorkoutDate:     today.AddDate(0, 0, -1),
		DurationMinutes: 30,
		WorkoutType:     workouts.TypeTower,
		RPE:             8,
	})

	// paginated list
	req, err := http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/workout/page/1/size/10", serverEndpoint),
		nil,
	)
	require.NoError(t, err)
	appRequest(t, req, userID)

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var listResp workouts.ListResponse
	require.NoError(t, json.Unmarshal(respBytes, &listResp))
	assert.Equal(t, 2, listResp.Total)
	require.Len(t, listResp.Workouts, 2)
	// most recent first
	assert.Equal(t, added.ID, listResp.Workouts[0].ID)

	// share the recap
	req, err = http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/workout/%d/recap", serverEndpoint, added.ID),
		nil,
	)
	require.NoError(t, err)
	appRequest(t, req, userID)

	resp, err = s.httpClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	respBytes, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var recap workouts.Recap
	require.NoError(t, json.Unmarshal(respBytes, &recap))
	assert.Equal(t, added.ID, recap.WorkoutID)
	assert.Equal(t, 2, recap.CurrentStreak)
	assert.Contains(t, recap.ShareText, "50 min mat workout")
	assert.Contains(t, recap.ShareText, "day 2 of my streak")

	// the workout is now marked shared
	req, err = http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/workout/%d", serverEndpoint, added.ID),
		nil,
	)
	require.NoError(t, err)
	appRequest(t, req, userID)

	resp, err = s.httpClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	respBytes, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var sharedWorkout workouts.WorkoutLog
	require.NoError(t, json.Unmarshal(respBytes, &sharedWorkout))
	assert.True(t, sharedWorkout.IsShared)
}
