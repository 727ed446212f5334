package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pilatesloop/backend/internal/feed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) deleteAllPosts() {
	_, err := s.DB.Exec("DELETE FROM feed_post")
	require.NoError(s.T(), err)
}

func (s *IntegrationTestSuite) newPostRequest(
	ctx context.Context,
	userID string,
	post feed.Post,
) feed.Post {
	t := s.T()

	postJson, err := json.Marshal(post)
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/feed", serverEndpoint),
		bytes.NewReader(postJson),
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

	var addedPost feed.Post
	require.NoError(t, json.Unmarshal(respBytes, &addedPost))
	return addedPost
}

func (s *IntegrationTestSuite) publicFeedRequest(ctx context.Context) feed.ListResponse {
	t := s.T()

	// the public feed needs no auth headers at all
	req, err := http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/feed/page/1/size/10", serverEndpoint),
		nil,
	)
	require.NoError(t, err)

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var listResp feed.ListResponse
	require.NoError(t, json.Unmarshal(respBytes, &listResp))
	return listResp
}

func (s *IntegrationTestSuite) moderateRequest(
	ctx context.Context,
	token string,
	postID int,
	action string,
	expectedStatus int,
) {
	t := s.T()

	req, err := http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/feed/%d/%s", serverEndpoint, postID, action),
		nil,
	)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("X-PILATES-TOKEN", token)

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, expectedStatus, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestFeed_Moderation() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t := s.T()
	s.deleteAllPosts()
	token := s.doLogin(ctx)

	// posts start as pending, whatever the client claims
	post1 := s.newPostRequest(ctx, "feed-user-1", feed.Post{
		ImageURL: "https://cdn.pilatesloop.com/img/1.jpg",
		Caption:  "morning reformer flow",
		Status:   feed.StatusApproved,
	})
	assert.Equal(t, feed.StatusPending, post1.Status)
	post2 := s.newPostRequest(ctx, "feed-user-2", feed.Post{
		ImageURL: "https://cdn.pilatesloop.com/img/2.jpg",
		Caption:  "tower day",
	})

	// nothing approved yet
	publicFeed := s.publicFeedRequest(ctx)
	assert.Equal(t, 0, publicFeed.Total)

	// moderation needs an admin session
	req, err := http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/feed/%d/approve", serverEndpoint, post1.ID),
		nil,
	)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("X-PILATES-TOKEN", "some-invalid-token")
	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	s.moderateRequest(ctx, token, post1.ID, "approve", http.StatusOK)
	s.moderateRequest(ctx, token, post2.ID, "reject", http.StatusOK)

	// only the approved post is public
	publicFeed = s.publicFeedRequest(ctx)
	require.Equal(t, 1, publicFeed.Total)
	require.Len(t, publicFeed.Posts, 1)
	assert.Equal(t, post1.ID, publicFeed.Posts[0].ID)
	assert.Equal(t, feed.StatusApproved, publicFeed.Posts[0].Status)
	require.NotNil(t, publicFeed.Posts[0].ModeratedAt)

	// moderation is final, a second pass finds no pending post
	s.moderateRequest(ctx, token, post1.ID, "reject", http.StatusNotFound)

	// owners can delete their own posts only
	req, err = http.NewRequestWithContext(
		ctx,
		"DELETE", fmt.Sprintf("%s/feed/%d", serverEndpoint, post1.ID),
		nil,
	)
	require.NoError(t, err)
	appRequest(t, req, "feed-user-2")
	resp, err = s.httpClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req, err = http.NewRequestWithContext(
		ctx,
		"DELETE", fmt.Sprintf("%s/feed/%d", serverEndpoint, post1.ID),
		nil,
	)
	require.NoError(t, err)
	appRequest(t, req, "feed-user-1")
	resp, err = s.httpClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	publicFeed = s.publicFeedRequest(ctx)
	assert.Equal(t, 0, publicFeed.Total)
}
