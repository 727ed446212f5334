package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestLogin() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cases := map[string]struct {
		loginReq           loginRequest
		expectedStatusCode int
	}{
		"good creds": {
			loginReq: loginRequest{
				Username: testUsername,
				Password: testPassword,
			},
			expectedStatusCode: http.StatusOK,
		},
		"wrong password": {
			loginReq: loginRequest{
				Username: testUsername,
				Password: "wrong-password",
			},
			expectedStatusCode: http.StatusBadRequest,
		},
		"wrong username": {
			loginReq: loginRequest{
				Username: "who-is-this",
				Password: testPassword,
			},
			expectedStatusCode: http.StatusBadRequest,
		},
		"empty password": {
			loginReq: loginRequest{
				Username: testUsername,
			},
			expectedStatusCode: http.StatusBadRequest,
		},
	}

	for name, tc := range cases {
		s.Run(name, func() {
			loginReqJson, err := json.Marshal(tc.loginReq)
			require.NoError(t, err)

			req, err := http.NewRequestWithContext(
				ctx,
				"POST", fmt.Sprintf("%s/a/login", serverEndpoint),
				bytes.NewBuffer(loginReqJson),
			)
			require.NoError(t, err)
			req.Header.Set("User-Agent", "test-agent")
			req.Header.Set("Content-Type", "application/json")

			resp, err := s.httpClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.expectedStatusCode, resp.StatusCode)
		})
	}
}

func (s *IntegrationTestSuite) TestLogout() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := s.doLogin(ctx)

	req, err := http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/a/logout", serverEndpoint),
		nil,
	)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("X-PILATES-TOKEN", token)

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "logged-out", string(respBytes))

	// the session is gone, admin routes reject the token now
	req, err = http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/feed/pending/page/1/size/10", serverEndpoint),
		nil,
	)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("X-PILATES-TOKEN", token)

	resp, err = s.httpClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestVersionInfo() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/version", serverEndpoint),
		nil,
	)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "test-version-info", string(respBytes))
}
