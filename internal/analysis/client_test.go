package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallcontext/backend/config"
	"github.com/recallcontext/backend/internal/apperr"
)

func newTestClient(url string, timeout int) *Client {
	return NewClient(config.AnthropicConfig{
		BaseURL:        url,
		Model:          "test-model",
		MaxTokens:      1024,
		APIVersion:     "2023-06-01",
		TimeoutSeconds: timeout,
	}, nil)
}

func TestClientAnalyze(t *testing.T) {
	fixture, err := os.ReadFile("testdata/messages_response.json")
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req MessagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, 1024, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Contains(t, req.Messages[0].Content, "Tom: staging is flaky again")
		assert.NotContains(t, req.Messages[0].Content, "{transcript}")
		assert.NotContains(t, req.Messages[0].Content, "sk-test")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fixture)
	}))
	defer server.Close()

	payload, err := newTestClient(server.URL, 5).Analyze(context.Background(), "Tom: staging is flaky again", "sk-test")
	require.NoError(t, err)
	assert.Equal(t, "end_turn", payload.StopReason)
	require.Len(t, payload.Content, 1)
	assert.True(t, strings.HasPrefix(payload.Content[0].Text, "{"))
}

func TestClientClassifiesStatus(t *testing.T) {
	cases := []struct {
		status   int
		code     string
		httpCode int
	}{
		{http.StatusUnauthorized, apperr.CodeUnauthorized, http.StatusUnauthorized},
		{http.StatusTooManyRequests, apperr.CodeRateLimited, http.StatusTooManyRequests},
		{http.StatusBadRequest, apperr.CodeBadRequest, http.StatusBadRequest},
		{http.StatusInternalServerError, apperr.CodeOther, http.StatusBadGateway},
		{529, apperr.CodeOther, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"type":"error","error":{"type":"some_error","message":"upstream said no"}}`))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL, 5).Analyze(context.Background(), "hello", "sk-test")
			require.Error(t, err)

			var ae *apperr.Error
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, apperr.KindExternalService, ae.Kind)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.status, ae.StatusCode)
			assert.Contains(t, ae.Message, "upstream said no")
			assert.Equal(t, tc.httpCode, apperr.HTTPStatus(err))
		})
	}
}

func TestClientMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 5).Analyze(context.Background(), "hello", "sk-test")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTransport, apperr.ExternalCode(err))
	assert.Equal(t, http.StatusBadGateway, apperr.HTTPStatus(err))
}

func TestClientConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url, 5).Analyze(context.Background(), "hello", "sk-test")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTransport, apperr.ExternalCode(err))
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := newTestClient(server.URL, 5)
	c.timeout = 50 * time.Millisecond

	_, err := c.Analyze(context.Background(), "hello", "sk-test")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTimeout, apperr.ExternalCode(err))
	assert.Contains(t, err.Error(), "timed out")
	assert.Equal(t, http.StatusGatewayTimeout, apperr.HTTPStatus(err))
}

func TestBuildPrompt(t *testing.T) {
	c := newTestClient("http://unused", 5)
	p := c.BuildPrompt("Alice: hi")
	assert.Contains(t, p, "Alice: hi")
	assert.Contains(t, p, "summaryText")
	assert.NotContains(t, p, "{transcript}")
}
