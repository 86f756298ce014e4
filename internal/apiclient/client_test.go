package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("/api")
	require.Error(t, err)
}

func TestClient_AttachesBearerAndUnwrapsData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/performance/leaderboard", r.URL.Path)
		assert.Equal(t, "weekly", r.URL.Query().Get("period"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[{"name":"a"},{"name":"b"}]}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/api/", WithTokenSource(staticToken("tok")))
	require.NoError(t, err)

	var rows []struct {
		Name string `json:"name"`
	}
	err = c.Get(context.Background(), "/performance/leaderboard", url.Values{"period": {"weekly"}}, &rows)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[1].Name)
}

func TestClient_PostsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "+15551234567", body["to"])
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	require.NoError(t, c.Post(context.Background(), "telephony/start-call", map[string]string{"to": "+15551234567"}, nil))
}

func TestClient_UnauthorizedFiresHookOnlyWithToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"jwt expired"}`))
	}))
	defer srv.Close()

	var fired atomic.Int32
	hook := func() { fired.Add(1) }

	anon, err := New(srv.URL, WithUnauthorizedHandler(hook))
	require.NoError(t, err)
	err = anon.Post(context.Background(), "/auth/login", map[string]string{}, nil)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(0), fired.Load(), "anonymous 401 is a credential error, not a logout")

	authed, err := New(srv.URL, WithTokenSource(staticToken("tok")), WithUnauthorizedHandler(hook))
	require.NoError(t, err)
	err = authed.Get(context.Background(), "/call/my-calls", nil, nil)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), fired.Load())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "jwt expired", apiErr.Message)
	assert.Equal(t, "jwt expired", Message(err, "fallback"))
}

func TestClient_ServerErrorIsTemporary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var observed atomic.Int32
	c, err := New(srv.URL, WithObserver(func(method, path string, status int, d time.Duration) {
		observed.Store(int32(status))
	}))
	require.NoError(t, err)

	err = c.Get(context.Background(), "/telephony/token", nil, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Temporary())
	assert.Equal(t, "fallback", Message(err, "fallback"))
	assert.Equal(t, int32(http.StatusBadGateway), observed.Load())
}

func TestDecodeData(t *testing.T) {
	var bare struct {
		Token string `json:"token"`
	}
	require.NoError(t, DecodeData([]byte(`{"token":"x"}`), &bare))
	assert.Equal(t, "x", bare.Token)

	var wrapped struct {
		Calls []map[string]any `json:"calls"`
	}
	require.NoError(t, DecodeData([]byte(`{"data":{"calls":[{"id":"1"}]}}`), &wrapped))
	assert.Len(t, wrapped.Calls, 1)

	var list []int
	require.NoError(t, DecodeData([]byte(` [1,2,3] `), &list))
	assert.Equal(t, []int{1, 2, 3}, list)

	require.NoError(t, DecodeData(nil, &list))
}
