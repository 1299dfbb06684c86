package apiclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmdbsync/golang_services/internal/core_domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		assert.Equal(t, "/p/exports/movie_ids_07_01_2024.json.gz", r.URL.Path)
		_, _ = w.Write([]byte("gzip-bytes"))
	}))
	defer srv.Close()

	c := New(srv.URL, "token-123", srv.Client(), testLogger())
	var buf bytes.Buffer
	require.NoError(t, c.Download(context.Background(), "/p/exports/movie_ids_07_01_2024.json.gz", &buf))
	assert.Equal(t, "gzip-bytes", buf.String())
}

func TestClient_Download_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := New(srv.URL, "k", srv.Client(), testLogger())
	err := c.Download(context.Background(), "/p/exports/missing.json.gz", io.Discard)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core_domain.ErrNetwork))
}

func TestClient_FetchString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":786892,"cast":[]}`))
	}))
	defer srv.Close()

	c := New("", "k", srv.Client(), testLogger())
	body, err := c.FetchString(context.Background(), srv.URL+"/3/movie/786892/credits")
	require.NoError(t, err)
	assert.Equal(t, `{"id":786892,"cast":[]}`, body)
}

func TestClient_FetchString_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New("", "k", srv.Client(), testLogger())
	_, err := c.FetchString(context.Background(), srv.URL+"/3/movie/1/images")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core_domain.ErrNetwork))
}

func TestClient_FetchString_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New("", "k", srv.Client(), testLogger())
	_, err := c.FetchString(ctx, srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
