package domain

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmdbsync/golang_services/internal/core_domain"
)

const catalogJSON = `{
  "movie": {
    "details": "https://api.themoviedb.org/3/movie/{id}",
    "credits": "https://api.themoviedb.org/3/movie/{id}/credits"
  },
  "person": {
    "details": "https://api.themoviedb.org/3/person/{id}"
  },
  "keyword": {}
}`

func TestDecodeEndpointCatalog(t *testing.T) {
	catalog, err := DecodeEndpointCatalog(base64.StdEncoding.EncodeToString([]byte(catalogJSON)))
	require.NoError(t, err)

	endpoints, ok := catalog.Lookup("movie")
	require.True(t, ok)
	require.Len(t, endpoints, 2)
	assert.Equal(t, "credits", endpoints[0].ResponseType, "endpoints are sorted by response type")
	assert.Equal(t, "details", endpoints[1].ResponseType)
	assert.Equal(t, "https://api.themoviedb.org/3/movie/786892/credits", endpoints[0].URL(786892))

	_, ok = catalog.Lookup("tv_series")
	assert.False(t, ok, "unknown type")
	_, ok = catalog.Lookup("keyword")
	assert.False(t, ok, "type without endpoints")

	assert.Equal(t, []string{"keyword", "movie", "person"}, catalog.Types())
}

func TestDecodeEndpointCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"NotBase64", "%%%"},
		{"NotJSON", base64.StdEncoding.EncodeToString([]byte("movie=details"))},
		{"WrongShape", base64.StdEncoding.EncodeToString([]byte(`{"movie":["details"]}`))},
		{"Empty", base64.StdEncoding.EncodeToString([]byte(`{}`))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEndpointCatalog(tt.encoded)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core_domain.ErrConfiguration))
		})
	}
}

func TestEndpointCatalog_LookupReturnsCopy(t *testing.T) {
	catalog, err := ParseEndpointCatalog([]byte(catalogJSON))
	require.NoError(t, err)

	first, _ := catalog.Lookup("movie")
	first[0].URLTemplate = "mutated"

	second, _ := catalog.Lookup("movie")
	assert.Equal(t, "https://api.themoviedb.org/3/movie/{id}/credits", second[0].URLTemplate)
}

func TestEndpoint_URL_ReplacesEveryPlaceholder(t *testing.T) {
	e := Endpoint{ResponseType: "x", URLTemplate: "https://h/{id}/related?of={id}"}
	assert.Equal(t, "https://h/42/related?of=42", e.URL(42))
}
