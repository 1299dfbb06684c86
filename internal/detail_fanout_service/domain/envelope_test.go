package domain

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmdbsync/golang_services/internal/core_domain"
)

const requestJSON = `{"id":786892,"type":"movie","export_date":"2024-07-01"}`

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func TestPushEnvelope_DetailRequest(t *testing.T) {
	want := DetailRequest{ID: 786892, Type: "movie", ExportDate: "2024-07-01"}

	t.Run("SingleLayer", func(t *testing.T) {
		env := PushEnvelope{Message: PushMessage{Data: b64(requestJSON)}}
		got, err := env.DetailRequest()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("DoubleLayer", func(t *testing.T) {
		env := PushEnvelope{Message: PushMessage{Data: b64(b64(requestJSON))}}
		got, err := env.DetailRequest()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestPushEnvelope_DetailRequest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"Empty", ""},
		{"NotBase64", "not base64!"},
		{"InnerNotBase64", b64("plain text")},
		{"InnerNotJSON", b64(b64("plain text"))},
		{"WrongFieldType", b64(`{"id":"abc","type":"movie","export_date":"2024-07-01"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := PushEnvelope{Message: PushMessage{Data: tt.data}}
			_, err := env.DetailRequest()
			require.Error(t, err)
			assert.True(t, errors.Is(err, core_domain.ErrValidation))
		})
	}
}

func TestDetailRecord(t *testing.T) {
	req := DetailRequest{ID: 7, Type: "person", ExportDate: "2024-07-01"}
	rec := NewDetailRecord(req, "details", `{"id":7}`)

	assert.Equal(t, map[string]any{
		"id":                   int64(7),
		"type":                 "person",
		"export_date":          "2024-07-01",
		"response_type":        "details",
		"response_json_string": `{"id":7}`,
	}, rec.Fields())
	assert.Equal(t, "detail:2024-07-01:person:7:details", rec.MessageID())

	d, err := req.Date()
	require.NoError(t, err)
	assert.Equal(t, "2024-07-01", d.Format("2006-01-02"))
}
