package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmdbsync/golang_services/internal/core_domain"
	"github.com/tmdbsync/golang_services/internal/platform/recordcodec"
)

var day = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

func TestDefaultExportUnits(t *testing.T) {
	units := DefaultExportUnits()
	assert.Len(t, units, 7)
	assert.Equal(t, UnitMovie, units[0])
	assert.Equal(t, UnitProductionCompany, units[6])
}

func TestExportUnit_Paths(t *testing.T) {
	assert.Equal(t, "/p/exports/movie_ids_07_01_2024.json.gz", UnitMovie.SourcePath(day))
	assert.Equal(t, "/p/exports/tv_network_ids_07_01_2024.json.gz", UnitTVNetwork.SourcePath(day))
	assert.Equal(t, "movie.json", UnitMovie.FileName())
	assert.Equal(t, "export_date=2024-07-01", PartitionDir(day))
}

func TestParseBulkLine(t *testing.T) {
	rec, err := ParseBulkLine([]byte(`{"adult":false,"id":786892,"original_title":"Furiosa","popularity":41.2,"video":false}`), UnitMovie, day)
	require.NoError(t, err)
	assert.Equal(t, TriggerRecord{ID: 786892, Type: UnitMovie, ExportDate: day}, rec)
	assert.Equal(t, "trigger:2024-07-01:movie:786892", rec.MessageID())

	for _, line := range []string{
		`not json`,
		`{"id":`,
		`{"name":"no id"}`,
		`{"id":12.5}`,
		`{"id":"abc"}`,
		`[1,2,3]`,
	} {
		_, err := ParseBulkLine([]byte(line), UnitMovie, day)
		require.Error(t, err, line)
		assert.True(t, errors.Is(err, core_domain.ErrParse), line)
	}
}

func TestTriggerRecord_EncodesAgainstEmbeddedSchema(t *testing.T) {
	enc, err := recordcodec.New(TriggerTopicSchema)
	require.NoError(t, err)

	out, err := enc.EncodeRecord(TriggerRecord{ID: 42, Type: UnitPerson, ExportDate: day})
	require.NoError(t, err)

	fields, err := enc.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, int64(42), fields["id"])
	assert.Equal(t, "person", fields["type"])
	assert.Equal(t, "2024-07-01", fields["export_date"])
}
