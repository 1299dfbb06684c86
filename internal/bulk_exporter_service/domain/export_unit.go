package domain

import (
	"fmt"
	"time"

	"github.com/tmdbsync/golang_services/internal/platform/exportdate"
)

// ExportUnit names one category of bulk identifiers published by the provider each day.
type ExportUnit string

const (
	UnitMovie             ExportUnit = "movie"
	UnitTVSeries          ExportUnit = "tv_series"
	UnitPerson            ExportUnit = "person"
	UnitCollection        ExportUnit = "collection"
	UnitTVNetwork         ExportUnit = "tv_network"
	UnitKeyword           ExportUnit = "keyword"
	UnitProductionCompany ExportUnit = "production_company"
)

// DefaultExportUnits returns the fixed set of units exported on every run, in export order.
func DefaultExportUnits() []ExportUnit {
	return []ExportUnit{
		UnitMovie,
		UnitTVSeries,
		UnitPerson,
		UnitCollection,
		UnitTVNetwork,
		UnitKeyword,
		UnitProductionCompany,
	}
}

// SourcePath is the provider path of the unit's gzip file for the given day.
func (u ExportUnit) SourcePath(d time.Time) string {
	return fmt.Sprintf("/p/exports/%s_ids_%s.json.gz", u, exportdate.FileStamp(d))
}

// FileName is the name of the decompressed file inside a partition directory.
func (u ExportUnit) FileName() string {
	return string(u) + ".json"
}

// PartitionDir is the partition directory name for a day: export_date=YYYY-MM-DD.
// Other tooling reads this layout.
func PartitionDir(d time.Time) string {
	return "export_date=" + exportdate.Format(d)
}
