package domain

import (
	"fmt"
	"time"

	"github.com/tmdbsync/golang_services/internal/platform/exportdate"
)

// DetailRequest asks for every detail facet of one entity.
type DetailRequest struct {
	ID         int64  `json:"id" validate:"required,gt=0"`
	Type       string `json:"type" validate:"required"`
	ExportDate string `json:"export_date" validate:"required,datetime=2006-01-02"`
}

// Date parses ExportDate. Validation guarantees the layout.
func (r DetailRequest) Date() (time.Time, error) {
	return exportdate.Parse(r.ExportDate)
}

// DetailRecord carries one facet's raw response body.
type DetailRecord struct {
	ID                 int64
	Type               string
	ExportDate         string
	ResponseType       string
	ResponseJSONString string
}

// NewDetailRecord pairs a request with one endpoint's body.
func NewDetailRecord(req DetailRequest, responseType, body string) DetailRecord {
	return DetailRecord{
		ID:                 req.ID,
		Type:               req.Type,
		ExportDate:         req.ExportDate,
		ResponseType:       responseType,
		ResponseJSONString: body,
	}
}

// Fields implements recordcodec.Record.
func (r DetailRecord) Fields() map[string]any {
	return map[string]any{
		"id":                   r.ID,
		"type":                 r.Type,
		"export_date":          r.ExportDate,
		"response_type":        r.ResponseType,
		"response_json_string": r.ResponseJSONString,
	}
}

// MessageID identifies the record for broker-side duplicate detection.
func (r DetailRecord) MessageID() string {
	return fmt.Sprintf("detail:%s:%s:%d:%s", r.ExportDate, r.Type, r.ID, r.ResponseType)
}
