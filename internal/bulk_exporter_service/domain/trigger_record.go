package domain

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tmdbsync/golang_services/internal/core_domain"
	"github.com/tmdbsync/golang_services/internal/platform/exportdate"
)

// TriggerTopicSchema is the Avro schema of the trigger topic.
//
//go:embed trigger_topic_schema.avsc
var TriggerTopicSchema string

// TriggerRecord is published once per line of a bulk file.
type TriggerRecord struct {
	ID         int64
	Type       ExportUnit
	ExportDate time.Time
}

// Fields implements recordcodec.Record.
func (r TriggerRecord) Fields() map[string]any {
	return map[string]any{
		"id":          r.ID,
		"type":        string(r.Type),
		"export_date": exportdate.Format(r.ExportDate),
	}
}

// MessageID identifies the record for broker-side duplicate detection across re-runs.
func (r TriggerRecord) MessageID() string {
	return fmt.Sprintf("trigger:%s:%s:%d", exportdate.Format(r.ExportDate), r.Type, r.ID)
}

// bulkLine is the part of a bulk file line this pipeline reads.
type bulkLine struct {
	ID json.Number `json:"id"`
}

// ParseBulkLine builds a TriggerRecord from one newline-delimited JSON object.
// Lines that are not JSON objects or carry no integral id fail with ErrParse.
func ParseBulkLine(line []byte, unit ExportUnit, d time.Time) (TriggerRecord, error) {
	var row bulkLine
	if err := json.Unmarshal(line, &row); err != nil {
		return TriggerRecord{}, core_domain.Wrap(core_domain.ErrParse, "decoding bulk line", err)
	}
	if row.ID == "" {
		return TriggerRecord{}, core_domain.Wrap(core_domain.ErrParse, "bulk line has no id", nil)
	}
	id, err := row.ID.Int64()
	if err != nil {
		return TriggerRecord{}, core_domain.Wrap(core_domain.ErrParse, "bulk line id is not an integer", err)
	}
	return TriggerRecord{ID: id, Type: unit, ExportDate: d}, nil
}
