// Package recordcodec serializes field maps against an Avro schema into the schema's
// textual (Avro JSON) encoding, the payload format of both topics.
package recordcodec

import (
	"encoding/base64"
	"strings"
	"sync"

	"github.com/linkedin/goavro/v2"

	"github.com/tmdbsync/golang_services/internal/core_domain"
)

// Record is a typed value that can present itself as a schema-neutral field map.
type Record interface {
	Fields() map[string]any
}

// Encoder holds a parsed schema. It is safe for concurrent use.
type Encoder struct {
	codec *goavro.Codec
}

// New parses an Avro schema document.
func New(schema string) (*Encoder, error) {
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return nil, core_domain.Wrap(core_domain.ErrConfiguration, "parsing avro schema", err)
	}
	return &Encoder{codec: codec}, nil
}

// NewFromBase64 parses a base64 encoded Avro schema document.
func NewFromBase64(encoded string) (*Encoder, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, core_domain.Wrap(core_domain.ErrConfiguration, "decoding base64 topic schema", err)
	}
	return New(string(raw))
}

// Encode returns the textual encoding of fields, or an ErrEncoding error when fields do
// not conform to the schema.
func (e *Encoder) Encode(fields map[string]any) ([]byte, error) {
	out, err := e.codec.TextualFromNative(nil, fields)
	if err != nil {
		return nil, core_domain.Wrap(core_domain.ErrEncoding, "encoding record", err)
	}
	return out, nil
}

// EncodeRecord encodes r.Fields().
func (e *Encoder) EncodeRecord(r Record) ([]byte, error) {
	return e.Encode(r.Fields())
}

// Decode parses a textual encoding back into a field map.
func (e *Encoder) Decode(data []byte) (map[string]any, error) {
	native, _, err := e.codec.NativeFromTextual(data)
	if err != nil {
		return nil, core_domain.Wrap(core_domain.ErrEncoding, "decoding record", err)
	}
	fields, ok := native.(map[string]any)
	if !ok {
		return nil, core_domain.Wrap(core_domain.ErrEncoding, "decoded datum is not a record", nil)
	}
	return fields, nil
}

// SchemaSource parses a configuration-supplied base64 schema on first use and caches the
// result, including a parse failure. A malformed schema fails every caller instead of the
// process.
type SchemaSource struct {
	encoded string

	once sync.Once
	enc  *Encoder
	err  error
}

func NewSchemaSource(encoded string) *SchemaSource {
	return &SchemaSource{encoded: encoded}
}

// Encoder returns the parsed schema or the parse error.
func (s *SchemaSource) Encoder() (*Encoder, error) {
	s.once.Do(func() {
		s.enc, s.err = NewFromBase64(s.encoded)
	})
	return s.enc, s.err
}
