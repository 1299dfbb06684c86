package core_domain

import (
	"errors"
	"fmt"
)

// Error kinds shared by both processes. Callers classify with errors.Is.
var (
	// ErrConfiguration indicates missing or malformed configuration input.
	ErrConfiguration = errors.New("configuration error")
	// ErrNetwork indicates an upstream fetch failed.
	ErrNetwork = errors.New("network error")
	// ErrDecompression indicates a downloaded payload could not be decompressed.
	ErrDecompression = errors.New("decompression error")
	// ErrParse indicates a single input record could not be parsed.
	ErrParse = errors.New("parse error")
	// ErrEncoding indicates a record did not conform to its schema.
	ErrEncoding = errors.New("encoding error")
	// ErrPublish indicates a single message was not accepted by the broker.
	ErrPublish = errors.New("publish error")
	// ErrValidation indicates a request was malformed or referenced an unknown entity type.
	ErrValidation = errors.New("validation error")
)

// Wrap attaches an error kind to err. Both kind and err remain matchable with errors.Is.
func Wrap(kind error, msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", kind, msg)
	}
	return fmt.Errorf("%w: %s: %w", kind, msg, err)
}
