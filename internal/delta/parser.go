// Package delta parses delta files and applies their records to the catalog.
package delta

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kioshini/catalog-sync-service/internal/model"
)

// ErrMalformed marks a delta file whose bytes could not be decoded.
var ErrMalformed = errors.New("malformed delta file")

// ParseError describes why a delta file was rejected.
type ParseError struct {
	Detail string
	Err    error
}

func (e *ParseError) Error() string { return "parse delta: " + e.Detail }

func (e *ParseError) Unwrap() error { return e.Err }

func malformed(format string, args ...any) error {
	return &ParseError{Detail: fmt.Sprintf(format, args...), Err: ErrMalformed}
}

// root array field per kind, as produced by the upstream export.
const (
	rootPrices   = "ArrayOfPricesEl"
	rootRemnants = "ArrayOfRemnantsEl"
)

// KindOf classifies a delta file by its base name. Price files start with
// "prices", remnant (stock) files with "remnants", case-insensitively;
// anything else is unrecognized.
func KindOf(path string) model.DeltaKind {
	base := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasPrefix(base, "prices"):
		return model.KindPrices
	case strings.HasPrefix(base, "remnants"):
		return model.KindRemnants
	default:
		return model.KindUnknown
	}
}

// Parse decodes raw delta-file bytes into records. The document must be a
// JSON object whose root array field matches the expected kind; field-name
// case variation and unknown fields inside records are tolerated. Parse does
// no I/O.
func Parse(raw []byte, kind model.DeltaKind) ([]model.DeltaRecord, error) {
	var root string
	switch kind {
	case model.KindPrices:
		root = rootPrices
	case model.KindRemnants:
		root = rootRemnants
	default:
		return nil, malformed("no schema for kind %q", kind)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ParseError{Detail: "invalid JSON document", Err: ErrMalformed}
	}
	var arr json.RawMessage
	for k, v := range doc {
		if strings.EqualFold(k, root) {
			arr = v
			break
		}
	}
	if arr == nil {
		return nil, malformed("missing root array %q", root)
	}
	var records []model.DeltaRecord
	if err := json.Unmarshal(arr, &records); err != nil {
		return nil, malformed("root field %q is not a record array", root)
	}
	return records, nil
}
