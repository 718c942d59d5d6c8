package listing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Source loads the full record collection of a listing.
type Source interface {
	Load(ctx context.Context) ([]Record, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Record, error)

func (f SourceFunc) Load(ctx context.Context) ([]Record, error) { return f(ctx) }

// Static serves a fixed collection.
type Static []Record

func (s Static) Load(context.Context) ([]Record, error) { return s, nil }

// FileSource reads a JSON array of objects from disk on every load.
type FileSource struct {
	Path string
}

func (f FileSource) Load(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	records, err := DecodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Path, err)
	}
	return records, nil
}

// DecodeRecords parses a JSON array of objects. Numbers keep their literal
// form so 2024 stringifies as "2024". Null entries become empty records.
func DecodeRecords(data []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var records []Record
	if err := dec.Decode(&records); err != nil {
		return nil, err
	}
	for i, r := range records {
		if r == nil {
			records[i] = Record{}
		}
	}
	return records, nil
}
