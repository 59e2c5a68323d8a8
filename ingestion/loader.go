package ingestion

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/libris/core"
	"gopkg.in/yaml.v3"
)

// utf8BOM is stripped from the start of CSV headers written by spreadsheet tools.
const utf8BOM = "\ufeff"

// LoadFile reads records from path, choosing the format from its extension:
// .csv, .json, .yaml or .yml.
func LoadFile(path string) ([]core.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, err
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return LoadCSV(f)
	case ".json":
		return LoadJSON(f)
	case ".yaml", ".yml":
		return LoadYAML(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// LoadCSV reads a CSV document whose first row names the columns.
// Column names are trimmed and lower-cased. Empty cells are kept as empty
// values; cells missing from short rows are absent.
func LoadCSV(r io.Reader) ([]core.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []core.Record{}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedSource, err)
	}
	for i, col := range header {
		if i == 0 {
			col = strings.TrimPrefix(col, utf8BOM)
		}
		header[i] = strings.ToLower(strings.TrimSpace(col))
	}

	records := []core.Record{}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedSource, err)
		}

		record := make(core.Record, len(header))
		for i, value := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			record[header[i]] = value
		}
		records = append(records, record)
	}
	return records, nil
}

// LoadJSON reads a JSON array of objects. Strings are taken as is, numbers
// keep their literal form, booleans become "true" or "false", null fields are
// absent and nested values are kept as compact JSON text.
func LoadJSON(r io.Reader) ([]core.Record, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var rows []map[string]any
	if err := decoder.Decode(&rows); err != nil {
		if errors.Is(err, io.EOF) {
			return []core.Record{}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedSource, err)
	}
	return toRecords(rows)
}

// LoadYAML reads a YAML sequence of mappings with the same value rules as LoadJSON.
func LoadYAML(r io.Reader) ([]core.Record, error) {
	var rows []map[string]any
	if err := yaml.NewDecoder(r).Decode(&rows); err != nil {
		if errors.Is(err, io.EOF) {
			return []core.Record{}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedSource, err)
	}
	return toRecords(rows)
}

func toRecords(rows []map[string]any) ([]core.Record, error) {
	records := make([]core.Record, 0, len(rows))
	for _, row := range rows {
		record := make(core.Record, len(row))
		for key, value := range row {
			text, ok, err := stringify(value)
			if err != nil {
				return nil, fmt.Errorf("%w: field %q: %w", ErrMalformedSource, key, err)
			}
			if ok {
				record[strings.ToLower(strings.TrimSpace(key))] = text
			}
		}
		records = append(records, record)
	}
	return records, nil
}

// stringify renders a decoded value as record text. It reports false for null.
func stringify(value any) (string, bool, error) {
	switch v := value.(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	case json.Number:
		return v.String(), true, nil
	case bool, int, int64, uint64, float64:
		return fmt.Sprint(v), true, nil
	default:
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(v); err != nil {
			return "", false, err
		}
		return strings.TrimSpace(buf.String()), true, nil
	}
}
