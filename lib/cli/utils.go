package cli

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gibson042/canonicaljson-go"
	"github.com/steinarvk/recquery/lib/dexapi"
	"github.com/steinarvk/recquery/lib/record"
)

func humanizeBytes(bytesize int64) string {
	if bytesize < 0 {
		return fmt.Sprintf("-%s", humanizeBytes(-bytesize))
	}

	units := []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}
	threshold := int64(1)

	for i, unit := range units {
		isFinal := i == len(units)-1
		nextThreshold := threshold * 1024
		if isFinal || bytesize < nextThreshold {
			if threshold == 1 {
				return fmt.Sprintf("%d %s", bytesize, unit)
			}
			amount := float64(bytesize) / float64(threshold)
			return fmt.Sprintf("%.2f %s", amount, unit)
		}
		threshold = nextThreshold
	}

	panic("unreachable")
}

// readDocument reads inline JSON, "@filename", or "-" for stdin.
func readDocument(arg string, stdin io.Reader) ([]byte, error) {
	switch {
	case arg == "-":
		return io.ReadAll(stdin)
	case strings.HasPrefix(arg, "@"):
		return os.ReadFile(arg[1:])
	}
	return []byte(arg), nil
}

func parseQueryDocument(data []byte) (*dexapi.Query, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	decoder.DisallowUnknownFields()

	var q dexapi.Query
	if err := decoder.Decode(&q); err != nil {
		return nil, fmt.Errorf("invalid query document: %w", err)
	}
	return &q, nil
}

// parseFilterValue reads a JSON scalar, falling back to the raw text as a
// string, so that both age=10 and name=bob work.
func parseFilterValue(s string) interface{} {
	decoder := json.NewDecoder(strings.NewReader(s))
	decoder.UseNumber()

	var v interface{}
	if err := decoder.Decode(&v); err != nil || decoder.More() {
		return s
	}
	switch v.(type) {
	case map[string]interface{}, []interface{}, nil:
		return s
	}
	return v
}

// filterValue types the text of a key=value filter flag. Prefix operands and
// string fields keep the text as given, so ymd__startswith=2011 and title=123
// compare as strings.
func filterValue(schema *record.Schema, key, raw string) interface{} {
	field := key
	if i := strings.LastIndex(key, "__"); i >= 0 {
		field = key[:i]
		if key[i+2:] != "eq" {
			return raw
		}
	}
	if schema.IsString(field) {
		return raw
	}
	return parseFilterValue(raw)
}

// collectionDigest hashes the canonical JSON of every record's fields, in
// order, leaving out store-assigned ids.
func collectionDigest(records []record.Record) (string, error) {
	h := sha256.New()
	for _, r := range records {
		obj := map[string]interface{}{}
		for name, v := range r.Fields() {
			obj[name] = v.Interface()
		}
		data, err := canonicaljson.Marshal(obj)
		if err != nil {
			return "", fmt.Errorf("error encoding record %s: %w", r.ID, err)
		}
		h.Write(data)
		h.Write([]byte("\n"))
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func writeJSON(w io.Writer, value interface{}) error {
	marshalled, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	if _, err := w.Write(marshalled); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n"))
	return err
}

// writeTable prints the selected fields of each record, tab-separated.
// Absent fields print as empty cells.
func writeTable(w io.Writer, resp *dexapi.PageResponse, fields []string) error {
	for _, item := range resp.Records {
		cells := make([]string, len(fields))
		for i, field := range fields {
			if v, ok := item.Record[field]; ok {
				cells[i] = fmt.Sprint(v)
			}
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return nil
}
