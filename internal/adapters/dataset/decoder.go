// Package dataset decodes uploaded files into tables.
package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/mvaldesr/tabletalk/internal/domain"
)

// Decoder turns raw upload bytes into a table. CSV is the supported format;
// anything else fails with a decode error.
type Decoder struct{}

func NewDecoder() *Decoder {
	return &Decoder{}
}

func (d *Decoder) Decode(data []byte, format string) (*domain.Table, error) {
	switch strings.ToLower(format) {
	case "csv", "":
		return decodeCSV(data)
	default:
		return nil, domain.E(domain.KindDecode, "unsupported format %q", format)
	}
}

func decodeCSV(data []byte) (*domain.Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, domain.Wrap(domain.KindDecode, err, "malformed CSV")
	}
	if len(records) == 0 {
		return nil, domain.E(domain.KindDecode, "empty file")
	}

	header := records[0]
	columns := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		columns[i] = name
	}

	rows := make([][]any, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]any, len(columns))
		for i := range columns {
			if i < len(rec) {
				row[i] = parseCell(rec[i])
			}
		}
		rows = append(rows, row)
	}

	t, err := domain.NewTable(columns, rows)
	if err != nil {
		return nil, domain.Wrap(domain.KindDecode, err, "invalid table")
	}
	return t, nil
}

// parseCell types a CSV field: empty is null, numbers become numbers,
// true/false become booleans, everything else stays a string.
func parseCell(field string) any {
	s := strings.TrimSpace(field)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	switch s {
	case "true", "TRUE", "True":
		return true
	case "false", "FALSE", "False":
		return false
	}
	return s
}
