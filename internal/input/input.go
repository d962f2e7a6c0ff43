// Package input reads batches of thread ids from CSV, XLSX and JSON files.
package input

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// headerNames are first-row cells treated as a column header, not an id.
var headerNames = map[string]bool{
	"thread_id": true,
	"threadid":  true,
	"thread id": true,
	"id":        true,
}

// LoadThreadIDs reads thread ids from path. The format is picked by the
// file extension: .csv and .txt read the first column, .xlsx the first
// column of the first sheet, .json an array of ids or of objects with a
// thread_id field. Blank cells, a header cell and repeats are dropped.
func LoadThreadIDs(ctx context.Context, path string) ([]string, error) {
	var (
		raw []string
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		raw, err = csvIDs(ctx, path)
	case ".xlsx":
		raw, err = xlsxIDs(path)
	case ".json":
		raw, err = jsonIDs(ctx, path)
	default:
		return nil, eris.Errorf("input: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return clean(raw), nil
}

func clean(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for i, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		if i == 0 && headerNames[strings.ToLower(id)] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func csvIDs(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "input: open csv")
	}
	defer f.Close() //nolint:errcheck

	rowCh, errCh := StreamCSV(ctx, f, CSVOptions{Comment: '#', TrimSpace: true})
	var ids []string
	for row := range rowCh {
		ids = append(ids, firstCell(row))
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return ids, nil
}

func xlsxIDs(path string) ([]string, error) {
	rows, err := ReadXLSX(path, XLSXOptions{})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = firstCell(row)
	}
	return ids, nil
}

func firstCell(row []string) string {
	if len(row) == 0 {
		return ""
	}
	return row[0]
}
