// Package csvfile reads station console exports into raw rows.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
)

// ReadFile opens path and reads every data row in it.
func ReadFile(path string) ([]domain.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

// Read parses a header row followed by data rows. Each row keeps its
// 1-indexed line number, header included. Rows with a different number of
// fields than the header are kept; absent trailing columns are simply missing
// so the row fails later as a single skipped reading.
func Read(r io.Reader) ([]domain.RawRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []domain.RawRow
	line := domain.HeaderRows
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++
		if blank(rec) {
			continue
		}
		cols := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(rec) {
				cols[name] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, domain.RawRow{Line: line, Columns: cols})
	}
	return rows, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
