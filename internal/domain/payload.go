package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// DecodePayload turns a live message body into a RawRow. The body is a flat
// JSON object keyed by the same column names as a console export; values may
// be strings or numbers.
func DecodePayload(line int, payload []byte) (RawRow, error) {
	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil {
		return RawRow{}, fmt.Errorf("decode payload: %w", err)
	}
	cols := make(map[string]string, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case string:
			cols[k] = val
		case float64:
			cols[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case nil:
			// Absent values are reported by Extract as missing columns.
		default:
			return RawRow{}, fmt.Errorf("decode payload: column %s has unsupported type %T", k, v)
		}
	}
	return RawRow{Line: line, Columns: cols}, nil
}
