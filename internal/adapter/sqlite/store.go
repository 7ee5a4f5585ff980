// Package sqlite keeps records and field series in an embedded SQLite file,
// one row per measurement, tag set, field and timestamp.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed sql/schema.sql
var schemaSQL string

//go:embed sql/upsert-point.sql
var upsertPointSQL string

//go:embed sql/select-field.sql
var selectFieldSQL string

//go:embed sql/select-timestamps.sql
var selectTimestampsSQL string

// Store implements the record and series contracts on SQLite.
type Store struct {
	db      *sql.DB
	hostTag string
	logger  *slog.Logger
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path, hostTag string, logger *slog.Logger) (*Store, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	s := NewStore(db, hostTag, logger)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an already open database.
func NewStore(db *sql.DB, hostTag string, logger *slog.Logger) *Store {
	return &Store{db: db, hostTag: hostTag, logger: logger}
}

// Migrate creates the points table if missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WriteRecords stores every field of every record in one transaction.
func (s *Store) WriteRecords(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	return s.inTx(ctx, func(stmt *sql.Stmt) error {
		for _, r := range records {
			tags, err := encodeTags(r.Tags.Map())
			if err != nil {
				return err
			}
			for field, v := range r.Fields.Map() {
				if _, err := stmt.ExecContext(ctx, r.Measurement, tags, field, r.Time.UnixNano(), toFloat(v)); err != nil {
					return fmt.Errorf("upsert %s at %s: %w", field, r.Time, err)
				}
			}
		}
		return nil
	})
}

// ExistingTimestamps returns the instants in [start, stop) that already hold a
// point of the measurement, as Unix nanoseconds.
func (s *Store) ExistingTimestamps(ctx context.Context, measurement string, start, stop time.Time) (map[int64]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, selectTimestampsSQL, measurement, start.UnixNano(), stop.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query existing timestamps: %w", err)
	}
	defer s.closeRows(rows)

	existing := make(map[int64]struct{})
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		existing[ts] = struct{}{}
	}
	return existing, rows.Err()
}

// QueryField returns every value of one field in [start, stop), sorted by time.
func (s *Store) QueryField(ctx context.Context, measurement, field string, start, stop time.Time) ([]domain.SeriesPoint, error) {
	rows, err := s.db.QueryContext(ctx, selectFieldSQL, measurement, field, start.UnixNano(), stop.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", field, err)
	}
	defer s.closeRows(rows)

	var points []domain.SeriesPoint
	for rows.Next() {
		var (
			ts   int64
			v    float64
			tags string
		)
		if err := rows.Scan(&ts, &v, &tags); err != nil {
			return nil, err
		}
		p := domain.SeriesPoint{Time: time.Unix(0, ts).UTC(), Value: v}
		if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
			return nil, fmt.Errorf("decode tags %q: %w", tags, err)
		}
		if len(p.Tags) == 0 {
			p.Tags = nil
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// WriteField overwrites one field at each point's timestamp. Points without
// tags are written under the configured host tag.
func (s *Store) WriteField(ctx context.Context, measurement, field string, points []domain.SeriesPoint) error {
	if len(points) == 0 {
		return nil
	}
	return s.inTx(ctx, func(stmt *sql.Stmt) error {
		for _, p := range points {
			t := p.Tags
			if len(t) == 0 {
				t = map[string]string{"host": s.hostTag}
			}
			tags, err := encodeTags(t)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, measurement, tags, field, p.Time.UnixNano(), p.Value); err != nil {
				return fmt.Errorf("upsert %s at %s: %w", field, p.Time, err)
			}
		}
		return nil
	})
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Stmt) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed", "error", rbErr)
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertPointSQL)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // closed with the transaction

	if err = fn(stmt); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		s.logger.Error("close rows", "error", err)
	}
}

// encodeTags renders tags as a JSON object. Map keys are marshalled in sorted
// order, so equal tag sets share a primary key.
func encodeTags(tags map[string]string) (string, error) {
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func buildDSN(path string) (string, error) {
	dir := filepath.Dir(path)
	if dir != "." && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
