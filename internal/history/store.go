// Package history records served forecasts in a SQL database (SQLite by
// default, PostgreSQL when configured).
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"forecastd/pkg/types"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultLimit = 20
	maxLimit     = 500
)

// connMaxIdleTime recycles idle postgres connections. SQLite never expires
// its single connection: an in-memory database lives only as long as it.
var connMaxIdleTime = 5 * time.Minute

// Store persists forecasts.
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// Open connects to dsn with driver and creates the schema if needed. An
// empty sqlite dsn opens a private in-memory database.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case "", DriverSQLite:
		driver = DriverSQLite
		if dsn == "" {
			dsn = "file::memory:"
		}
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("postgres history store requires a dsn")
		}
	default:
		return nil, fmt.Errorf("unsupported history driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxIdleTime(0)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxIdleTime(connMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history ping: %w", err)
	}
	s := &Store{db: db, driver: driver, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	id := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		id = "BIGSERIAL PRIMARY KEY"
	}
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS forecast_history (
  id `+id+`,
  code TEXT NOT NULL,
  variant TEXT NOT NULL,
  horizon INTEGER NOT NULL,
  start_date TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL,
  payload TEXT NOT NULL
);`)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS forecast_history_code_idx ON forecast_history (code, created_at);`)
	return err
}

// rebind rewrites ? placeholders for drivers that use $n.
func (s *Store) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Record stores f.
func (s *Store) Record(ctx context.Context, f types.Forecast) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
INSERT INTO forecast_history(code, variant, horizon, start_date, created_at, payload)
VALUES(?, ?, ?, ?, ?, ?);`), f.Code, f.Variant, f.Horizon, f.StartDate, s.now().Unix(), string(payload))
	return err
}

// Recent returns up to limit forecasts for code, newest first.
func (s *Store) Recent(ctx context.Context, code string, limit int) ([]types.HistoryRecord, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT id, code, variant, horizon, start_date, created_at, payload
FROM forecast_history WHERE code = ? ORDER BY created_at DESC, id DESC LIMIT ?;`), code, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []types.HistoryRecord{}
	for rows.Next() {
		var rec types.HistoryRecord
		var payload string
		if err := rows.Scan(&rec.ID, &rec.Code, &rec.Variant, &rec.Horizon, &rec.StartDate, &rec.CreatedAt, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &rec.Forecast); err != nil {
			return nil, fmt.Errorf("history row %d: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Health pings the database.
func (s *Store) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}
