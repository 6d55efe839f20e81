package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jgoulah/gridload/pkg/models"
	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02 15:04:05"

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// StoredReading is a classified reading as kept in the export store
type StoredReading struct {
	ID        int64
	Feeder    int
	Published bool
	models.Reading
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		transformer_id TEXT NOT NULL,
		feeder INTEGER NOT NULL,
		timestamp TEXT NOT NULL,
		raw_timestamp TEXT NOT NULL,
		power_kw REAL,
		current_a REAL,
		voltage_v REAL,
		power_factor REAL,
		size_kva REAL,
		x_coordinate REAL,
		y_coordinate REAL,
		loading_percentage REAL,
		load_range TEXT NOT NULL,
		created_at TEXT NOT NULL,
		published INTEGER DEFAULT 0,
		UNIQUE(kind, entity_id, timestamp)
	);
	CREATE INDEX IF NOT EXISTS idx_readings_entity ON readings(entity_id);
	CREATE INDEX IF NOT EXISTS idx_readings_timestamp ON readings(timestamp);
	CREATE INDEX IF NOT EXISTS idx_readings_published ON readings(published);
	`

	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}

	// Stores created before coordinates were kept; fails silently if the columns exist
	db.conn.Exec(`ALTER TABLE readings ADD COLUMN x_coordinate REAL`)
	db.conn.Exec(`ALTER TABLE readings ADD COLUMN y_coordinate REAL`)

	return nil
}

// InsertReadings upserts classified readings in one transaction.
// Re-exporting the same window overwrites the measurements but keeps the published flag.
func (db *DB) InsertReadings(feeder int, readings []models.Reading) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
	INSERT INTO readings (kind, entity_id, transformer_id, feeder, timestamp, raw_timestamp,
		power_kw, current_a, voltage_v, power_factor, size_kva, x_coordinate, y_coordinate,
		loading_percentage, load_range, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(kind, entity_id, timestamp) DO UPDATE SET
		transformer_id = excluded.transformer_id,
		feeder = excluded.feeder,
		raw_timestamp = excluded.raw_timestamp,
		power_kw = excluded.power_kw,
		current_a = excluded.current_a,
		voltage_v = excluded.voltage_v,
		power_factor = excluded.power_factor,
		size_kva = excluded.size_kva,
		x_coordinate = excluded.x_coordinate,
		y_coordinate = excluded.y_coordinate,
		loading_percentage = excluded.loading_percentage,
		load_range = excluded.load_range
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	createdAt := time.Now().UTC().Format(time.RFC3339)
	for _, r := range readings {
		_, err := stmt.Exec(
			string(r.Kind), r.EntityID, r.TransformerID, feeder,
			r.Timestamp.UTC().Format(timeLayout), r.RawTimestamp.UTC().Format(timeLayout),
			nullable(r.PowerKW), nullable(r.CurrentA), nullable(r.VoltageV),
			nullable(r.PowerFactor), nullable(r.SizeKVA), nullable(r.XCoordinate), nullable(r.YCoordinate),
			nullable(r.LoadingPercentage),
			string(r.LoadRange), createdAt,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting reading %s at %s: %w", r.EntityID, r.Timestamp.Format(timeLayout), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing readings: %w", err)
	}
	return len(readings), nil
}

// ListReadings retrieves the stored readings of one entity with timestamps in [from, to), ordered by time.
// A zero from or to leaves that side open.
func (db *DB) ListReadings(entityID string, from, to time.Time) ([]StoredReading, error) {
	query := `
	SELECT ` + columns + `
	FROM readings
	WHERE entity_id = ?
	`
	args := []any{entityID}
	if !from.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, from.UTC().Format(timeLayout))
	}
	if !to.IsZero() {
		query += ` AND timestamp < ?`
		args = append(args, to.UTC().Format(timeLayout))
	}
	query += ` ORDER BY timestamp ASC`

	return db.query(query, args...)
}

// ListUnpublished retrieves readings not yet sent to the time-series store, oldest first
func (db *DB) ListUnpublished(limit int) ([]StoredReading, error) {
	query := `
	SELECT ` + columns + `
	FROM readings
	WHERE published = 0
	ORDER BY timestamp ASC
	LIMIT ?
	`
	return db.query(query, limit)
}

// MarkPublished marks readings as sent to the time-series store
func (db *DB) MarkPublished(ids []int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.Exec(`UPDATE readings SET published = 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("marking reading %d as published: %w", id, err)
		}
	}
	return tx.Commit()
}

const columns = `id, kind, entity_id, transformer_id, feeder, timestamp, raw_timestamp,
		power_kw, current_a, voltage_v, power_factor, size_kva, x_coordinate, y_coordinate,
		loading_percentage, load_range, published`

func (db *DB) query(query string, args ...any) ([]StoredReading, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	var results []StoredReading
	for rows.Next() {
		var s StoredReading
		var kind, ts, raw, loadRange string
		var powerKW, currentA, voltageV, powerFactor, sizeKVA, x, y, pct sql.NullFloat64
		var published int

		if err := rows.Scan(&s.ID, &kind, &s.EntityID, &s.TransformerID, &s.Feeder, &ts, &raw,
			&powerKW, &currentA, &voltageV, &powerFactor, &sizeKVA, &x, &y, &pct, &loadRange, &published); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		s.Timestamp, err = time.Parse(timeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		s.RawTimestamp, err = time.Parse(timeLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("parsing raw_timestamp: %w", err)
		}

		s.Kind = models.ReadingKind(kind)
		s.LoadRange = models.LoadRange(loadRange)
		s.PowerKW = pointer(powerKW)
		s.CurrentA = pointer(currentA)
		s.VoltageV = pointer(voltageV)
		s.PowerFactor = pointer(powerFactor)
		s.SizeKVA = pointer(sizeKVA)
		s.XCoordinate = pointer(x)
		s.YCoordinate = pointer(y)
		s.LoadingPercentage = pointer(pct)
		s.Published = published != 0

		results = append(results, s)
	}

	return results, rows.Err()
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func pointer(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return models.Float(v.Float64)
}
