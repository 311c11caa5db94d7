package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Map names. Each is an independent map-of-JSON-values; writes replace a
// whole map atomically inside one transaction.
const (
	MapEnrich      = "enrich"
	MapParsed      = "parsed"
	MapRendered    = "rendered"
	MapScans       = "scans"
	MapScanCache   = "scancache"
	MapManualIDs   = "manualids"
	MapManualEpIDs = "manualepids"
	MapWiki        = "wiki"
	MapImages      = "images"
	MapHideEvents  = "hideevents"
	MapSettings    = "settings"
	MapUsers       = "users"
)

// Store is the durable map-of-maps behind every cache.
type Store struct {
	conn    *sql.DB
	dataDir string
	logger  zerolog.Logger
}

// Open opens (creating if needed) the store database under dataDir and
// runs pending migrations.
func Open(dataDir string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	path := filepath.Join(dataDir, "linkarr.db")
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// SQLite only supports one writer.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.PingContext(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	s := &Store{
		conn:    conn,
		dataDir: dataDir,
		logger:  logger.With().Str("component", "store").Logger(),
	}

	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate() error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(s.conn, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// DataDir returns the data directory the store lives in.
func (s *Store) DataDir() string {
	return s.dataDir
}

// Get unmarshals the value stored under (mapName, key) into v. The second
// return is false when no row exists.
func (s *Store) Get(mapName, key string, v any) (bool, error) {
	var raw []byte
	err := s.conn.QueryRow(
		`SELECT value FROM kv WHERE map = ? AND key = ?`, mapName, key,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store get %s/%s: %w", mapName, key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("store decode %s/%s: %w", mapName, key, err)
	}
	return true, nil
}

// Set upserts one key in a map.
func (s *Store) Set(mapName, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store encode %s/%s: %w", mapName, key, err)
	}
	_, err = s.conn.Exec(
		`INSERT INTO kv (map, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(map, key) DO UPDATE SET value = excluded.value`,
		mapName, key, raw,
	)
	if err != nil {
		return fmt.Errorf("store set %s/%s: %w", mapName, key, err)
	}
	return nil
}

// Delete removes one key from a map. Missing keys are not an error.
func (s *Store) Delete(mapName, key string) error {
	_, err := s.conn.Exec(`DELETE FROM kv WHERE map = ? AND key = ?`, mapName, key)
	if err != nil {
		return fmt.Errorf("store delete %s/%s: %w", mapName, key, err)
	}
	return nil
}

// Keys lists every key of a map.
func (s *Store) Keys(mapName string) ([]string, error) {
	rows, err := s.conn.Query(`SELECT key FROM kv WHERE map = ?`, mapName)
	if err != nil {
		return nil, fmt.Errorf("store keys %s: %w", mapName, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// LoadMap reads a whole map into map[string]T.
func LoadMap[T any](s *Store, mapName string) (map[string]T, error) {
	rows, err := s.conn.Query(`SELECT key, value FROM kv WHERE map = ?`, mapName)
	if err != nil {
		return nil, fmt.Errorf("store load %s: %w", mapName, err)
	}
	defer rows.Close()

	out := make(map[string]T)
	for rows.Next() {
		var k string
		var raw []byte
		if err := rows.Scan(&k, &raw); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("store decode %s/%s: %w", mapName, k, err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// ReplaceMap atomically replaces the full contents of a map. Either the
// whole new state is visible or none of it.
func ReplaceMap[T any](s *Store, mapName string, m map[string]T) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("store replace %s: %w", mapName, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM kv WHERE map = ?`, mapName); err != nil {
		return fmt.Errorf("store replace %s: %w", mapName, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO kv (map, key, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store replace %s: %w", mapName, err)
	}
	defer stmt.Close()

	for k, v := range m {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("store encode %s/%s: %w", mapName, k, err)
		}
		if _, err := stmt.Exec(mapName, k, raw); err != nil {
			return fmt.Errorf("store replace %s/%s: %w", mapName, k, err)
		}
	}

	return tx.Commit()
}
