package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// schemaSQL is the embedded schema for the two tables achewd persists:
// a single-row preferences blob and a per-pipeline resume checkpoint.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS preferences (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	ai_options TEXT NOT NULL,
	smart_detect TEXT NOT NULL,
	default_asr_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS pipeline_checkpoints (
	item_id TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// Store is the sqlite-backed preferences and checkpoint repository,
// hand-writing its queries against database/sql.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if absent) the sqlite database at path and
// applies WAL, foreign-keys, and busy-timeout pragmas.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create config db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open config db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping config db: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init config schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying sqlite connection.
func (s *Store) Close() error { return s.db.Close() }

// LoadPreferences returns the persisted row, or DefaultAIOptions/a nil
// SmartDetect override when no row has ever been written. The caller
// unmarshals smartDetectJSON into model.SmartDetectConfig itself, since
// this package stores it as an opaque blob to avoid depending on model
// for a single field.
func (s *Store) LoadPreferences(ctx context.Context) (ai AIOptions, smartDetectJSON []byte, defaultASRID string, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT ai_options, smart_detect, default_asr_id FROM preferences WHERE id = 1`)
	var aiRaw, sdRaw string
	switch err := row.Scan(&aiRaw, &sdRaw, &defaultASRID); err {
	case nil:
		if jsonErr := json.Unmarshal([]byte(aiRaw), &ai); jsonErr != nil {
			return AIOptions{}, nil, "", fmt.Errorf("decode stored ai_options: %w", jsonErr)
		}
		return ai, []byte(sdRaw), defaultASRID, nil
	case sql.ErrNoRows:
		return DefaultAIOptions(), nil, "", nil
	default:
		return AIOptions{}, nil, "", fmt.Errorf("load preferences: %w", err)
	}
}

// SavePreferences upserts the single preferences row. smartDetectJSON is
// the caller's already-marshalled model.SmartDetectConfig.
func (s *Store) SavePreferences(ctx context.Context, ai AIOptions, smartDetectJSON []byte, defaultASRID string) error {
	aiRaw, err := json.Marshal(ai)
	if err != nil {
		return fmt.Errorf("encode ai_options: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO preferences (id, ai_options, smart_detect, default_asr_id)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ai_options = excluded.ai_options,
			smart_detect = excluded.smart_detect,
			default_asr_id = excluded.default_asr_id
	`, string(aiRaw), string(smartDetectJSON), defaultASRID)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

// SaveCheckpoint records the settled state a pipeline run reached for
// itemID. Neither internal/pipeline nor cmd/achewd calls it, so a
// restarted achewd process starts at Idle.
func (s *Store) SaveCheckpoint(ctx context.Context, itemID, state string, updatedAt int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_checkpoints (item_id, state, updated_at)
		VALUES (?, ?, datetime(?, 'unixepoch'))
		ON CONFLICT(item_id) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at
	`, itemID, state, updatedAt)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint returns the last recorded state for itemID, or ("",
// false, nil) if none was ever saved.
func (s *Store) LoadCheckpoint(ctx context.Context, itemID string) (state string, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT state FROM pipeline_checkpoints WHERE item_id = ?`, itemID)
	switch err := row.Scan(&state); err {
	case nil:
		return state, true, nil
	case sql.ErrNoRows:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("load checkpoint: %w", err)
	}
}

// DeleteCheckpoint removes itemID's resume bookkeeping once a pipeline
// reaches Completed or is explicitly deleted.
func (s *Store) DeleteCheckpoint(ctx context.Context, itemID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pipeline_checkpoints WHERE item_id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}
