package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/grag/internal/models"
)

// DatabaseFile is the SQLite file name inside the preset directory.
const DatabaseFile = "presets.db"

// SQLitePresetStore implements PresetStore on SQLite. Built-in catalog
// presets are upserted on open so catalog updates reach existing databases.
type SQLitePresetStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLitePresetStore opens or creates dir/presets.db.
func NewSQLitePresetStore(dir string) (*SQLitePresetStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create preset directory: %w", err)
	}
	dbPath := filepath.Join(dir, DatabaseFile)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	ctx := context.Background()
	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLitePresetStore{db: db, dbPath: dbPath}
	if err := s.seedCatalog(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed catalog: %w", err)
	}
	return s, nil
}

// seedCatalog upserts the built-in catalog.
func (s *SQLitePresetStore) seedCatalog(ctx context.Context) error {
	catalog, err := Catalog()
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// A user preset sharing a name with a catalog entry loses its name.
	for _, p := range catalog {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM presets WHERE name = ? AND key != ? AND builtin = 0`, p.Name, p.Key); err != nil {
			return fmt.Errorf("failed to clear name %s: %w", p.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO presets (key, name, lambda, delta, strength, category, description, use_case, builtin, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, NULL)
			ON CONFLICT(key) DO UPDATE SET
				name = excluded.name,
				lambda = excluded.lambda,
				delta = excluded.delta,
				strength = excluded.strength,
				category = excluded.category,
				description = excluded.description,
				use_case = excluded.use_case,
				builtin = 1`,
			p.Key, p.Name, p.LambdaBase, p.DeltaBase, p.StrengthDefault,
			p.Category, p.Description, p.UseCase); err != nil {
			return fmt.Errorf("failed to seed %s: %w", p.Key, err)
		}
	}
	return tx.Commit()
}

const presetColumns = `key, name, lambda, delta, strength, category, description, use_case, builtin, created_at`

func scanPreset(row interface{ Scan(...any) error }) (models.Preset, error) {
	var (
		p                    models.Preset
		description, useCase sql.NullString
		createdAt            sql.NullString
		builtin              int
	)
	if err := row.Scan(&p.Key, &p.Name, &p.LambdaBase, &p.DeltaBase, &p.StrengthDefault,
		&p.Category, &description, &useCase, &builtin, &createdAt); err != nil {
		return models.Preset{}, err
	}
	p.Description = description.String
	p.UseCase = useCase.String
	p.BuiltIn = builtin == 1
	if createdAt.Valid {
		if t, err := time.Parse(time.RFC3339, createdAt.String); err == nil {
			p.CreatedAt = t
		}
	}
	return p, nil
}

// LoadAll returns every preset keyed by display name.
func (s *SQLitePresetStore) LoadAll(ctx context.Context) (map[string]models.Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+presetColumns+` FROM presets`)
	if err != nil {
		return nil, fmt.Errorf("failed to query presets: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.Preset)
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan preset: %w", err)
		}
		out[p.Name] = p
	}
	return out, rows.Err()
}

// Get returns a preset by name or key. Returns nil if not found.
func (s *SQLitePresetStore) Get(ctx context.Context, name string) (*models.Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+presetColumns+` FROM presets WHERE name = ? OR key = ? ORDER BY builtin DESC LIMIT 1`,
		name, models.PresetKey(name))
	p, err := scanPreset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preset: %w", err)
	}
	return &p, nil
}

// Save stores a user preset.
func (s *SQLitePresetStore) Save(ctx context.Context, p models.Preset) error {
	p, err := prepare(p)
	if err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var builtins int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM presets WHERE builtin = 1 AND (key = ? OR name = ?)`, p.Key, p.Name).Scan(&builtins); err != nil {
		return fmt.Errorf("failed to check preset: %w", err)
	}
	if builtins > 0 {
		return fmt.Errorf("saving %s: %w", p.Name, ErrReadOnly)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO presets (`+presetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(key) DO UPDATE SET
			name = excluded.name,
			lambda = excluded.lambda,
			delta = excluded.delta,
			strength = excluded.strength,
			category = excluded.category,
			description = excluded.description,
			use_case = excluded.use_case,
			created_at = excluded.created_at`,
		p.Key, p.Name, p.LambdaBase, p.DeltaBase, p.StrengthDefault,
		p.Category, p.Description, p.UseCase, p.CreatedAt.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to save preset: %w", err)
	}
	return nil
}

// Delete removes a user preset.
func (s *SQLitePresetStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		key     string
		builtin int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT key, builtin FROM presets WHERE name = ? OR key = ? ORDER BY builtin DESC LIMIT 1`,
		name, models.PresetKey(name)).Scan(&key, &builtin)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("deleting %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up preset: %w", err)
	}
	if builtin == 1 {
		return fmt.Errorf("deleting %s: %w", name, ErrReadOnly)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM presets WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete preset: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLitePresetStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
