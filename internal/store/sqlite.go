// Package store provides the SQLite-backed requirement corpus: source
// statements per framework, the canonical category table with aliases,
// and authored fallback templates. It implements the engine's
// collaborator interfaces; the engine itself never touches the database.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"harmonia/internal/logging"
	"harmonia/internal/types"
)

// CorpusStore wraps the SQLite database holding the requirement corpus.
type CorpusStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open initializes the SQLite database at the given path, creating the
// schema when absent.
func Open(path string) (*CorpusStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	logging.Store("Opening corpus store at %s", path)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &CorpusStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *CorpusStore) Close() error {
	return s.db.Close()
}

func (s *CorpusStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS frameworks (
		id   TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS requirements (
		id            TEXT PRIMARY KEY,
		framework_id  TEXT NOT NULL,
		code          TEXT NOT NULL,
		text          TEXT NOT NULL,
		category_hint TEXT NOT NULL DEFAULT '',
		UNIQUE(framework_id, code)
	);
	CREATE INDEX IF NOT EXISTS idx_requirements_category ON requirements(category_hint);
	CREATE TABLE IF NOT EXISTS categories (
		name TEXT PRIMARY KEY
	);
	CREATE TABLE IF NOT EXISTS category_aliases (
		alias         TEXT PRIMARY KEY,
		category_name TEXT NOT NULL REFERENCES categories(name)
	);
	CREATE TABLE IF NOT EXISTS templates (
		category_name TEXT NOT NULL,
		position      INTEGER NOT NULL,
		line          TEXT NOT NULL,
		PRIMARY KEY(category_name, position)
	);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	logging.StoreDebug("Corpus schema initialized")
	return nil
}

// =============================================================================
// COLLABORATOR INTERFACE IMPLEMENTATIONS
// =============================================================================

// LoadSourceRequirements returns statements for the given frameworks
// whose category hint matches the label directly or through an alias.
// Results come back ordered by framework then code, matching the
// engine's deterministic processing order.
func (s *CorpusStore) LoadSourceRequirements(frameworkIDs []string, categoryLabel string) ([]types.SourceRequirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(frameworkIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(frameworkIDs)), ",")
	query := fmt.Sprintf(`
		SELECT id, framework_id, code, text, category_hint
		FROM requirements
		WHERE framework_id IN (%s)
		  AND (category_hint = ?
		       OR category_hint IN (SELECT alias FROM category_aliases WHERE category_name = ?))
		ORDER BY framework_id, code`, placeholders)

	args := make([]interface{}, 0, len(frameworkIDs)+2)
	for _, id := range frameworkIDs {
		args = append(args, id)
	}
	args = append(args, categoryLabel, categoryLabel)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying requirements: %w", err)
	}
	defer rows.Close()

	var out []types.SourceRequirement
	for rows.Next() {
		var r types.SourceRequirement
		if err := rows.Scan(&r.ID, &r.FrameworkID, &r.Code, &r.Text, &r.CategoryHint); err != nil {
			return nil, fmt.Errorf("scanning requirement: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logging.StoreDebug("loaded %d requirements for category %q across %d frameworks",
		len(out), categoryLabel, len(frameworkIDs))
	return out, nil
}

// LoadCanonicalCategories returns the canonical category table with
// aliases, ordered by name.
func (s *CorpusStore) LoadCanonicalCategories() ([]types.UnifiedCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	var out []types.UnifiedCategory
	for rows.Next() {
		var cat types.UnifiedCategory
		if err := rows.Scan(&cat.Name); err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		aliasRows, err := s.db.Query(`SELECT alias FROM category_aliases WHERE category_name = ? ORDER BY alias`, out[i].Name)
		if err != nil {
			return nil, fmt.Errorf("querying aliases: %w", err)
		}
		for aliasRows.Next() {
			var alias string
			if err := aliasRows.Scan(&alias); err != nil {
				aliasRows.Close()
				return nil, err
			}
			out[i].Aliases = append(out[i].Aliases, alias)
		}
		if err := aliasRows.Err(); err != nil {
			aliasRows.Close()
			return nil, err
		}
		aliasRows.Close()
	}
	return out, nil
}

// LoadAuthoredTemplate returns the authored template lines for a
// canonical category name. found=false is a normal outcome.
func (s *CorpusStore) LoadAuthoredTemplate(canonicalName string) ([]string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT line FROM templates WHERE category_name = ? ORDER BY position`, canonicalName)
	if err != nil {
		return nil, false, fmt.Errorf("querying template: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, false, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return lines, len(lines) > 0, nil
}

// =============================================================================
// IMPORT
// =============================================================================

// Fixture is the YAML shape consumed by ImportFixture, used to seed a
// corpus database.
type Fixture struct {
	Frameworks   []FrameworkRow      `yaml:"frameworks"`
	Requirements []RequirementRow    `yaml:"requirements"`
	Categories   []CategoryRow       `yaml:"categories"`
	Templates    map[string][]string `yaml:"templates"`
}

// FrameworkRow is one framework entry in a fixture.
type FrameworkRow struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// RequirementRow is one requirement entry in a fixture. ID defaults to
// "framework:code" when empty.
type RequirementRow struct {
	ID        string `yaml:"id"`
	Framework string `yaml:"framework"`
	Code      string `yaml:"code"`
	Text      string `yaml:"text"`
	Category  string `yaml:"category"`
}

// CategoryRow is one canonical category entry in a fixture.
type CategoryRow struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// ImportFixture bulk-loads a fixture in one transaction. Existing rows
// with the same keys are replaced, so imports are idempotent.
func (s *CorpusStore) ImportFixture(fix *Fixture) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer := logging.StartTimer(logging.CategoryStore, "ImportFixture")
	defer timer.Stop()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning import: %w", err)
	}
	defer tx.Rollback()

	for _, fw := range fix.Frameworks {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO frameworks(id, name) VALUES(?, ?)`, fw.ID, fw.Name); err != nil {
			return 0, fmt.Errorf("inserting framework %s: %w", fw.ID, err)
		}
	}

	inserted := 0
	for _, r := range fix.Requirements {
		id := r.ID
		if id == "" {
			id = r.Framework + ":" + r.Code
		}
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO requirements(id, framework_id, code, text, category_hint) VALUES(?, ?, ?, ?, ?)`,
			id, r.Framework, r.Code, r.Text, r.Category); err != nil {
			return 0, fmt.Errorf("inserting requirement %s: %w", id, err)
		}
		inserted++
	}

	for _, cat := range fix.Categories {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO categories(name) VALUES(?)`, cat.Name); err != nil {
			return 0, fmt.Errorf("inserting category %q: %w", cat.Name, err)
		}
		for _, alias := range cat.Aliases {
			if _, err := tx.Exec(
				`INSERT OR REPLACE INTO category_aliases(alias, category_name) VALUES(?, ?)`,
				alias, cat.Name); err != nil {
				return 0, fmt.Errorf("inserting alias %q: %w", alias, err)
			}
		}
	}

	for name, lines := range fix.Templates {
		if _, err := tx.Exec(`DELETE FROM templates WHERE category_name = ?`, name); err != nil {
			return 0, fmt.Errorf("clearing template %q: %w", name, err)
		}
		for i, line := range lines {
			if _, err := tx.Exec(
				`INSERT INTO templates(category_name, position, line) VALUES(?, ?, ?)`,
				name, i, line); err != nil {
				return 0, fmt.Errorf("inserting template line for %q: %w", name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}

	logging.Store("imported %d requirements, %d categories, %d templates",
		inserted, len(fix.Categories), len(fix.Templates))
	return inserted, nil
}
