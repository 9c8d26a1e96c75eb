// Package ledger is the durable record of everything the bot has already
// published, plus the template blacklist. One row per (site, question) pair,
// append-only: rows are never updated or deleted, so a process restart can
// never republish a question.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Ledger struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

func Open(dbPath string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}

	l := &Ledger{readDB: readDB, writeDB: writeDB}
	if err := l.init(); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) init() error {
	_, err := l.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS published (
			site         TEXT NOT NULL,
			question_id  INTEGER NOT NULL,
			published_at DATETIME NOT NULL,
			UNIQUE(site, question_id)
		);
		CREATE INDEX IF NOT EXISTS idx_published_site ON published(site);

		CREATE TABLE IF NOT EXISTS blacklist (
			template_name TEXT PRIMARY KEY,
			added_at      DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (l *Ledger) Close() error {
	var errs []error
	if l.readDB != nil {
		errs = append(errs, l.readDB.Close())
	}
	if l.writeDB != nil {
		errs = append(errs, l.writeDB.Close())
	}
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// Seen reports whether the question has already been published for the site.
func (l *Ledger) Seen(site string, questionID int64) (bool, error) {
	var one int
	err := l.readDB.QueryRow(
		"SELECT 1 FROM published WHERE site = ? AND question_id = ?",
		site, questionID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking ledger: %w", err)
	}
	return true, nil
}

// Insert records a published question. It reports whether a new row was
// written: false means the pair was already present, which is not an error.
func (l *Ledger) Insert(site string, questionID int64) (bool, error) {
	res, err := l.writeDB.Exec(`
		INSERT INTO published (site, question_id, published_at)
		VALUES (?, ?, ?)
		ON CONFLICT(site, question_id) DO NOTHING
	`, site, questionID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("inserting into ledger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Count returns the number of published questions for the site.
func (l *Ledger) Count(site string) (int, error) {
	var n int
	err := l.readDB.QueryRow(
		"SELECT COUNT(*) FROM published WHERE site = ?", site,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting ledger: %w", err)
	}
	return n, nil
}

// SiteCounts returns published counts keyed by site.
func (l *Ledger) SiteCounts() (map[string]int, error) {
	rows, err := l.readDB.Query(
		"SELECT site, COUNT(*) FROM published GROUP BY site ORDER BY site",
	)
	if err != nil {
		return nil, fmt.Errorf("counting ledger: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var site string
		var n int
		if err := rows.Scan(&site, &n); err != nil {
			return nil, fmt.Errorf("scanning ledger count: %w", err)
		}
		counts[site] = n
	}
	return counts, rows.Err()
}

// BlacklistAdd excludes a template from random selection. Adding an already
// blacklisted template is a no-op.
func (l *Ledger) BlacklistAdd(templateName string) error {
	_, err := l.writeDB.Exec(`
		INSERT INTO blacklist (template_name, added_at) VALUES (?, ?)
		ON CONFLICT(template_name) DO NOTHING
	`, templateName, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("blacklisting template: %w", err)
	}
	return nil
}

// BlacklistRemove re-admits a template. It reports whether the template was
// actually blacklisted.
func (l *Ledger) BlacklistRemove(templateName string) (bool, error) {
	res, err := l.writeDB.Exec(
		"DELETE FROM blacklist WHERE template_name = ?", templateName,
	)
	if err != nil {
		return false, fmt.Errorf("removing from blacklist: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Blacklist returns the blacklisted template names in alphabetical order.
func (l *Ledger) Blacklist() ([]string, error) {
	rows, err := l.readDB.Query(
		"SELECT template_name FROM blacklist ORDER BY template_name",
	)
	if err != nil {
		return nil, fmt.Errorf("reading blacklist: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning blacklist: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Stats returns the total published count and the db file size in bytes.
func (l *Ledger) Stats(dbPath string) (int, int64, error) {
	var count int
	if err := l.readDB.QueryRow("SELECT COUNT(*) FROM published").Scan(&count); err != nil {
		return 0, 0, fmt.Errorf("counting ledger: %w", err)
	}
	info, err := os.Stat(dbPath)
	if err != nil {
		return count, 0, fmt.Errorf("reading db size: %w", err)
	}
	return count, info.Size(), nil
}
