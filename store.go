package pubfront

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eringen/pubfront/pager"
)

// ErrNotFound is returned when a requested post does not exist.
var ErrNotFound = errors.New("pubfront: not found")

const listingNextKey = "listing_next"

// Store wraps a SQLite database holding the last good snapshot of content
// fetched from the content API. It is read when the API is unavailable.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets readers proceed while a snapshot is being written; writers
	// wait on busy_timeout instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
		PRAGMA mmap_size=268435456;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS listing (
    position INTEGER PRIMARY KEY,
    uid TEXT NOT NULL,
    title TEXT NOT NULL,
    subtitle TEXT NOT NULL,
    author TEXT NOT NULL,
    first_publication_date TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS posts (
    uid TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    subtitle TEXT NOT NULL DEFAULT '',
    author TEXT NOT NULL,
    banner_url TEXT NOT NULL,
    first_publication_date TEXT NOT NULL,
    last_publication_date TEXT NOT NULL,
    content TEXT NOT NULL,
    fetched_at TEXT NOT NULL
);
`)
	return err
}

// SaveListing replaces the stored first listing page, items and locator.
func (s *Store) SaveListing(page pager.Page[PostSummary]) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM listing`); err != nil {
		return err
	}
	for i, p := range page.Items {
		if _, err := tx.Exec(`INSERT INTO listing (position, uid, title, subtitle, author, first_publication_date) VALUES (?, ?, ?, ?, ?, ?)`,
			i, p.UID, p.Title, p.Subtitle, p.Author, formatTime(p.FirstPublicationDate)); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, listingNextKey, page.Next); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadListing returns the stored first listing page. It returns ErrNotFound
// when no listing was ever saved.
func (s *Store) LoadListing() (pager.Page[PostSummary], error) {
	var page pager.Page[PostSummary]
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, listingNextKey).Scan(&page.Next)
	if errors.Is(err, sql.ErrNoRows) {
		return page, ErrNotFound
	}
	if err != nil {
		return page, err
	}

	rows, err := s.db.Query(`SELECT uid, title, subtitle, author, first_publication_date FROM listing ORDER BY position`)
	if err != nil {
		return page, err
	}
	defer rows.Close()

	for rows.Next() {
		var p PostSummary
		var date string
		if err := rows.Scan(&p.UID, &p.Title, &p.Subtitle, &p.Author, &date); err != nil {
			return page, err
		}
		p.FirstPublicationDate = parseTime(date)
		page.Items = append(page.Items, p)
	}
	return page, rows.Err()
}

// SavePost upserts a post snapshot.
func (s *Store) SavePost(p Post) error {
	content, err := json.Marshal(p.Content)
	if err != nil {
		return fmt.Errorf("encode content of %q: %w", p.UID, err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO posts (uid, title, subtitle, author, banner_url, first_publication_date, last_publication_date, content, fetched_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UID, p.Title, p.Subtitle, p.Author, p.BannerURL,
		formatTime(p.FirstPublicationDate), formatTime(p.LastPublicationDate),
		string(content), formatTime(time.Now()))
	return err
}

// GetPost returns a post snapshot by uid.
func (s *Store) GetPost(uid string) (Post, error) {
	p := Post{UID: uid}
	var first, last, content string
	err := s.db.QueryRow(`SELECT title, subtitle, author, banner_url, first_publication_date, last_publication_date, content FROM posts WHERE uid = ?`, uid).
		Scan(&p.Title, &p.Subtitle, &p.Author, &p.BannerURL, &first, &last, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, ErrNotFound
	}
	if err != nil {
		return Post{}, err
	}
	if err := json.Unmarshal([]byte(content), &p.Content); err != nil {
		return Post{}, fmt.Errorf("decode content of %q: %w", uid, err)
	}
	p.FirstPublicationDate = parseTime(first)
	p.LastPublicationDate = parseTime(last)
	return p, nil
}

// ListPostUIDs returns the uids of every stored post, newest first.
func (s *Store) ListPostUIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT uid FROM posts ORDER BY first_publication_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uids []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		uids = append(uids, uid)
	}
	return uids, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
