package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jvheeswijck/sim-subs/internal/models"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLiteStorage implements Storage interface using SQLite
type SQLiteStorage struct {
	staging
	db  *sql.DB
	log *logrus.Entry
}

var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string, log *logrus.Entry) (*SQLiteStorage, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", dbPath, err)
	}
	// One connection: a single writer, and ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db, log: log}
	if err := storage.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	log.WithField("path", dbPath).Info("SQLite storage ready")
	return storage, nil
}

// initDB initializes the database schema
func (s *SQLiteStorage) initDB() error {
	query := `
	CREATE TABLE IF NOT EXISTS subreddits (
		sub_id TEXT PRIMARY KEY,
		sub_name TEXT NOT NULL,
		description TEXT,
		public_description TEXT,
		created DATETIME,
		sub_count INTEGER,
		audience TEXT,
		url TEXT
	);

	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		user_name TEXT NOT NULL,
		link_karma TEXT,
		comment_karma TEXT
	);

	CREATE TABLE IF NOT EXISTS posts (
		post_id TEXT PRIMARY KEY,
		user_id TEXT,
		sub_id TEXT REFERENCES subreddits(sub_id),
		title TEXT,
		created DATETIME,
		score INTEGER,
		body TEXT,
		num_comments INTEGER,
		is_self BOOLEAN,
		target_url TEXT,
		permalink TEXT
	);

	CREATE TABLE IF NOT EXISTS comments (
		comment_id TEXT PRIMARY KEY,
		user_id TEXT,
		post_id TEXT REFERENCES posts(post_id),
		created DATETIME,
		score INTEGER,
		gilds INTEGER,
		body TEXT,
		permalink TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_posts_user_id ON posts(user_id);
	CREATE INDEX IF NOT EXISTS idx_posts_sub_id ON posts(sub_id);
	CREATE INDEX IF NOT EXISTS idx_comments_user_id ON comments(user_id);
	CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
	`

	_, err := s.db.Exec(query)
	return err
}

func (s *SQLiteStorage) exists(ctx context.Context, table, column, id string) (bool, error) {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", table, column)
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return false, fmt.Errorf("checking %s %s: %w", table, id, err)
	}
	return count > 0, nil
}

// PostExists checks if a post has already been stored
func (s *SQLiteStorage) PostExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, "posts", "post_id", id)
}

// CommunityExists checks if a subreddit has already been stored
func (s *SQLiteStorage) CommunityExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, "subreddits", "sub_id", id)
}

// AuthorExists checks if an account has already been stored
func (s *SQLiteStorage) AuthorExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, "users", "user_id", id)
}

// ExistingAuthors returns the subset of ids present in users
func (s *SQLiteStorage) ExistingAuthors(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(ids) == 0 {
		return found, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := s.db.QueryContext(ctx, "SELECT user_id FROM users WHERE user_id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("querying existing users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	return found, rows.Err()
}

// Commit writes the staged records in one transaction
func (s *SQLiteStorage) Commit(ctx context.Context) error {
	recs := s.take()
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	for _, rec := range recs {
		if err := s.insert(ctx, tx, rec); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting %s %s: %w", rec.TableName(), rec.RecordID(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	s.log.WithField("rows", len(recs)).Debug("Committed")
	return nil
}

func (s *SQLiteStorage) insert(ctx context.Context, tx *sql.Tx, rec models.Record) error {
	var err error
	switch r := rec.(type) {
	case *models.Community:
		_, err = tx.ExecContext(ctx, `
		INSERT INTO subreddits (sub_id, sub_name, description, public_description, created, sub_count, audience, url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Name, r.Description, r.PublicDescription, r.Created, r.Subscribers, r.Audience, r.URL)
	case *models.Author:
		_, err = tx.ExecContext(ctx, `
		INSERT INTO users (user_id, user_name, link_karma, comment_karma)
		VALUES (?, ?, ?, ?)`,
			r.ID, r.Name, r.LinkKarma, r.CommentKarma)
	case *models.Post:
		_, err = tx.ExecContext(ctx, `
		INSERT INTO posts (post_id, user_id, sub_id, title, created, score, body, num_comments, is_self, target_url, permalink)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.AuthorID, r.CommunityID, r.Title, r.Created, r.Score, r.Body, r.NumComments, r.IsSelf, r.TargetURL, r.Permalink)
	case *models.Comment:
		_, err = tx.ExecContext(ctx, `
		INSERT INTO comments (comment_id, user_id, post_id, created, score, gilds, body, permalink)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.AuthorID, r.PostID, r.Created, r.Score, r.Gilds, r.Body, r.Permalink)
	default:
		err = fmt.Errorf("unsupported record type %T", rec)
	}
	return err
}

// Counts returns the number of rows per table
func (s *SQLiteStorage) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	targets := []struct {
		table string
		dst   *int64
	}{
		{"subreddits", &c.Communities},
		{"users", &c.Authors},
		{"posts", &c.Posts},
		{"comments", &c.Comments},
	}
	for _, t := range targets {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.table).Scan(t.dst); err != nil {
			return Counts{}, fmt.Errorf("counting %s: %w", t.table, err)
		}
	}
	return c, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
