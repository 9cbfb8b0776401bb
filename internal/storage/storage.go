// Package storage persists collector records and answers existence checks
// by primary key.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jvheeswijck/sim-subs/internal/config"
	"github.com/jvheeswijck/sim-subs/internal/models"
	"github.com/sirupsen/logrus"
)

// Storage defines the interface for record storage. Add only stages a row;
// nothing reaches the database until Commit, which writes every staged row
// in one transaction in the order it was added.
type Storage interface {
	// PostExists checks if a post has already been stored
	PostExists(ctx context.Context, id string) (bool, error)

	// CommunityExists checks if a subreddit has already been stored
	CommunityExists(ctx context.Context, id string) (bool, error)

	// AuthorExists checks if an account has already been stored
	AuthorExists(ctx context.Context, id string) (bool, error)

	// ExistingAuthors returns which of ids are stored, in a single query
	ExistingAuthors(ctx context.Context, ids []string) (map[string]bool, error)

	// Add stages a record for the next commit
	Add(rec models.Record)

	// Commit writes all staged records
	Commit(ctx context.Context) error

	// Counts returns the number of rows per table
	Counts(ctx context.Context) (Counts, error)

	// Close closes the storage connection
	Close() error
}

// Counts holds row totals per table.
type Counts struct {
	Communities int64 `json:"subreddits"`
	Authors     int64 `json:"users"`
	Posts       int64 `json:"posts"`
	Comments    int64 `json:"comments"`
}

// Storage types accepted by New.
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// New opens the backend selected by cfg.Type.
func New(cfg config.StorageConfig, log *logrus.Entry) (Storage, error) {
	switch strings.ToLower(cfg.Type) {
	case TypeSQLite:
		return NewSQLiteStorage(cfg.Path, log)
	case TypePostgres:
		return NewPostgresStorage(cfg.DSN(), log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// staging is the unit of work shared by the backends.
type staging struct {
	pending []models.Record
}

func (s *staging) Add(rec models.Record) {
	s.pending = append(s.pending, rec)
}

// take returns the staged records and clears the stage, so a failed commit
// never leaks rows into the next one.
func (s *staging) take() []models.Record {
	recs := s.pending
	s.pending = nil
	return recs
}
