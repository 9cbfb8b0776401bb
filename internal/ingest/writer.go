// Package ingest stores fetched posts, their comments and the communities
// and authors they reference, inserting each row at most once.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jvheeswijck/sim-subs/internal/config"
	"github.com/jvheeswijck/sim-subs/internal/metrics"
	"github.com/jvheeswijck/sim-subs/internal/models"
	"github.com/jvheeswijck/sim-subs/internal/normalize"
	"github.com/jvheeswijck/sim-subs/internal/reddit"
	"github.com/jvheeswijck/sim-subs/internal/storage"
	"github.com/sirupsen/logrus"
)

// Source supplies raw items from the content API.
type Source interface {
	// Hot returns up to limit posts of a community in ranking order.
	Hot(ctx context.Context, community string, limit int) ([]*reddit.Post, error)

	// Comments returns the post's comment tree flattened, after expanding
	// up to moreLimit placeholders hiding at least threshold replies.
	Comments(ctx context.Context, post *reddit.Post, moreLimit, threshold int) ([]*reddit.Comment, error)

	// Karma looks up an account's karma. Only called when karma capture is on.
	Karma(ctx context.Context, name string) (*reddit.Karma, error)
}

var _ Source = (*reddit.Client)(nil)

// Options are the ingestion tunables.
type Options struct {
	PostLimit             int
	CommentLimit          int
	MoreCommentsLimit     int
	MoreCommentsThreshold int
	CaptureKarma          bool
	Verbose               bool
}

// OptionsFromConfig copies the tunables out of the ingest config section.
func OptionsFromConfig(c config.IngestConfig) Options {
	return Options{
		PostLimit:             c.PostLimit,
		CommentLimit:          c.CommentLimit,
		MoreCommentsLimit:     c.MoreCommentsLimit,
		MoreCommentsThreshold: c.MoreCommentsThreshold,
		CaptureKarma:          c.CaptureKarma,
		Verbose:               c.Verbose,
	}
}

// Stats reports one community batch.
type Stats struct {
	Community string        `json:"community"`
	Fetched   int           `json:"fetched"`
	Inserted  int           `json:"inserted"`
	Skipped   int           `json:"skipped"`
	Rejected  int           `json:"rejected"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Writer runs the existence-check, insert and commit protocol. It assumes
// it is the only writer on the store.
type Writer struct {
	store  storage.Storage
	source Source
	opts   Options
	log    *logrus.Entry
}

// NewWriter creates a Writer.
func NewWriter(store storage.Storage, source Source, opts Options, log *logrus.Entry) *Writer {
	return &Writer{store: store, source: source, opts: opts, log: log}
}

// IngestPost stores raw and its comments unless the post is already
// stored, in which case nothing else is read or written. It returns the
// number of posts inserted, 0 or 1.
func (w *Writer) IngestPost(ctx context.Context, raw *reddit.Post) (int, error) {
	postID := raw.Fullname()
	if postID == "" {
		return 0, fmt.Errorf("post: missing id: %w", normalize.ErrMalformed)
	}
	exists, err := w.store.PostExists(ctx, postID)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, nil
	}

	post, err := normalize.Post(raw)
	if err != nil {
		return 0, err
	}
	community, err := normalize.Community(raw.Subreddit)
	if err != nil {
		return 0, err
	}

	// Dependencies are committed on their own so a failure later in this
	// post never leaves a row pointing at a missing parent.
	if err := w.ensureCommunity(ctx, community); err != nil {
		return 0, err
	}
	if err := w.ensureAuthor(ctx, raw.AuthorRef()); err != nil {
		return 0, err
	}

	w.store.Add(post)
	if err := w.store.Commit(ctx); err != nil {
		return 0, err
	}
	metrics.RowsInserted.WithLabelValues(post.TableName()).Inc()

	if err := w.storeComments(ctx, raw, post.ID); err != nil {
		return 1, err
	}
	return 1, nil
}

func (w *Writer) ensureCommunity(ctx context.Context, community *models.Community) error {
	exists, err := w.store.CommunityExists(ctx, community.ID)
	if err != nil || exists {
		return err
	}
	w.store.Add(community)
	if err := w.store.Commit(ctx); err != nil {
		return err
	}
	metrics.RowsInserted.WithLabelValues(community.TableName()).Inc()
	w.log.WithFields(logrus.Fields{"sub_id": community.ID, "name": community.Name}).Debug("Stored new subreddit")
	return nil
}

func (w *Writer) ensureAuthor(ctx context.Context, ref reddit.AuthorRef) error {
	res := normalize.ResolveAuthor(ref)
	if !res.Resolved {
		return nil
	}
	exists, err := w.store.AuthorExists(ctx, res.ID)
	if err != nil || exists {
		return err
	}
	author := w.author(ctx, ref).Record
	w.store.Add(author)
	if err := w.store.Commit(ctx); err != nil {
		return err
	}
	metrics.RowsInserted.WithLabelValues(author.TableName()).Inc()
	return nil
}

// author builds the users row for a resolved reference, looking up karma
// first when capture is enabled. A failed lookup leaves karma NULL.
func (w *Writer) author(ctx context.Context, ref reddit.AuthorRef) normalize.AuthorResult {
	var karma *reddit.Karma
	if w.opts.CaptureKarma {
		k, err := w.source.Karma(ctx, ref.Name)
		if err != nil {
			w.log.WithError(err).WithField("user", ref.Name).Warn("Karma lookup failed")
		} else {
			karma = k
		}
	}
	return normalize.Author(ref, karma)
}

// storeComments fetches the post's comments, stores the authors not yet
// known in one commit and then the comments in another.
func (w *Writer) storeComments(ctx context.Context, raw *reddit.Post, postID string) error {
	comments, err := w.source.Comments(ctx, raw, w.opts.MoreCommentsLimit, w.opts.MoreCommentsThreshold)
	if err != nil {
		return fmt.Errorf("fetching comments of %s: %w", postID, err)
	}
	if len(comments) > w.opts.CommentLimit {
		comments = comments[:w.opts.CommentLimit]
	}

	// Distinct resolved authors in first-seen order.
	var order []string
	refs := make(map[string]reddit.AuthorRef)
	for _, c := range comments {
		res := normalize.ResolveAuthor(c.AuthorRef())
		if !res.Resolved {
			continue
		}
		if _, seen := refs[res.ID]; seen {
			continue
		}
		refs[res.ID] = c.AuthorRef()
		order = append(order, res.ID)
	}

	existing, err := w.store.ExistingAuthors(ctx, order)
	if err != nil {
		return err
	}
	added := 0
	for _, id := range order {
		if existing[id] {
			continue
		}
		w.store.Add(w.author(ctx, refs[id]).Record)
		added++
	}
	if err := w.store.Commit(ctx); err != nil {
		return err
	}
	metrics.RowsInserted.WithLabelValues("users").Add(float64(added))

	stored := make(map[string]bool, len(comments))
	for _, c := range comments {
		rec, err := normalize.Comment(c, postID)
		if err != nil {
			metrics.RecordsRejected.WithLabelValues("comment").Inc()
			w.log.WithError(err).WithField("post", postID).Warn("Rejected malformed comment")
			continue
		}
		if stored[rec.ID] {
			continue
		}
		stored[rec.ID] = true
		w.store.Add(rec)
	}
	if err := w.store.Commit(ctx); err != nil {
		return err
	}
	metrics.RowsInserted.WithLabelValues("comments").Add(float64(len(stored)))

	w.log.WithFields(logrus.Fields{
		"post":     postID,
		"comments": len(stored),
		"users":    added,
	}).Debug("Stored comments")
	return nil
}

// IngestBatch ingests posts in the order given. Malformed posts are
// skipped; any other error aborts the batch.
func (w *Writer) IngestBatch(ctx context.Context, community string, posts []*reddit.Post) (Stats, error) {
	stats := Stats{Community: community, Fetched: len(posts)}
	start := time.Now()

	for i, p := range posts {
		if err := ctx.Err(); err != nil {
			stats.Elapsed = time.Since(start)
			return stats, err
		}

		n, err := w.IngestPost(ctx, p)
		stats.Inserted += n
		entry := w.log.WithFields(logrus.Fields{
			"post":      p.Fullname(),
			"step":      fmt.Sprintf("%d/%d", i+1, len(posts)),
			"elapsed":   time.Since(start).Round(time.Millisecond),
			"completed": stats.Inserted,
		})

		switch {
		case errors.Is(err, normalize.ErrMalformed):
			stats.Rejected++
			metrics.RecordsRejected.WithLabelValues("post").Inc()
			entry.WithError(err).Warn("Rejected malformed post")
		case err != nil:
			stats.Elapsed = time.Since(start)
			return stats, fmt.Errorf("ingesting %s: %w", p.Fullname(), err)
		case n == 0:
			stats.Skipped++
			metrics.PostsSkipped.WithLabelValues(community).Inc()
			w.progress(entry, "Post already exists")
		default:
			w.progress(entry, "Stored post")
		}
	}

	stats.Elapsed = time.Since(start)
	metrics.BatchDuration.WithLabelValues(community).Observe(stats.Elapsed.Seconds())
	return stats, nil
}

// IngestCommunity fetches the community's hot listing and ingests it.
func (w *Writer) IngestCommunity(ctx context.Context, name string) (Stats, error) {
	posts, err := w.source.Hot(ctx, name, w.opts.PostLimit)
	if err != nil {
		return Stats{Community: name}, fmt.Errorf("fetching r/%s: %w", name, err)
	}

	stats, err := w.IngestBatch(ctx, name, posts)
	if err != nil {
		return stats, err
	}
	w.log.WithFields(logrus.Fields{
		"subreddit": name,
		"inserted":  stats.Inserted,
		"skipped":   stats.Skipped,
		"seconds":   round2(stats.Elapsed.Seconds()),
	}).Info("Subreddit completed")
	return stats, nil
}

// Run ingests every named community in order and stops at the first error.
func (w *Writer) Run(ctx context.Context, names []string) ([]Stats, error) {
	start := time.Now()
	w.log.WithField("subreddits", len(names)).Info("Collection started")

	all := make([]Stats, 0, len(names))
	for _, name := range names {
		w.log.WithField("subreddit", name).Info("Current subreddit")
		stats, err := w.IngestCommunity(ctx, name)
		all = append(all, stats)
		if err != nil {
			return all, err
		}
	}

	w.log.WithField("minutes", round2(time.Since(start).Minutes())).Info("Collection finished")
	return all, nil
}

func (w *Writer) progress(entry *logrus.Entry, msg string) {
	if w.opts.Verbose {
		entry.Info(msg)
		return
	}
	entry.Debug(msg)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
