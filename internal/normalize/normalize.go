// Package normalize maps raw Reddit items onto storage records.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jvheeswijck/sim-subs/internal/models"
	"github.com/jvheeswijck/sim-subs/internal/reddit"
	"github.com/spf13/cast"
)

// ErrMalformed marks a raw item missing a field the schema requires.
var ErrMalformed = errors.New("malformed upstream record")

// deletedAuthor is the name Reddit reports for removed accounts.
const deletedAuthor = "[deleted]"

// AuthorResult is the outcome of resolving an author reference. When
// Resolved is false, ID is models.UnknownAuthorID and Record is nil.
type AuthorResult struct {
	ID       string
	Record   *models.Author
	Resolved bool
}

// ResolveAuthor returns the author id for ref without building a record.
func ResolveAuthor(ref reddit.AuthorRef) AuthorResult {
	if ref.Fullname == "" || ref.Name == "" || ref.Name == deletedAuthor {
		return AuthorResult{ID: models.UnknownAuthorID}
	}
	return AuthorResult{ID: ref.Fullname, Resolved: true}
}

// Author resolves ref into a users row. karma is nil unless karma capture
// is enabled.
func Author(ref reddit.AuthorRef, karma *reddit.Karma) AuthorResult {
	res := ResolveAuthor(ref)
	if !res.Resolved {
		return res
	}
	res.Record = &models.Author{ID: res.ID, Name: ref.Name}
	if karma != nil {
		link := cast.ToString(karma.LinkKarma)
		comment := cast.ToString(karma.CommentKarma)
		res.Record.LinkKarma = &link
		res.Record.CommentKarma = &comment
	}
	return res
}

// Community maps a raw subreddit onto a subreddits row.
func Community(raw *reddit.Subreddit) (*models.Community, error) {
	if raw == nil {
		return nil, fmt.Errorf("community: missing object: %w", ErrMalformed)
	}
	id := raw.Fullname()
	if id == "" {
		return nil, fmt.Errorf("community %q: missing id: %w", raw.DisplayName, ErrMalformed)
	}
	created, err := timestamp(raw.CreatedUTC)
	if err != nil {
		return nil, fmt.Errorf("community %s: %w", id, err)
	}
	return &models.Community{
		ID:                id,
		Name:              raw.DisplayName,
		Description:       raw.Description,
		PublicDescription: raw.PublicDescription,
		Created:           created,
		Subscribers:       raw.Subscribers,
		Audience:          raw.AudienceTarget,
		URL:               raw.URL,
	}, nil
}

// Post maps a raw submission onto a posts row.
func Post(raw *reddit.Post) (*models.Post, error) {
	id := raw.Fullname()
	if id == "" {
		return nil, fmt.Errorf("post: missing id: %w", ErrMalformed)
	}
	created, err := timestamp(raw.CreatedUTC)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", id, err)
	}
	communityID := raw.SubredditID
	if raw.Subreddit != nil && raw.Subreddit.Fullname() != "" {
		communityID = raw.Subreddit.Fullname()
	}
	if communityID == "" {
		return nil, fmt.Errorf("post %s: missing subreddit id: %w", id, ErrMalformed)
	}

	return &models.Post{
		ID:          id,
		AuthorID:    ResolveAuthor(raw.AuthorRef()).ID,
		CommunityID: communityID,
		Title:       raw.Title,
		Created:     created,
		Score:       raw.Score,
		Body:        raw.Selftext,
		NumComments: raw.NumComments,
		IsSelf:      IsSelf(raw.IsSelf),
		TargetURL:   raw.URL,
		Permalink:   raw.Permalink,
	}, nil
}

// IsSelf reports the self-post flag. Only the literal text "False" maps to
// false; booleans, absent values and any other text map to true.
func IsSelf(v interface{}) bool {
	return cast.ToString(v) != "False"
}

// Comment maps a raw comment onto a comments row belonging to postID.
func Comment(raw *reddit.Comment, postID string) (*models.Comment, error) {
	id := raw.Fullname()
	if id == "" {
		return nil, fmt.Errorf("comment: missing id: %w", ErrMalformed)
	}
	created, err := timestamp(raw.CreatedUTC)
	if err != nil {
		return nil, fmt.Errorf("comment %s: %w", id, err)
	}
	return &models.Comment{
		ID:        id,
		AuthorID:  ResolveAuthor(raw.AuthorRef()).ID,
		PostID:    postID,
		Created:   created,
		Score:     raw.Score,
		Gilds:     raw.Gilded,
		Body:      raw.Body,
		Permalink: raw.Permalink,
	}, nil
}

func timestamp(epoch *float64) (time.Time, error) {
	if epoch == nil {
		return time.Time{}, fmt.Errorf("missing created_utc: %w", ErrMalformed)
	}
	sec, frac := math.Modf(*epoch)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}
