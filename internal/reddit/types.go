package reddit

import (
	"encoding/json"
	"strings"
)

// Fullname prefixes used by the Reddit API.
const (
	KindComment   = "t1"
	KindAccount   = "t2"
	KindLink      = "t3"
	KindSubreddit = "t5"
	KindMore      = "more"
	KindListing   = "Listing"
)

// Thing is the kind/data envelope every API object is wrapped in.
type Thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Listing is a page of things.
type Listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []Thing `json:"children"`
	} `json:"data"`
}

// AuthorRef identifies the account behind a post or comment. Fullname is
// empty when the account was deleted or suspended.
type AuthorRef struct {
	Fullname string
	Name     string
}

// Subreddit is the raw community object from /r/{name}/about.
type Subreddit struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	DisplayName       string   `json:"display_name"`
	CreatedUTC        *float64 `json:"created_utc"`
	Description       string   `json:"description"`
	PublicDescription string   `json:"public_description"`
	Subscribers       int      `json:"subscribers"`
	AudienceTarget    string   `json:"audience_target"`
	URL               string   `json:"url"`
}

// Fullname returns the t5_ identifier of the subreddit.
func (s *Subreddit) Fullname() string {
	return fullname(KindSubreddit, s.Name, s.ID)
}

// Post is a raw submission from a listing.
type Post struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Author         string   `json:"author"`
	AuthorFullname string   `json:"author_fullname"`
	SubredditID    string   `json:"subreddit_id"`
	SubredditName  string   `json:"subreddit"`
	Title          string   `json:"title"`
	CreatedUTC     *float64 `json:"created_utc"`
	Score          int      `json:"score"`
	URL            string   `json:"url"`
	Permalink      string   `json:"permalink"`
	Selftext       string   `json:"selftext"`
	NumComments    int      `json:"num_comments"`

	// IsSelf is kept untyped; the field has been seen both as a JSON
	// boolean and as text.
	IsSelf interface{} `json:"is_self"`

	// Subreddit is attached by the client after the listing is fetched.
	Subreddit *Subreddit `json:"-"`
}

// Fullname returns the t3_ identifier of the post.
func (p *Post) Fullname() string {
	return fullname(KindLink, p.Name, p.ID)
}

// ShortID returns the id without its kind prefix.
func (p *Post) ShortID() string {
	if p.ID != "" {
		return p.ID
	}
	return strings.TrimPrefix(p.Name, KindLink+"_")
}

// AuthorRef returns the post's author reference.
func (p *Post) AuthorRef() AuthorRef {
	return AuthorRef{Fullname: p.AuthorFullname, Name: p.Author}
}

// Comment is a raw comment. Replies is either an empty string or a Listing.
type Comment struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Author         string          `json:"author"`
	AuthorFullname string          `json:"author_fullname"`
	ParentID       string          `json:"parent_id"`
	LinkID         string          `json:"link_id"`
	CreatedUTC     *float64        `json:"created_utc"`
	Score          int             `json:"score"`
	Gilded         int             `json:"gilded"`
	Body           string          `json:"body"`
	Permalink      string          `json:"permalink"`
	Replies        json.RawMessage `json:"replies"`
}

// Fullname returns the t1_ identifier of the comment.
func (c *Comment) Fullname() string {
	return fullname(KindComment, c.Name, c.ID)
}

// AuthorRef returns the comment's author reference.
func (c *Comment) AuthorRef() AuthorRef {
	return AuthorRef{Fullname: c.AuthorFullname, Name: c.Author}
}

// MoreComments is a collapsed "load more replies" placeholder.
type MoreComments struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ParentID string   `json:"parent_id"`
	Count    int      `json:"count"`
	Children []string `json:"children"`
}

// Karma is the subset of /user/{name}/about the collector stores.
type Karma struct {
	Name         string `json:"name"`
	LinkKarma    int    `json:"link_karma"`
	CommentKarma int    `json:"comment_karma"`
}

type moreChildrenResponse struct {
	JSON struct {
		Errors [][]interface{} `json:"errors"`
		Data   struct {
			Things []Thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

func fullname(kind, name, id string) string {
	if name != "" {
		return name
	}
	if id != "" {
		return kind + "_" + id
	}
	return ""
}
