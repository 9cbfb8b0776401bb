// Package reddit is a small client for the Reddit JSON API covering the
// listing, comment tree and account endpoints the collector reads.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// moreChildrenBatch is the largest id list /api/morechildren accepts.
const moreChildrenBatch = 100

// Options configures a Client. ClientID and ClientSecret are optional; when
// empty, requests are sent without an OAuth token.
type Options struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	UserAgent    string
	Timeout      time.Duration
}

// Client fetches raw items from Reddit.
type Client struct {
	collector *colly.Collector
	baseURL   string
	log       *logrus.Entry
}

// NewClient creates a new Reddit client instance
func NewClient(ctx context.Context, opts Options, log *logrus.Entry) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid reddit base url %q", opts.BaseURL)
	}

	c := colly.NewCollector(
		colly.AllowedDomains(base.Hostname()),
		colly.UserAgent(opts.UserAgent),
		colly.AllowURLRevisit(),
	)

	if opts.ClientID != "" {
		cc := &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		c.SetClient(cc.Client(ctx))
	}
	if opts.Timeout > 0 {
		c.SetRequestTimeout(opts.Timeout)
	}

	return &Client{
		collector: c,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		log:       log,
	}, nil
}

// getJSON issues a GET for path and decodes the body into v.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	col := c.collector.Clone()
	var decodeErr, respErr error

	col.OnRequest(func(r *colly.Request) {
		c.log.WithField("url", r.URL.String()).Debug("Visiting")
	})
	col.OnResponse(func(r *colly.Response) {
		if err := json.Unmarshal(r.Body, v); err != nil {
			decodeErr = fmt.Errorf("decoding %s: %w", path, err)
		}
	})
	col.OnError(func(r *colly.Response, err error) {
		respErr = fmt.Errorf("GET %s: status %d: %w", path, r.StatusCode, err)
	})

	if err := col.Visit(target); err != nil {
		if respErr != nil {
			return respErr
		}
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if respErr != nil {
		return respErr
	}
	return decodeErr
}

// Subreddit fetches the community object for name.
func (c *Client) Subreddit(ctx context.Context, name string) (*Subreddit, error) {
	var t Thing
	if err := c.getJSON(ctx, "/r/"+url.PathEscape(name)+"/about.json", url.Values{"raw_json": {"1"}}, &t); err != nil {
		return nil, err
	}
	if t.Kind != KindSubreddit {
		return nil, fmt.Errorf("r/%s: unexpected kind %q", name, t.Kind)
	}
	var s Subreddit
	if err := json.Unmarshal(t.Data, &s); err != nil {
		return nil, fmt.Errorf("decoding r/%s: %w", name, err)
	}
	return &s, nil
}

// Hot returns up to limit posts from the community's hot listing in the
// order Reddit ranks them. Every post carries the community object.
func (c *Client) Hot(ctx context.Context, community string, limit int) ([]*Post, error) {
	sub, err := c.Subreddit(ctx, community)
	if err != nil {
		return nil, err
	}

	var l Listing
	query := url.Values{"limit": {strconv.Itoa(limit)}, "raw_json": {"1"}}
	if err := c.getJSON(ctx, "/r/"+url.PathEscape(community)+"/hot.json", query, &l); err != nil {
		return nil, err
	}

	posts := make([]*Post, 0, len(l.Data.Children))
	for _, t := range l.Data.Children {
		if t.Kind != KindLink {
			continue
		}
		var p Post
		if err := json.Unmarshal(t.Data, &p); err != nil {
			return nil, fmt.Errorf("decoding post in r/%s: %w", community, err)
		}
		p.Subreddit = sub
		posts = append(posts, &p)
		if limit > 0 && len(posts) == limit {
			break
		}
	}

	c.log.WithFields(logrus.Fields{"community": community, "posts": len(posts)}).Debug("Fetched hot listing")
	return posts, nil
}

// Comments fetches the post's comment tree, expands up to moreLimit
// placeholders hiding at least threshold replies and returns the tree
// flattened breadth-first.
func (c *Client) Comments(ctx context.Context, post *Post, moreLimit, threshold int) ([]*Comment, error) {
	var listings []Listing
	if err := c.getJSON(ctx, "/comments/"+url.PathEscape(post.ShortID())+".json", url.Values{"raw_json": {"1"}}, &listings); err != nil {
		return nil, err
	}
	if len(listings) < 2 {
		return nil, fmt.Errorf("comments of %s: expected 2 listings, got %d", post.Fullname(), len(listings))
	}

	forest, err := NewForest(post.Fullname(), listings[1].Data.Children)
	if err != nil {
		return nil, err
	}
	if err := forest.ReplaceMore(ctx, c.moreChildren, moreLimit, threshold); err != nil {
		return nil, err
	}
	return forest.List(), nil
}

// moreChildren resolves placeholder children through /api/morechildren.
func (c *Client) moreChildren(ctx context.Context, linkID string, children []string) ([]Thing, error) {
	var things []Thing
	for start := 0; start < len(children); start += moreChildrenBatch {
		end := start + moreChildrenBatch
		if end > len(children) {
			end = len(children)
		}
		query := url.Values{
			"api_type": {"json"},
			"link_id":  {linkID},
			"children": {strings.Join(children[start:end], ",")},
			"raw_json": {"1"},
		}
		var resp moreChildrenResponse
		if err := c.getJSON(ctx, "/api/morechildren.json", query, &resp); err != nil {
			return nil, err
		}
		if len(resp.JSON.Errors) > 0 {
			return nil, fmt.Errorf("morechildren for %s: %v", linkID, resp.JSON.Errors)
		}
		things = append(things, resp.JSON.Data.Things...)
	}
	return things, nil
}

// ErrNoAccount is returned by Karma when the account no longer exists.
var ErrNoAccount = errors.New("reddit: account not found")

// Karma fetches the link and comment karma of the named account.
func (c *Client) Karma(ctx context.Context, name string) (*Karma, error) {
	var t Thing
	if err := c.getJSON(ctx, "/user/"+url.PathEscape(name)+"/about.json", url.Values{"raw_json": {"1"}}, &t); err != nil {
		return nil, err
	}
	if t.Kind != KindAccount {
		return nil, fmt.Errorf("u/%s: %w", name, ErrNoAccount)
	}
	var k Karma
	if err := json.Unmarshal(t.Data, &k); err != nil {
		return nil, fmt.Errorf("decoding u/%s: %w", name, err)
	}
	return &k, nil
}
