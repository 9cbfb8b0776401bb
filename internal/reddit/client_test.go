package reddit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listing(children ...Thing) map[string]interface{} {
	return map[string]interface{}{
		"kind": KindListing,
		"data": map[string]interface{}{"children": children},
	}
}

func postThing(id string) Thing {
	data, _ := json.Marshal(map[string]interface{}{
		"id":              id,
		"name":            "t3_" + id,
		"author":          "alice",
		"author_fullname": "t2_alice",
		"subreddit_id":    "t5_golang",
		"title":           "post " + id,
		"created_utc":     1600000000.0,
		"is_self":         "False",
	})
	return Thing{Kind: KindLink, Data: data}
}

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(v))
	}

	mux.HandleFunc("/r/golang/about.json", func(w http.ResponseWriter, r *http.Request) {
		write(w, map[string]interface{}{
			"kind": KindSubreddit,
			"data": map[string]interface{}{
				"name":         "t5_golang",
				"display_name": "golang",
				"subscribers":  1000,
				"created_utc":  1200000000.0,
			},
		})
	})
	mux.HandleFunc("/r/golang/hot.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		write(w, listing(postThing("p1"), postThing("p2"), postThing("p3")))
	})
	mux.HandleFunc("/comments/p1.json", func(w http.ResponseWriter, r *http.Request) {
		write(w, []interface{}{
			listing(postThing("p1")),
			listing(
				commentThing("c1", "t3_p1", commentThing("c2", "t1_c1")),
				moreThing("m", "t3_p1", 4, "c3"),
			),
		})
	})
	mux.HandleFunc("/api/morechildren.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "t3_p1", r.URL.Query().Get("link_id"))
		assert.Equal(t, "c3", r.URL.Query().Get("children"))
		write(w, map[string]interface{}{
			"json": map[string]interface{}{
				"errors": []interface{}{},
				"data":   map[string]interface{}{"things": []Thing{commentThing("c3", "t3_p1")}},
			},
		})
	})
	mux.HandleFunc("/user/alice/about.json", func(w http.ResponseWriter, r *http.Request) {
		write(w, map[string]interface{}{
			"kind": KindAccount,
			"data": map[string]interface{}{"name": "alice", "link_karma": 12, "comment_karma": 34},
		})
	})
	mux.HandleFunc("/user/ghost/about.json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message": "Not Found", "error": 404}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	c, err := NewClient(context.Background(), Options{BaseURL: baseURL, UserAgent: "test"}, logrus.NewEntry(log))
	require.NoError(t, err)
	return c
}

func TestClient_Hot(t *testing.T) {
	srv := newTestAPI(t)
	c := newTestClient(t, srv.URL)

	posts, err := c.Hot(context.Background(), "golang", 2)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "t3_p1", posts[0].Fullname())
	assert.Equal(t, "t3_p2", posts[1].Fullname())
	require.NotNil(t, posts[0].Subreddit)
	assert.Equal(t, "t5_golang", posts[0].Subreddit.Fullname())
	assert.Equal(t, "False", posts[0].IsSelf)
}

func TestClient_Comments(t *testing.T) {
	srv := newTestAPI(t)
	c := newTestClient(t, srv.URL)
	post := &Post{ID: "p1", Name: "t3_p1"}

	t.Run("placeholders dropped", func(t *testing.T) {
		comments, err := c.Comments(context.Background(), post, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "c2"}, ids(comments))
	})

	t.Run("placeholders expanded", func(t *testing.T) {
		comments, err := c.Comments(context.Background(), post, 5, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "c3", "c2"}, ids(comments))
	})
}

func TestClient_Karma(t *testing.T) {
	srv := newTestAPI(t)
	c := newTestClient(t, srv.URL)

	k, err := c.Karma(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 12, k.LinkKarma)
	assert.Equal(t, 34, k.CommentKarma)

	_, err = c.Karma(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestClient_CanceledContext(t *testing.T) {
	srv := newTestAPI(t)
	c := newTestClient(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Hot(ctx, "golang", 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	_, err := NewClient(context.Background(), Options{BaseURL: "not a url"}, logrus.NewEntry(logrus.New()))
	assert.Error(t, err)
}
