package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commentThing(id, parent string, replies ...Thing) Thing {
	c := map[string]interface{}{
		"id":          id,
		"name":        "t1_" + id,
		"parent_id":   parent,
		"author":      "user_" + id,
		"created_utc": 1600000000,
		"replies":     "",
	}
	if len(replies) > 0 {
		c["replies"] = map[string]interface{}{
			"kind": "Listing",
			"data": map[string]interface{}{"children": replies},
		}
	}
	data, _ := json.Marshal(c)
	return Thing{Kind: KindComment, Data: data}
}

func moreThing(id, parent string, count int, children ...string) Thing {
	data, _ := json.Marshal(map[string]interface{}{
		"id":        id,
		"name":      "t1_" + id,
		"parent_id": parent,
		"count":     count,
		"children":  children,
	})
	return Thing{Kind: KindMore, Data: data}
}

func ids(comments []*Comment) []string {
	out := make([]string, len(comments))
	for i, c := range comments {
		out[i] = c.ID
	}
	return out
}

func TestForest_ListIsBreadthFirst(t *testing.T) {
	f, err := NewForest("t3_p", []Thing{
		commentThing("a", "t3_p",
			commentThing("a1", "t1_a", commentThing("a1x", "t1_a1")),
			commentThing("a2", "t1_a"),
		),
		commentThing("b", "t3_p", commentThing("b1", "t1_b")),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "a1", "a2", "b1", "a1x"}, ids(f.List()))
}

func TestForest_ReplaceMoreZeroLimitDropsPlaceholders(t *testing.T) {
	f, err := NewForest("t3_p", []Thing{
		commentThing("a", "t3_p", moreThing("m1", "t1_a", 4, "x", "y")),
		moreThing("m0", "t3_p", 10, "z"),
	})
	require.NoError(t, err)

	fetch := func(context.Context, string, []string) ([]Thing, error) {
		t.Fatal("fetch must not be called with limit 0")
		return nil, nil
	}
	require.NoError(t, f.ReplaceMore(context.Background(), fetch, 0, 0))
	assert.Equal(t, []string{"a"}, ids(f.List()))
	assert.Empty(t, f.placeholders())
}

func TestForest_ReplaceMoreLargestFirst(t *testing.T) {
	f, err := NewForest("t3_p", []Thing{
		commentThing("a", "t3_p", moreThing("small", "t1_a", 2, "s1")),
		moreThing("big", "t3_p", 10, "b1", "b2"),
	})
	require.NoError(t, err)

	var calls [][]string
	fetch := func(_ context.Context, linkID string, children []string) ([]Thing, error) {
		assert.Equal(t, "t3_p", linkID)
		calls = append(calls, children)
		var out []Thing
		for _, id := range children {
			parent := "t3_p"
			if id == "s1" {
				parent = "t1_a"
			}
			out = append(out, commentThing(id, parent))
		}
		return out, nil
	}

	require.NoError(t, f.ReplaceMore(context.Background(), fetch, 1, 0))
	assert.Equal(t, [][]string{{"b1", "b2"}}, calls)
	assert.Equal(t, []string{"a", "b1", "b2"}, ids(f.List()))
}

func TestForest_ReplaceMoreThresholdAndNested(t *testing.T) {
	f, err := NewForest("t3_p", []Thing{
		commentThing("a", "t3_p", moreThing("m1", "t1_a", 5, "a1", "a2")),
		moreThing("tiny", "t3_p", 1, "t1"),
	})
	require.NoError(t, err)

	fetch := func(_ context.Context, _ string, children []string) ([]Thing, error) {
		if children[0] == "a1" {
			// the response can carry further placeholders
			return []Thing{
				commentThing("a1", "t1_a"),
				commentThing("a2", "t1_a"),
				moreThing("m2", "t1_a1", 3, "a1x"),
			}, nil
		}
		return []Thing{commentThing("a1x", "t1_a1")}, nil
	}

	require.NoError(t, f.ReplaceMore(context.Background(), fetch, -1, 2))
	assert.Equal(t, []string{"a", "a1", "a2", "a1x"}, ids(f.List()))
}

func TestForest_ReplaceMoreFetchError(t *testing.T) {
	f, err := NewForest("t3_p", []Thing{moreThing("m", "t3_p", 3, "x")})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = f.ReplaceMore(context.Background(), func(context.Context, string, []string) ([]Thing, error) {
		return nil, boom
	}, 1, 0)
	assert.ErrorIs(t, err, boom)
}

func TestForest_ContinueThreadPlaceholderIsDropped(t *testing.T) {
	f, err := NewForest("t3_p", []Thing{
		commentThing("a", "t3_p", moreThing("_", "t1_a", 0)),
	})
	require.NoError(t, err)

	calls := 0
	err = f.ReplaceMore(context.Background(), func(context.Context, string, []string) ([]Thing, error) {
		calls++
		return nil, fmt.Errorf("unexpected")
	}, -1, 0)
	require.NoError(t, err)
	assert.Zero(t, calls)
	assert.Equal(t, []string{"a"}, ids(f.List()))
}
