package reddit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// MoreFetcher resolves the children of a more-comments placeholder into a
// flat list of things carrying parent_id references.
type MoreFetcher func(ctx context.Context, linkID string, children []string) ([]Thing, error)

type node struct {
	comment  *Comment
	more     *MoreComments
	parent   *node
	children []*node
}

// Forest is the comment tree of one post.
type Forest struct {
	linkID string
	roots  []*node
	index  map[string]*node
	seq    map[*node]int
	next   int
}

// NewForest builds a forest from the top-level things of a comment listing.
func NewForest(linkID string, things []Thing) (*Forest, error) {
	f := &Forest{
		linkID: linkID,
		index:  make(map[string]*node),
		seq:    make(map[*node]int),
	}
	for _, t := range things {
		if err := f.add(nil, t); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// add decodes t and attaches it under parent, recursing into replies.
func (f *Forest) add(parent *node, t Thing) error {
	n := &node{parent: parent}
	switch t.Kind {
	case KindComment:
		var c Comment
		if err := json.Unmarshal(t.Data, &c); err != nil {
			return fmt.Errorf("decoding comment: %w", err)
		}
		n.comment = &c
	case KindMore:
		var m MoreComments
		if err := json.Unmarshal(t.Data, &m); err != nil {
			return fmt.Errorf("decoding more placeholder: %w", err)
		}
		n.more = &m
	default:
		return nil
	}

	f.seq[n] = f.next
	f.next++
	if parent == nil {
		f.roots = append(f.roots, n)
	} else {
		parent.children = append(parent.children, n)
	}
	if n.comment == nil {
		return nil
	}
	f.index[n.comment.Fullname()] = n

	replies := bytes.TrimSpace(n.comment.Replies)
	if len(replies) == 0 || replies[0] != '{' {
		return nil
	}
	var l Listing
	if err := json.Unmarshal(replies, &l); err != nil {
		return fmt.Errorf("decoding replies of %s: %w", n.comment.Fullname(), err)
	}
	for _, child := range l.Data.Children {
		if err := f.add(n, child); err != nil {
			return err
		}
	}
	return nil
}

// attach places a thing returned by the morechildren endpoint under the
// node named by its parent_id, or at the top level when the parent is the
// post itself or unknown.
func (f *Forest) attach(t Thing) error {
	var ref struct {
		ParentID string `json:"parent_id"`
	}
	if err := json.Unmarshal(t.Data, &ref); err != nil {
		return fmt.Errorf("decoding parent reference: %w", err)
	}
	return f.add(f.index[ref.ParentID], t)
}

func (f *Forest) remove(n *node) {
	siblings := &f.roots
	if n.parent != nil {
		siblings = &n.parent.children
	}
	for i, s := range *siblings {
		if s == n {
			*siblings = append((*siblings)[:i], (*siblings)[i+1:]...)
			return
		}
	}
}

// placeholders returns every more node still in the forest, in tree order.
func (f *Forest) placeholders() []*node {
	var out []*node
	f.walk(func(n *node) {
		if n.more != nil {
			out = append(out, n)
		}
	})
	return out
}

// ReplaceMore expands up to limit placeholders, largest hidden-reply count
// first, skipping any that hide fewer than threshold replies. A negative
// limit expands everything. Placeholders left over afterwards are dropped.
func (f *Forest) ReplaceMore(ctx context.Context, fetch MoreFetcher, limit, threshold int) error {
	queue := f.placeholders()
	expanded := 0
	for len(queue) > 0 {
		if limit >= 0 && expanded >= limit {
			break
		}
		sort.SliceStable(queue, func(i, j int) bool {
			if queue[i].more.Count != queue[j].more.Count {
				return queue[i].more.Count > queue[j].more.Count
			}
			return f.seq[queue[i]] < f.seq[queue[j]]
		})
		p := queue[0]
		queue = queue[1:]
		f.remove(p)
		if len(p.more.Children) == 0 || p.more.Count < threshold {
			continue
		}

		things, err := fetch(ctx, f.linkID, p.more.Children)
		if err != nil {
			return fmt.Errorf("expanding more comments under %s: %w", p.more.ParentID, err)
		}
		expanded++
		before := f.next
		for _, t := range things {
			if err := f.attach(t); err != nil {
				return err
			}
		}
		for n, s := range f.seq {
			if s >= before && n.more != nil {
				queue = append(queue, n)
			}
		}
	}

	for _, p := range f.placeholders() {
		f.remove(p)
	}
	return nil
}

// List flattens the forest breadth-first, top-level comments first.
func (f *Forest) List() []*Comment {
	var out []*Comment
	f.walk(func(n *node) {
		if n.comment != nil {
			out = append(out, n.comment)
		}
	})
	return out
}

func (f *Forest) walk(fn func(n *node)) {
	queue := append([]*node(nil), f.roots...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		fn(n)
		queue = append(queue, n.children...)
	}
}
