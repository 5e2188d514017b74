package category

import (
	"sort"

	"github.com/pitabwire/reportal/model"
)

// Tree is an in-memory view of the category list with children derived by
// grouping on parent id.
type Tree struct {
	nodes    map[string]model.CategoryNode
	children map[string][]string
	order    []string
}

// NewTree indexes nodes. Children are ordered by title, then id.
func NewTree(nodes []model.CategoryNode) *Tree {
	t := &Tree{
		nodes:    make(map[string]model.CategoryNode, len(nodes)),
		children: make(map[string][]string),
	}
	sorted := append([]model.CategoryNode(nil), nodes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Title != sorted[j].Title {
			return sorted[i].Title < sorted[j].Title
		}
		return sorted[i].ID < sorted[j].ID
	})
	for _, n := range sorted {
		t.nodes[n.ID] = n
		t.order = append(t.order, n.ID)
		if n.ParentID != "" {
			t.children[n.ParentID] = append(t.children[n.ParentID], n.ID)
		}
	}
	return t
}

// Node returns the node with the given id.
func (t *Tree) Node(id string) (model.CategoryNode, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// IsLeaf reports whether id exists and no node names it as parent.
func (t *Tree) IsLeaf(id string) bool {
	_, ok := t.nodes[id]
	return ok && len(t.children[id]) == 0
}

// IsRoot reports whether id exists and has no parent, or its parent is
// missing.
func (t *Tree) IsRoot(id string) bool {
	n, ok := t.nodes[id]
	if !ok {
		return false
	}
	if n.ParentID == "" {
		return true
	}
	_, parentExists := t.nodes[n.ParentID]
	return !parentExists
}

// Children returns the direct children of id.
func (t *Tree) Children(id string) []model.CategoryNode {
	out := make([]model.CategoryNode, 0, len(t.children[id]))
	for _, c := range t.children[id] {
		out = append(out, t.nodes[c])
	}
	return out
}

// Siblings returns the other nodes sharing id's parent. Roots have no
// siblings.
func (t *Tree) Siblings(id string) []model.CategoryNode {
	n, ok := t.nodes[id]
	if !ok || t.IsRoot(id) {
		return nil
	}
	var out []model.CategoryNode
	for _, c := range t.Children(n.ParentID) {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

// Descendants returns every transitive descendant of id, breadth first. The
// node itself is not included.
func (t *Tree) Descendants(id string) []string {
	var out []string
	visited := map[string]bool{id: true}
	queue := append([]string(nil), t.children[id]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if visited[next] {
			continue
		}
		visited[next] = true
		out = append(out, next)
		queue = append(queue, t.children[next]...)
	}
	return out
}

// Roots returns every root node.
func (t *Tree) Roots() []model.CategoryNode {
	var out []model.CategoryNode
	for _, id := range t.order {
		if t.IsRoot(id) {
			out = append(out, t.nodes[id])
		}
	}
	return out
}

// Nested returns the forest rooted at Roots.
func (t *Tree) Nested() []*model.CategoryTreeNode {
	visited := make(map[string]bool)
	var build func(n model.CategoryNode) *model.CategoryTreeNode
	build = func(n model.CategoryNode) *model.CategoryTreeNode {
		visited[n.ID] = true
		tn := &model.CategoryTreeNode{CategoryNode: n, Leaf: t.IsLeaf(n.ID)}
		for _, c := range t.Children(n.ID) {
			if !visited[c.ID] {
				tn.Children = append(tn.Children, build(c))
			}
		}
		return tn
	}

	out := make([]*model.CategoryTreeNode, 0)
	for _, r := range t.Roots() {
		out = append(out, build(r))
	}
	return out
}
