package category

import (
	"slices"
	"testing"

	"github.com/pitabwire/reportal/model"
)

func sampleNodes() []model.CategoryNode {
	return []model.CategoryNode{
		{ID: "ops", Title: "Operations"},
		{ID: "daily", Title: "Daily", ParentID: "ops"},
		{ID: "cash", Title: "Cash", ParentID: "daily"},
		{ID: "fuel", Title: "Fuel", ParentID: "daily"},
		{ID: "hr", Title: "HR"},
		{ID: "orphan", Title: "Orphan", ParentID: "gone"},
	}
}

func TestTree_leafAndRoot(t *testing.T) {
	tree := NewTree(sampleNodes())

	tests := []struct {
		id         string
		leaf, root bool
	}{
		{"ops", false, true},
		{"daily", false, false},
		{"cash", true, false},
		{"hr", true, true},
		{"orphan", true, true},
		{"missing", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := tree.IsLeaf(tt.id); got != tt.leaf {
				t.Errorf("IsLeaf(%s) = %v, want %v", tt.id, got, tt.leaf)
			}
			if got := tree.IsRoot(tt.id); got != tt.root {
				t.Errorf("IsRoot(%s) = %v, want %v", tt.id, got, tt.root)
			}
		})
	}
}

func TestTree_Descendants(t *testing.T) {
	tree := NewTree(sampleNodes())

	got := tree.Descendants("ops")
	slices.Sort(got)
	if !slices.Equal(got, []string{"cash", "daily", "fuel"}) {
		t.Errorf("Descendants(ops) = %v", got)
	}
	if got := tree.Descendants("cash"); len(got) != 0 {
		t.Errorf("Descendants(cash) = %v, want none", got)
	}
}

func TestTree_Descendants_cycleTerminates(t *testing.T) {
	tree := NewTree([]model.CategoryNode{
		{ID: "a", ParentID: "b"},
		{ID: "b", ParentID: "a"},
	})
	got := tree.Descendants("a")
	if !slices.Equal(got, []string{"b"}) {
		t.Errorf("Descendants(a) = %v, want [b]", got)
	}
}

func TestTree_Nested(t *testing.T) {
	forest := NewTree(sampleNodes()).Nested()

	var roots []string
	for _, r := range forest {
		roots = append(roots, r.ID)
	}
	if !slices.Equal(roots, []string{"hr", "ops", "orphan"}) {
		t.Fatalf("roots = %v (sorted by title)", roots)
	}
	ops := forest[1]
	if len(ops.Children) != 1 || ops.Children[0].ID != "daily" {
		t.Fatalf("ops children = %v", ops.Children)
	}
	daily := ops.Children[0]
	if len(daily.Children) != 2 || daily.Children[0].ID != "cash" || !daily.Children[0].Leaf {
		t.Errorf("daily children = %+v", daily.Children)
	}
}

func TestTree_Siblings(t *testing.T) {
	tree := NewTree(sampleNodes())
	sib := tree.Siblings("cash")
	if len(sib) != 1 || sib[0].ID != "fuel" {
		t.Errorf("Siblings(cash) = %v", sib)
	}
	if tree.Siblings("ops") != nil {
		t.Error("roots have no siblings")
	}
}

func TestAppearance_deterministic(t *testing.T) {
	i1, c1 := Appearance("Monthly Returns")
	i2, c2 := Appearance("Monthly Returns")
	if i1 != i2 || c1 != c2 {
		t.Errorf("Appearance not deterministic: %s/%s vs %s/%s", i1, c1, i2, c2)
	}
	if !slices.Contains(icons, i1) || !slices.Contains(colors, c1) {
		t.Errorf("Appearance returned values outside the palette: %s %s", i1, c1)
	}
}
