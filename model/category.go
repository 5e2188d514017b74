package model

import "time"

// CategoryNode is one node of the report category tree. A node with no
// parent, or whose parent no longer exists, is a root.
type CategoryNode struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	ParentID    string    `json:"parentId,omitempty"`
	Path        string    `json:"path"`
	Icon        string    `json:"icon"`
	Color       string    `json:"color"`
	IsPage      bool      `json:"isPage"`
	PageID      string    `json:"pageId"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// CategoryTreeNode is the nested view of a category and its children.
type CategoryTreeNode struct {
	CategoryNode
	Leaf     bool                `json:"leaf"`
	Children []*CategoryTreeNode `json:"children,omitempty"`
}
