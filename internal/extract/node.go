package extract

import (
	"strings"

	"github.com/Iron-Ham/pairview/internal/geometry"
)

// Source identifies where a node came from.
type Source string

const (
	SourceMetadata Source = "metadata"
	SourceElement  Source = "element"
)

// FieldNode is one addressable unit of extracted data.
type FieldNode struct {
	Key        string         `json:"key"`
	Value      string         `json:"value"`
	Geometry   *geometry.BBox `json:"geometry,omitempty"`
	Confidence *float64       `json:"confidence,omitempty"`
	Source     Source         `json:"source"`
	// Page is the 1-based page of an element node; 0 for metadata nodes.
	Page int `json:"page,omitempty"`
}

// Highlightable reports whether the node can drive a highlight.
func (n FieldNode) Highlightable() bool {
	return n.Geometry != nil
}

// BBox returns the node geometry and whether it exists.
func (n FieldNode) BBox() (geometry.BBox, bool) {
	if n.Geometry == nil {
		return geometry.BBox{}, false
	}
	return *n.Geometry, true
}

// Find returns the node with the given key.
func Find(nodes []FieldNode, key string) (FieldNode, bool) {
	for _, n := range nodes {
		if n.Key == key {
			return n, true
		}
	}
	return FieldNode{}, false
}

// Filter returns the nodes whose key or value contains query,
// case-insensitively. An empty query returns nodes unchanged.
func Filter(nodes []FieldNode, query string) []FieldNode {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nodes
	}
	var out []FieldNode
	for _, n := range nodes {
		if strings.Contains(strings.ToLower(n.Key), q) || strings.Contains(strings.ToLower(n.Value), q) {
			out = append(out, n)
		}
	}
	return out
}

// Highlightable returns only the nodes that carry geometry.
func Highlightable(nodes []FieldNode) []FieldNode {
	var out []FieldNode
	for _, n := range nodes {
		if n.Highlightable() {
			out = append(out, n)
		}
	}
	return out
}
