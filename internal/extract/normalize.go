package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Iron-Ham/pairview/internal/geometry"
)

type container struct {
	Properties  json.RawMessage `json:"properties"`
	MetadataMap json.RawMessage `json:"metadataMap"`
	Pages       json.RawMessage `json:"pages"`
}

type metadataField struct {
	Value        json.RawMessage `json:"value"`
	Confidence   *float64        `json:"confidence"`
	BoundingPoly *struct {
		NormalizedVertices []geometry.Vertex `json:"normalized_vertices"`
	} `json:"bounding_poly"`
}

type page struct {
	Elements []json.RawMessage `json:"elements"`
}

type element struct {
	Content     json.RawMessage `json:"content"`
	Confidence  *float64        `json:"confidence"`
	BoundingBox *struct {
		NormalizedVertices []geometry.Vertex `json:"normalizedVertices"`
	} `json:"boundingBox"`
}

// Normalize parses raw extracted data and returns its field nodes.
func Normalize(raw []byte) ([]FieldNode, error) {
	if !json.Valid(raw) {
		return nil, fmt.Errorf("extracted data is not valid JSON")
	}

	root := unwrap(raw)
	var c container
	if !decodeObject(root, &c) {
		return nil, nil
	}

	if len(c.Properties) > 0 && !isNull(c.Properties) {
		var props container
		if !decodeObject(unwrap(c.Properties), &props) {
			return nil, nil
		}
		c = props
	}

	nodes := metadataNodes(c.MetadataMap)
	nodes = append(nodes, elementNodes(c.Pages)...)
	return nodes, nil
}

func metadataNodes(raw json.RawMessage) []FieldNode {
	entries := orderedEntries(raw)
	nodes := make([]FieldNode, 0, len(entries))
	for _, e := range entries {
		node := FieldNode{Key: e.key, Source: SourceMetadata}

		var f metadataField
		if decodeObject(e.value, &f) {
			node.Value = stringify(f.Value)
			node.Confidence = f.Confidence
			if f.BoundingPoly != nil {
				node.Geometry = bboxPtr(f.BoundingPoly.NormalizedVertices)
			}
		} else {
			node.Value = stringify(e.value)
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func elementNodes(raw json.RawMessage) []FieldNode {
	var pages []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &pages) != nil {
		return nil
	}

	var nodes []FieldNode
	for i, rawPage := range pages {
		var p page
		if !decodeObject(rawPage, &p) {
			continue
		}
		for j, rawEl := range p.Elements {
			node := FieldNode{
				Key:    fmt.Sprintf("page_%d_el_%d", i+1, j),
				Source: SourceElement,
				Page:   i + 1,
			}
			var el element
			if decodeObject(rawEl, &el) {
				node.Value = stringify(el.Content)
				node.Confidence = el.Confidence
				if el.BoundingBox != nil {
					node.Geometry = bboxPtr(el.BoundingBox.NormalizedVertices)
				}
			}
			nodes = append(nodes, node)
		}
	}
	return nodes
}

func bboxPtr(verts []geometry.Vertex) *geometry.BBox {
	box, ok := geometry.FromVertices(verts)
	if !ok {
		return nil
	}
	return &box
}

// unwrap returns the first element of a JSON array, or raw itself.
func unwrap(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return trimmed
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil || len(items) == 0 {
		return nil
	}
	return bytes.TrimSpace(items[0])
}

// decodeObject unmarshals raw into v only when raw is a JSON object.
func decodeObject(raw json.RawMessage, v any) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Unmarshal(trimmed, v) == nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

type entry struct {
	key   string
	value json.RawMessage
}

// orderedEntries reads a JSON object preserving key order, which map
// decoding would lose.
func orderedEntries(raw json.RawMessage) []entry {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if _, err := dec.Token(); err != nil {
		return nil
	}

	var entries []entry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return entries
		}
		key, ok := tok.(string)
		if !ok {
			return entries
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return entries
		}
		entries = append(entries, entry{key: key, value: value})
	}
	return entries
}

// stringify renders a JSON scalar the way a list row shows it.
// Strings are unquoted, null is empty, and containers stay compact JSON.
func stringify(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || isNull(trimmed) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}
