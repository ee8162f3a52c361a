// Package extract turns an extracted-data document of heterogeneous shape
// into a flat, ordered list of addressable field nodes with normalized
// geometry.
//
// Two sources contribute nodes:
//
//   - a metadata mapping (properties.metadataMap), one node per entry, keyed
//     by the entry's name, geometry from bounding_poly.normalized_vertices
//   - positional page elements (properties.pages[].elements[]), keyed
//     page_<page>_el_<index>, geometry from boundingBox.normalizedVertices
//
// Metadata nodes come first in document order, then page elements in page
// order. Nodes without derivable geometry are kept for listing but are not
// [FieldNode.Highlightable]. Shape mismatches never fail: they produce fewer
// nodes. Only invalid JSON is reported as an error.
package extract
