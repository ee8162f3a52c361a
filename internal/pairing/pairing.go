// Package pairing groups uploaded files into (source document, extracted
// data) pairs by shared filename stem and infers each pair's document type.
package pairing

import (
	"path"
	"slices"
	"strings"
)

// UnknownDocType is assigned when no known token matches.
const UnknownDocType = "unknown"

// DefaultDocTypes is the ordered token list used for doc type inference.
// The first matching token wins.
var DefaultDocTypes = []string{"invoice", "lease", "fds", "guarantee", "acceptance"}

// File is one uploaded artifact: its original name and a fetchable handle.
type File struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// Pair correlates a source document with its extracted data.
// Base is the pair's identity key.
type Pair struct {
	Base      string `json:"base" yaml:"base"`
	SourceURL string `json:"sourceUrl" yaml:"source_url"`
	DataURL   string `json:"dataUrl" yaml:"data_url"`
	DocType   string `json:"docType" yaml:"doc_type"`
}

type role int

const (
	roleNone role = iota
	roleSource
	roleData
)

// Engine pairs files. The zero value is not usable; use NewEngine.
type Engine struct {
	docTypes  []string
	sourceExt []string
	dataExt   []string
}

// NewEngine builds an engine. Empty arguments fall back to the defaults
// (doc types DefaultDocTypes, source "pdf", data "json" and "txt").
func NewEngine(docTypes, sourceExt, dataExt []string) *Engine {
	if len(docTypes) == 0 {
		docTypes = DefaultDocTypes
	}
	if len(sourceExt) == 0 {
		sourceExt = []string{"pdf"}
	}
	if len(dataExt) == 0 {
		dataExt = []string{"json", "txt"}
	}
	return &Engine{
		docTypes:  lowerAll(docTypes),
		sourceExt: normalizeExts(sourceExt),
		dataExt:   normalizeExts(dataExt),
	}
}

// DocTypes returns the ordered token list.
func (e *Engine) DocTypes() []string {
	return slices.Clone(e.docTypes)
}

// split strips a recognized extension from name and reports its role.
// Names without a recognized extension return roleNone and the name unchanged.
func (e *Engine) split(name string) (string, role) {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return name, roleNone
	}
	stem := name[:len(name)-len(ext)]
	switch {
	case slices.Contains(e.sourceExt, ext):
		return stem, roleSource
	case slices.Contains(e.dataExt, ext):
		return stem, roleData
	default:
		return name, roleNone
	}
}

// Base returns the pairing stem of a file name.
func (e *Engine) Base(name string) string {
	base, _ := e.split(name)
	return base
}

// Accepts reports whether name carries a source or data extension.
func (e *Engine) Accepts(name string) bool {
	_, r := e.split(name)
	return r != roleNone
}

// InferDocType tests the data file name, then the base, against the token
// list (case-insensitive substring). First token in list order wins.
func (e *Engine) InferDocType(dataName, base string) string {
	if t := e.matchToken(dataName); t != "" {
		return t
	}
	if t := e.matchToken(base); t != "" {
		return t
	}
	return UnknownDocType
}

func (e *Engine) matchToken(s string) string {
	s = strings.ToLower(s)
	for _, tok := range e.docTypes {
		if tok != "" && strings.Contains(s, tok) {
			return tok
		}
	}
	return ""
}

type group struct {
	base   string
	source *File
	data   *File
	order  int
	names  []string
}

// pick keeps the lexicographically smallest candidate so the outcome does
// not depend on input order.
func pick(cur *File, f File) *File {
	if cur == nil || f.Name < cur.Name {
		return &f
	}
	return cur
}

func (e *Engine) group(files []File) []*group {
	byBase := make(map[string]*group)
	var ordered []*group
	for _, f := range files {
		base, r := e.split(f.Name)
		if r == roleNone {
			continue
		}
		g, ok := byBase[base]
		if !ok {
			g = &group{base: base, order: len(ordered)}
			byBase[base] = g
			ordered = append(ordered, g)
		}
		g.names = append(g.names, f.Name)
		switch r {
		case roleSource:
			g.source = pick(g.source, f)
		case roleData:
			g.data = pick(g.data, f)
		}
	}
	return ordered
}

// Pair groups files by base and returns the complete pairs. Groups missing
// either member are dropped silently. Output follows first appearance of
// each base.
func (e *Engine) Pair(files []File) []Pair {
	var out []Pair
	for _, g := range e.group(files) {
		if g.source == nil || g.data == nil || g.base == "" {
			continue
		}
		out = append(out, Pair{
			Base:      g.base,
			SourceURL: g.source.URL,
			DataURL:   g.data.URL,
			DocType:   e.InferDocType(path.Base(g.data.Name), g.base),
		})
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func normalizeExts(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range lowerAll(in) {
		if !strings.HasPrefix(s, ".") {
			s = "." + s
		}
		out = append(out, s)
	}
	return out
}
