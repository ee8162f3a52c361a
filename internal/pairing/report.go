package pairing

import (
	"sort"

	"github.com/agnivade/levenshtein"
)

// maxSuggestionDistance bounds how different a suggested base may be.
const maxSuggestionDistance = 3

// Orphan is a file group that could not form a pair.
type Orphan struct {
	Base    string   `json:"base" yaml:"base"`
	Files   []string `json:"files" yaml:"files"`
	Missing string   `json:"missing" yaml:"missing"`
	// Suggestion is the closest base of another orphan group that holds the
	// missing member, when one is within a small edit distance.
	Suggestion string `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

// Report is the full outcome of pairing a batch, including what was dropped.
type Report struct {
	Pairs   []Pair   `json:"pairs" yaml:"pairs"`
	Orphans []Orphan `json:"orphans" yaml:"orphans"`
	Ignored []string `json:"ignored,omitempty" yaml:"ignored,omitempty"`
}

// Report pairs files and explains every group that did not pair.
func (e *Engine) Report(files []File) Report {
	rep := Report{Pairs: e.Pair(files)}

	for _, f := range files {
		if !e.Accepts(f.Name) {
			rep.Ignored = append(rep.Ignored, f.Name)
		}
	}
	sort.Strings(rep.Ignored)

	var incomplete []*group
	for _, g := range e.group(files) {
		if g.source == nil || g.data == nil {
			incomplete = append(incomplete, g)
		}
	}

	for _, g := range incomplete {
		o := Orphan{Base: g.base, Files: append([]string(nil), g.names...)}
		sort.Strings(o.Files)
		if g.source == nil {
			o.Missing = "source"
		} else {
			o.Missing = "data"
		}
		o.Suggestion = suggest(g, incomplete)
		rep.Orphans = append(rep.Orphans, o)
	}
	sort.Slice(rep.Orphans, func(i, j int) bool { return rep.Orphans[i].Base < rep.Orphans[j].Base })
	return rep
}

// suggest finds the nearest other orphan that has what g lacks.
func suggest(g *group, candidates []*group) string {
	best, bestDist := "", maxSuggestionDistance+1
	for _, c := range candidates {
		if c == g {
			continue
		}
		complements := (g.source == nil && c.source != nil) || (g.data == nil && c.data != nil)
		if !complements {
			continue
		}
		d := levenshtein.ComputeDistance(g.base, c.base)
		if d < bestDist || (d == bestDist && c.base < best) {
			best, bestDist = c.base, d
		}
	}
	if bestDist > maxSuggestionDistance {
		return ""
	}
	return best
}
