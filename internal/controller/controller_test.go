package controller

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/Iron-Ham/pairview/internal/errors"
	"github.com/Iron-Ham/pairview/internal/geometry"
	"github.com/Iron-Ham/pairview/internal/pairing"
	"github.com/Iron-Ham/pairview/internal/peer"
)

const invoiceData = `[{
  "properties": {
    "metadataMap": {
      "invoice_number": {"value": "INV-001", "bounding_poly": {"normalized_vertices": [{"x":0.1,"y":0.2},{"x":0.4,"y":0.2},{"x":0.4,"y":0.5},{"x":0.1,"y":0.5}]}},
      "currency": {"value": "EUR"}
    },
    "pages": [{"elements": [{"content": "Total", "boundingBox": {"normalizedVertices": [{"x":0.5,"y":0.8},{"x":0.7,"y":0.9}]}}]}]
  }
}]`

type mapFetcher map[string]string

func (m mapFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	data, ok := m[ref]
	if !ok {
		return nil, fmt.Errorf("no such resource %s", ref)
	}
	return []byte(data), nil
}

type fakeRegistry struct {
	mu         sync.Mutex
	opened     []pairing.Pair
	highlights []peer.HighlightRequest
	outcome    peer.Outcome
}

func (r *fakeRegistry) OpenOrAttach(_ context.Context, pair pairing.Pair) (peer.HandleInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, pair)
	return peer.HandleInfo{DocType: pair.DocType, Name: "pv-" + pair.DocType, Base: pair.Base}, nil
}

func (r *fakeRegistry) Highlight(_ context.Context, req peer.HighlightRequest) peer.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.highlights = append(r.highlights, req)
	return r.outcome
}

func uploadFiles() []pairing.File {
	return []pairing.File{
		{Name: "invoice_01.pdf", URL: "/files/invoice_01.pdf"},
		{Name: "invoice_01.json", URL: "/files/invoice_01.json"},
		{Name: "lease_final.pdf", URL: "/files/lease_final.pdf"},
		{Name: "orphan.pdf", URL: "/files/orphan.pdf"},
	}
}

func newController(reg *fakeRegistry) *Controller {
	fetcher := mapFetcher{"/files/invoice_01.json": invoiceData}
	return New(pairing.NewEngine(nil, nil, nil), reg, fetcher, nil)
}

func TestUploadReplacesWorkingSet(t *testing.T) {
	c := newController(&fakeRegistry{})

	pairs := c.Upload(uploadFiles())
	if len(pairs) != 1 || pairs[0].Base != "invoice_01" || pairs[0].DocType != "invoice" {
		t.Fatalf("Upload() = %+v", pairs)
	}
	if _, err := c.Select(context.Background(), "invoice_01"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	c.Upload(nil)
	if len(c.Pairs()) != 0 {
		t.Error("second upload should replace the working set")
	}
	if _, ok := c.Selected(); ok {
		t.Error("upload should clear the selection")
	}
	if len(c.Fields()) != 0 {
		t.Error("upload should clear the field list")
	}
}

func TestReport(t *testing.T) {
	c := newController(&fakeRegistry{})
	c.Upload(uploadFiles())

	report := c.Report()
	if len(report.Pairs) != 1 {
		t.Errorf("report pairs = %d, want 1", len(report.Pairs))
	}
	if len(report.Orphans) != 2 {
		t.Errorf("report orphans = %d, want 2", len(report.Orphans))
	}
}

func TestOpen(t *testing.T) {
	reg := &fakeRegistry{}
	c := newController(reg)
	c.Upload(uploadFiles())

	info, err := c.Open(context.Background(), "invoice_01")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if info.DocType != "invoice" || len(reg.opened) != 1 {
		t.Errorf("Open() = %+v, opened %v", info, reg.opened)
	}

	if _, err := c.Open(context.Background(), "missing"); !errors.Is(err, errors.ErrPairNotFound) {
		t.Errorf("Open(missing) error = %v, want ErrPairNotFound", err)
	}
}

func TestSelect(t *testing.T) {
	c := newController(&fakeRegistry{})
	c.Upload(uploadFiles())

	nodes, err := c.Select(context.Background(), "invoice_01")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	keys := []string{"invoice_number", "currency", "page_1_el_0"}
	if len(nodes) != len(keys) {
		t.Fatalf("nodes = %d, want %d", len(nodes), len(keys))
	}
	for i, k := range keys {
		if nodes[i].Key != k {
			t.Errorf("nodes[%d].Key = %q, want %q", i, nodes[i].Key, k)
		}
	}
	if sel, ok := c.Selected(); !ok || sel.Base != "invoice_01" {
		t.Errorf("Selected() = %+v, %v", sel, ok)
	}
}

func TestSelectErrors(t *testing.T) {
	c := New(pairing.NewEngine(nil, nil, nil), &fakeRegistry{}, mapFetcher{"/bad.json": "{"}, nil)
	c.Upload([]pairing.File{
		{Name: "bad.pdf", URL: "/bad.pdf"},
		{Name: "bad.json", URL: "/bad.json"},
		{Name: "gone.pdf", URL: "/gone.pdf"},
		{Name: "gone.json", URL: "/gone.json"},
	})

	if _, err := c.Select(context.Background(), "bad"); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Select(bad) error = %v, want ErrInvalidInput", err)
	}
	if _, err := c.Select(context.Background(), "gone"); err == nil {
		t.Error("Select(gone) should surface the fetch error")
	}
	if _, err := c.Select(context.Background(), "nope"); !errors.Is(err, errors.ErrPairNotFound) {
		t.Errorf("Select(nope) error = %v, want ErrPairNotFound", err)
	}
	if _, ok := c.Selected(); ok {
		t.Error("failed selects must not change the selection")
	}
}

func TestClick(t *testing.T) {
	reg := &fakeRegistry{outcome: peer.OutcomeRetrying}
	c := newController(reg)
	c.Upload(uploadFiles())

	if _, err := c.Click(context.Background(), "invoice_number"); !errors.Is(err, errors.ErrNoSelection) {
		t.Errorf("Click without selection error = %v, want ErrNoSelection", err)
	}

	if _, err := c.Select(context.Background(), "invoice_01"); err != nil {
		t.Fatal(err)
	}

	outcome, err := c.Click(context.Background(), "invoice_number")
	if err != nil {
		t.Fatalf("Click() error = %v", err)
	}
	if outcome != peer.OutcomeRetrying {
		t.Errorf("outcome = %v, want retrying", outcome)
	}
	if len(reg.highlights) != 1 {
		t.Fatalf("highlights = %d, want 1", len(reg.highlights))
	}
	want := geometry.BBox{0.1, 0.2, 0.4, 0.5}
	if got := reg.highlights[0]; got.BBox != want || got.Pair.Base != "invoice_01" || got.FieldKey != "invoice_number" {
		t.Errorf("highlight request = %+v", got)
	}
}

func TestClickWithoutGeometryIsNoop(t *testing.T) {
	reg := &fakeRegistry{}
	c := newController(reg)
	c.Upload(uploadFiles())
	if _, err := c.Select(context.Background(), "invoice_01"); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Click(context.Background(), "currency"); !errors.Is(err, errors.ErrNoGeometry) {
		t.Errorf("Click(currency) error = %v, want ErrNoGeometry", err)
	}
	if _, err := c.Click(context.Background(), "missing"); !errors.Is(err, errors.ErrFieldNotFound) {
		t.Errorf("Click(missing) error = %v, want ErrFieldNotFound", err)
	}
	if len(reg.highlights) != 0 || len(reg.opened) != 0 {
		t.Error("clicks without geometry must not reach the registry")
	}
}
