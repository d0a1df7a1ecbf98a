package catalog

import (
	"errors"
	"testing"

	"lotlister/internal"
)

func taxonomyRows(pairs ...string) []map[string]string {
	var rows []map[string]string
	for i := 0; i+1 < len(pairs); i += 2 {
		rows = append(rows, map[string]string{"Category ID": pairs[i], "Category Path": pairs[i+1]})
	}
	return rows
}

func TestMatchBeforeBuildReturnsDefault(t *testing.T) {
	idx := NewIndex()
	got := idx.Match("Garden Hose")
	if got != internal.DefaultCategory() {
		t.Fatalf("expected default category, got %+v", got)
	}
}

func TestMatchEmptyTitleReturnsDefault(t *testing.T) {
	idx := NewIndex()
	if _, err := idx.Build(taxonomyRows("1", "Home > Garden")); err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, title := range []string{"", "a of the", "!!"} {
		if got := idx.Match(title); got.CategoryID != internal.DefaultCategoryID || got.Score != 0 {
			t.Fatalf("title %q: expected default, got %+v", title, got)
		}
	}
}

func TestMatchScoresExactPartialCoverageDepth(t *testing.T) {
	idx := NewIndex()
	if _, err := idx.Build(taxonomyRows("10", "Home > Garden > Hoses", "20", "Toys")); err != nil {
		t.Fatalf("build: %v", err)
	}

	// garden and hoses: exact 20, partial 10 (each token also counts as its
	// own substring), coverage 2*8, depth 3*3.
	got := idx.Match("Garden Hoses")
	if got.CategoryID != "10" || got.Score != 55 {
		t.Fatalf("expected 10/55, got %+v", got)
	}
}

func TestMatchCoverageCountsSubstringTokens(t *testing.T) {
	idx := NewIndex()
	if _, err := idx.Build(taxonomyRows("5", "Clothing > Shirts")); err != nil {
		t.Fatalf("build: %v", err)
	}
	// Only "shirts" is indexed; "shirt" still adds coverage as a substring.
	got := idx.Match("Shirt Shirts")
	if got.CategoryID != "5" || got.Score != 37 {
		t.Fatalf("expected 5/37, got %+v", got)
	}
}

func TestMatchTieKeepsLowestOrdinal(t *testing.T) {
	idx := NewIndex()
	if _, err := idx.Build(taxonomyRows("1", "Toys > Cars", "2", "Games > Cars")); err != nil {
		t.Fatalf("build: %v", err)
	}
	for i := 0; i < 20; i++ {
		if got := idx.Match("Cars"); got.CategoryID != "1" || got.Score != 29 {
			t.Fatalf("iteration %d: expected 1/29, got %+v", i, got)
		}
	}

	if _, err := idx.Build(taxonomyRows("2", "Games > Cars", "1", "Toys > Cars")); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if got := idx.Match("Cars"); got.CategoryID != "2" {
		t.Fatalf("expected first node after rebuild, got %+v", got)
	}
}

func TestMatchNoCandidateReturnsDefault(t *testing.T) {
	idx := NewIndex()
	if _, err := idx.Build(taxonomyRows("1", "Toys > Cars")); err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := idx.Match("Kitchen Kettle"); got.CategoryID != internal.DefaultCategoryID {
		t.Fatalf("expected default, got %+v", got)
	}
}

func TestBuildSkipsIncompleteRowsAndUsesOrdinals(t *testing.T) {
	rows := []map[string]string{
		{"Category ID": "", "Category Path": "Broken"},
		{"category_id": "7", "CategoryPath": "Kitchen > Kettles"},
		{"CategoryID": "8"},
	}
	idx := NewIndex()
	status, err := idx.Build(rows)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if status.Count != 1 || !status.Initialized {
		t.Fatalf("unexpected status: %+v", status)
	}
	nodes := idx.Nodes()
	if nodes[0].Ordinal != 0 || nodes[0].ID != "7" || nodes[0].Depth != 2 {
		t.Fatalf("unexpected node: %+v", nodes[0])
	}
	if got := idx.Match("Electric Kettles"); got.CategoryID != "7" {
		t.Fatalf("expected 7, got %+v", got)
	}
}

func TestBuildEmptyTaxonomy(t *testing.T) {
	idx := NewIndex()
	if _, err := idx.Build(taxonomyRows("1", "Toys")); err != nil {
		t.Fatalf("build: %v", err)
	}
	_, err := idx.Build(nil)
	if !errors.Is(err, ErrEmptyTaxonomy) {
		t.Fatalf("expected ErrEmptyTaxonomy, got %v", err)
	}
	if got := idx.Match("Toys"); got.CategoryID != internal.DefaultCategoryID {
		t.Fatalf("expected prior index to be discarded, got %+v", got)
	}
}
