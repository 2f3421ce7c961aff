package catalog

import (
	"strings"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default returned error: %v", err)
	}
	if len(c.Purposes) != 6 {
		t.Fatalf("purposes = %d, want 6", len(c.Purposes))
	}
	if len(c.Styles) != 4 {
		t.Fatalf("styles = %d, want 4", len(c.Styles))
	}
	if len(c.Steps) != 6 {
		t.Fatalf("steps = %d, want 6", len(c.Steps))
	}
	event, err := c.Purpose("event")
	if err != nil {
		t.Fatalf("Purpose(event) returned error: %v", err)
	}
	if got := event.Input.ImageLimit(); got != 1 {
		t.Fatalf("event image limit = %d, want 1", got)
	}
	shopping, _ := c.Purpose("shopping")
	if got := shopping.Input.ImageLimit(); got != 5 {
		t.Fatalf("shopping image limit = %d, want 5", got)
	}
	if got := len(c.Template("shopping")); got != 7 {
		t.Fatalf("shopping template sections = %d, want 7", got)
	}
	if got := c.Template("booking")[0].ID; got != "gh1" {
		t.Fatalf("booking falls back to default template, got first section %q", got)
	}
	if c.Template("shopping")[1].Copy != "오늘만 만나는 특별한 가격, 지금 확인하세요" {
		t.Fatalf("unexpected copy %q", c.Template("shopping")[1].Copy)
	}
}

func TestParseRejectsUnknownVariant(t *testing.T) {
	doc := `
purposes: [{id: p}]
styles: [{id: s}]
templates:
  default:
    - {id: x, section: Hero, variant: carousel, kind: product}
`
	_, err := Parse([]byte(doc))
	if err == nil || !strings.Contains(err.Error(), "unknown presentation variant") {
		t.Fatalf("expected unknown variant error, got %v", err)
	}
}

func TestParseRejectsMismatchedKind(t *testing.T) {
	doc := `
purposes: [{id: p}]
styles: [{id: s}]
templates:
  default:
    - {id: x, section: Review, variant: review-card, kind: product}
`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatal("expected error for review-card product section")
	}
}

func TestLookupMissing(t *testing.T) {
	c := MustDefault()
	if _, err := c.Purpose("nope"); err == nil {
		t.Fatal("expected not found")
	}
	if _, err := c.Style("nope"); err == nil {
		t.Fatal("expected not found")
	}
}
