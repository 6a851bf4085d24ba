package report

import (
	"strings"
	"testing"
)

func TestBuildHTMLRendersTables(t *testing.T) {
	md := "# Title\n\n| A | B |\n|---|---|\n| 1 | 2 |\n"
	doc, err := buildHTML(md)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(doc, "<table>") || !strings.Contains(doc, "<td>1</td>") {
		t.Fatalf("GFM table not rendered: %s", doc)
	}
	if !strings.Contains(doc, "<h1") {
		t.Fatalf("heading missing: %s", doc)
	}
	if !strings.Contains(doc, "print-color-adjust") {
		t.Fatal("stylesheet missing")
	}
}

func TestBuildHTMLEscapesRawHTML(t *testing.T) {
	doc, err := buildHTML("plain <script>alert(1)</script> text")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(doc, "<script>alert(1)</script>") {
		t.Fatalf("raw html must not pass through: %s", doc)
	}
}
