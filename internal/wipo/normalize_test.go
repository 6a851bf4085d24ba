package wipo

import "testing"

func TestNormalizeVariantsConverge(t *testing.T) {
	variants := []string{
		"WO2019123456",
		"wo2019123456",
		"WO 2019 123456",
		"WO-2019/123456",
		"2019123456",
		"wo 2019-123456",
	}
	for _, v := range variants {
		if got := Normalize(v); got != "WO2019123456" {
			t.Fatalf("Normalize(%q) = %q, want WO2019123456", v, got)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	canonical := Normalize("wo 2020/000001")
	if got := Normalize(canonical); got != canonical {
		t.Fatalf("re-normalizing %q changed it to %q", canonical, got)
	}
}

func TestDetailURL(t *testing.T) {
	got := DetailURL("WO2019123456")
	want := "https://patentscope.wipo.int/search/en/detail.jsf?docId=WO2019123456"
	if got != want {
		t.Fatalf("DetailURL = %q, want %q", got, want)
	}
}
