package discovery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

type stubSearcher struct {
	items map[string][]SearchItem
	errs  map[string]error
	calls atomic.Int64
}

func (s *stubSearcher) Search(ctx context.Context, query string) ([]SearchItem, error) {
	s.calls.Add(1)
	if err, ok := s.errs[query]; ok {
		return nil, err
	}
	return s.items[query], nil
}

func TestBuildQueriesCappedAtTwenty(t *testing.T) {
	e := NewEngine(EngineConfig{Searcher: &stubSearcher{}})
	queries := e.BuildQueries("darolutamide", Aux{
		DevCodes: []string{"ODM-201", "BAY-1841788", "ODM-202", "ODM-203", "ODM-204", "ODM-205"},
	})

	if len(queries) != maxQueries {
		t.Fatalf("query count = %d, want cap %d", len(queries), maxQueries)
	}
	if queries[0] != "darolutamide patent WO2011" {
		t.Fatalf("first query = %q", queries[0])
	}
	// Six dev codes supplied, only five contribute variants.
	joined := strings.Join(queries, "\n")
	if strings.Contains(joined, "ODM-205") {
		t.Fatal("dev codes beyond the cap must be dropped")
	}
	if !strings.Contains(joined, "ODM-201 patent WO") || !strings.Contains(joined, `"ODM-201" WO patent`) {
		t.Fatal("expected both dev code variants")
	}
}

func TestBuildQueriesWithoutDevCodes(t *testing.T) {
	e := NewEngine(EngineConfig{Searcher: &stubSearcher{}})
	queries := e.BuildQueries("darolutamide", Aux{})

	// 14 year queries + 2 org hints + 2 quoted combinations.
	if len(queries) != 18 {
		t.Fatalf("query count = %d, want 18", len(queries))
	}
	joined := strings.Join(queries, "\n")
	if !strings.Contains(joined, "darolutamide Orion Corporation patent") {
		t.Fatal("expected organization combination query")
	}
	if !strings.Contains(joined, `"darolutamide" compound patent WO`) {
		t.Fatal("expected quoted compound query")
	}
}

func TestDiscoverDeduplicatesAcrossFormats(t *testing.T) {
	stub := &stubSearcher{items: map[string][]SearchItem{}}
	e := NewEngine(EngineConfig{Searcher: stub})
	queries := e.BuildQueries("darolutamide", Aux{})
	stub.items[queries[0]] = []SearchItem{
		{Title: "Patent WO2019123456 granted", Snippet: "see WO 2019 123456", Link: "https://x/wo-2019/123456"},
		{Snippet: "also wo2016100899"},
	}

	result := e.Discover(context.Background(), "darolutamide", Aux{})

	if len(result.Identifiers) != 2 {
		t.Fatalf("identifiers = %v, want 2 after dedupe", result.Identifiers)
	}
	if result.Identifiers[0] != "WO2016100899" || result.Identifiers[1] != "WO2019123456" {
		t.Fatalf("identifiers not sorted canonical: %v", result.Identifiers)
	}
	if result.HitCounts["WO2019123456"] != 3 {
		t.Fatalf("hit count = %d, want 3 raw matches", result.HitCounts["WO2019123456"])
	}
}

func TestDiscoverDegradesOnQueryFailure(t *testing.T) {
	stub := &stubSearcher{
		items: map[string][]SearchItem{},
		errs:  map[string]error{},
	}
	e := NewEngine(EngineConfig{Searcher: stub})
	for i, q := range e.BuildQueries("darolutamide", Aux{}) {
		if i%2 == 0 {
			stub.errs[q] = errors.New("status code: 500")
		} else {
			stub.items[q] = []SearchItem{{Title: "WO2019123456"}}
		}
	}

	result := e.Discover(context.Background(), "darolutamide", Aux{})

	if result.QueriesFailed != 9 {
		t.Fatalf("queries failed = %d, want 9", result.QueriesFailed)
	}
	if result.QueriesRun != 18 {
		t.Fatalf("queries run = %d, want 18", result.QueriesRun)
	}
	if len(result.Identifiers) != 1 {
		t.Fatalf("surviving queries must still contribute, got %v", result.Identifiers)
	}
}

func TestDiscoverEmptyResultIsValid(t *testing.T) {
	result := NewEngine(EngineConfig{Searcher: &stubSearcher{}}).Discover(context.Background(), "obscurol", Aux{})
	if len(result.Identifiers) != 0 || result.QueriesFailed != 0 {
		t.Fatalf("expected clean empty result, got %+v", result)
	}
}

func TestSerpClientSearch(t *testing.T) {
	var gotQuery, gotKey, gotEngine string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search.json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotQuery = r.URL.Query().Get("q")
		gotKey = r.URL.Query().Get("api_key")
		gotEngine = r.URL.Query().Get("engine")
		w.Write([]byte(`{"organic_results":[{"title":"t","snippet":"s","link":"l"}]}`))
	}))
	defer srv.Close()

	client, err := NewSerpClient(SerpConfig{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	items, err := client.Search(context.Background(), "darolutamide patent WO2019")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Title != "t" {
		t.Fatalf("items = %+v", items)
	}
	if gotQuery != "darolutamide patent WO2019" || gotKey != "test-key" || gotEngine != "google" {
		t.Fatalf("query params: q=%q key=%q engine=%q", gotQuery, gotKey, gotEngine)
	}
}

func TestSerpClientNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewSerpClient(SerpConfig{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Search(context.Background(), "q"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestSerpClientRequiresAPIKey(t *testing.T) {
	if _, err := NewSerpClient(SerpConfig{}); err == nil {
		t.Fatal("expected missing key error")
	}
}
