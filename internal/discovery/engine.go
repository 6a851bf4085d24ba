package discovery

import (
	"context"
	"log"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pharmyrus/pharmyrus/internal/wipo"
)

// Identifier pattern tolerant of the separators search snippets carry:
// "WO2019123456", "WO 2019 123456", "wo-2019/123456".
var woPattern = regexp.MustCompile(`(?i)WO[\s-]?(\d{4})[\s/]?(\d{6})`)

const (
	firstQueryYear = 2011
	lastQueryYear  = 2024
	maxDevCodes    = 5
	maxQueries     = 20
)

// Default organization hints for the combination queries; overridable
// per engine for molecules from other originators.
var defaultOrgHints = []string{"Orion Corporation", "Bayer"}

// Searcher is the keyword-search boundary of the engine.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchItem, error)
}

type EngineConfig struct {
	Searcher     Searcher
	OrgHints     []string
	QueryTimeout time.Duration
}

// Engine discovers candidate WO publication numbers for a molecule by
// fanning keyword queries out over the search backend and scanning
// result text for the identifier pattern. Individual query failures
// degrade silently; an empty result set is a valid outcome.
type Engine struct {
	searcher     Searcher
	orgHints     []string
	queryTimeout time.Duration
}

// Aux is the lexical material the queries are built from, normally
// produced by the PubChem lookup.
type Aux struct {
	DevCodes  []string
	CASNumber string
}

type Result struct {
	Identifiers   []string       `json:"identifiers"`
	HitCounts     map[string]int `json:"hit_counts"`
	QueriesRun    int            `json:"queries_run"`
	QueriesFailed int            `json:"queries_failed"`
}

func NewEngine(cfg EngineConfig) *Engine {
	orgHints := cfg.OrgHints
	if orgHints == nil {
		orgHints = defaultOrgHints
	}
	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &Engine{
		searcher:     cfg.Searcher,
		orgHints:     orgHints,
		queryTimeout: timeout,
	}
}

// BuildQueries assembles the bounded query set: one per year of the
// historical range, two variants per development code, then the
// organization and quoted-phrase combinations. Hard cap keeps the
// search backend's rate limits respected.
func (e *Engine) BuildQueries(molecule string, aux Aux) []string {
	var queries []string
	for year := firstQueryYear; year <= lastQueryYear; year++ {
		queries = append(queries, molecule+" patent WO"+strconv.Itoa(year))
	}
	devCodes := aux.DevCodes
	if len(devCodes) > maxDevCodes {
		devCodes = devCodes[:maxDevCodes]
	}
	for _, code := range devCodes {
		queries = append(queries, code+" patent WO")
		queries = append(queries, `"`+code+`" WO patent`)
	}
	for _, org := range e.orgHints {
		queries = append(queries, molecule+" "+org+" patent")
	}
	queries = append(queries,
		`"`+molecule+`" pharmaceutical patent WO`,
		`"`+molecule+`" compound patent WO`,
	)
	if len(queries) > maxQueries {
		queries = queries[:maxQueries]
	}
	return queries
}

func (e *Engine) Discover(ctx context.Context, molecule string, aux Aux) Result {
	queries := e.BuildQueries(molecule, aux)
	log.Printf("discovery queries molecule=%s count=%d", molecule, len(queries))

	type queryOutcome struct {
		identifiers []string
		failed      bool
	}
	outcomes := make([]queryOutcome, len(queries))

	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			qctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
			defer cancel()
			items, err := e.searcher.Search(qctx, query)
			if err != nil {
				log.Printf("discovery query_failed q=%q err=%v", query, err)
				outcomes[i] = queryOutcome{failed: true}
				return
			}
			outcomes[i] = queryOutcome{identifiers: scanIdentifiers(items)}
		}(i, query)
	}
	wg.Wait()

	result := Result{HitCounts: map[string]int{}, QueriesRun: len(queries)}
	seen := map[string]struct{}{}
	for _, outcome := range outcomes {
		if outcome.failed {
			result.QueriesFailed++
			continue
		}
		for _, id := range outcome.identifiers {
			result.HitCounts[id]++
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			result.Identifiers = append(result.Identifiers, id)
		}
	}
	sort.Strings(result.Identifiers)
	log.Printf("discovery done molecule=%s identifiers=%d failed=%d", molecule, len(result.Identifiers), result.QueriesFailed)
	return result
}

// scanIdentifiers extracts every normalized WO number from one query's
// result items. Title, snippet, and link all carry identifiers in the
// wild.
func scanIdentifiers(items []SearchItem) []string {
	var out []string
	for _, item := range items {
		text := item.Title + " " + item.Snippet + " " + item.Link
		for _, m := range woPattern.FindAllStringSubmatch(text, -1) {
			out = append(out, wipo.Normalize("WO"+m[1]+m[2]))
		}
	}
	return out
}
