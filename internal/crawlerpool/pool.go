package crawlerpool

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/pharmyrus/pharmyrus/internal/wipo"
)

// Crawler is one browser-backed fetcher. The pool owns its crawlers and
// closes them on shutdown.
type Crawler interface {
	Fetch(ctx context.Context, woNumber string) wipo.PatentRecord
	Close() error
}

// SelectionStrategy picks which crawler serves a request. The pool bounds
// concurrency with a semaphore, so crawler fairness barely matters; the
// strategy exists so alternatives (least-loaded, round-robin) can be
// dropped in without touching the pool.
type SelectionStrategy interface {
	Pick(poolSize int, woNumber string) int
}

// FixedIndex always picks the same crawler slot.
type FixedIndex int

func (f FixedIndex) Pick(poolSize int, _ string) int {
	i := int(f)
	if i < 0 || i >= poolSize {
		return 0
	}
	return i
}

const DefaultPoolSize = 3

type Config struct {
	Size       int
	Cache      Cache
	Strategy   SelectionStrategy
	NewCrawler func() (Crawler, error)
}

// Pool fans requests out over a fixed set of crawlers, at most one
// in-flight fetch per slot. Cache hits bypass the crawlers entirely.
type Pool struct {
	crawlers []Crawler
	sem      *semaphore.Weighted
	cache    Cache
	strategy SelectionStrategy
}

// NewPool starts every crawler up front. Initialization is all-or-nothing:
// if any crawler fails to start, the ones already running are closed and
// the error is returned.
func NewPool(cfg Config) (*Pool, error) {
	if cfg.Size <= 0 {
		cfg.Size = DefaultPoolSize
	}
	if cfg.Cache == nil {
		cfg.Cache = NewMemoryCache(0)
	}
	if cfg.Strategy == nil {
		cfg.Strategy = FixedIndex(0)
	}
	if cfg.NewCrawler == nil {
		return nil, errors.New("crawlerpool: NewCrawler factory is required")
	}

	crawlers := make([]Crawler, 0, cfg.Size)
	for i := 0; i < cfg.Size; i++ {
		c, err := cfg.NewCrawler()
		if err != nil {
			for _, started := range crawlers {
				started.Close()
			}
			return nil, fmt.Errorf("start crawler %d/%d: %w", i+1, cfg.Size, err)
		}
		crawlers = append(crawlers, c)
	}
	log.Printf("crawlerpool initialized size=%d", len(crawlers))
	return &Pool{
		crawlers: crawlers,
		sem:      semaphore.NewWeighted(int64(cfg.Size)),
		cache:    cfg.Cache,
		strategy: cfg.Strategy,
	}, nil
}

func (p *Pool) Size() int {
	return len(p.crawlers)
}

func (p *Pool) CacheLen() int {
	return p.cache.Len()
}

// Fetch returns the record for one WO number, serving from cache when
// possible. Like the underlying crawler it never returns an error; a
// failed fetch is a record with Error set, and such records are not
// cached.
func (p *Pool) Fetch(ctx context.Context, woNumber string) wipo.PatentRecord {
	wo := wipo.Normalize(woNumber)

	if rec, ok := p.cache.Get(wo); ok {
		log.Printf("crawlerpool cache_hit wo=%s", wo)
		return rec
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return cancelledRecord(wo, err)
	}
	defer p.sem.Release(1)

	// A concurrent fetch may have filled the cache while we waited.
	if rec, ok := p.cache.Get(wo); ok {
		return rec
	}

	crawler := p.crawlers[p.strategy.Pick(len(p.crawlers), wo)]
	rec := crawler.Fetch(ctx, wo)
	if !rec.Failed() {
		p.cache.Put(wo, rec)
	}
	return rec
}

// FetchAll fetches every WO number concurrently and returns the records
// in input order. The semaphore keeps at most pool-size fetches on the
// crawlers at once.
func (p *Pool) FetchAll(ctx context.Context, woNumbers []string) []wipo.PatentRecord {
	records := make([]wipo.PatentRecord, len(woNumbers))
	var wg sync.WaitGroup
	for i, wo := range woNumbers {
		wg.Add(1)
		go func(i int, wo string) {
			defer wg.Done()
			records[i] = p.Fetch(ctx, wo)
		}(i, wo)
	}
	wg.Wait()
	return records
}

// Close shuts every crawler down, collecting errors rather than stopping
// at the first one.
func (p *Pool) Close() error {
	var errs []error
	for i, c := range p.crawlers {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close crawler %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func cancelledRecord(wo string, cause error) wipo.PatentRecord {
	return wipo.PatentRecord{
		Source:                wipo.SourceWIPO,
		Publication:           wo,
		Inventors:             []string{},
		ClassificationCodes:   []string{},
		WorldwideApplications: map[string][]wipo.NationalApplication{},
		FamilyCountries:       []string{},
		Error:                 cause.Error(),
	}
}
