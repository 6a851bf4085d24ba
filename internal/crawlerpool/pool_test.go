package crawlerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pharmyrus/pharmyrus/internal/wipo"
)

type fakeCrawler struct {
	fetch  func(ctx context.Context, wo string) wipo.PatentRecord
	closed atomic.Bool
	calls  atomic.Int64
}

func (f *fakeCrawler) Fetch(ctx context.Context, wo string) wipo.PatentRecord {
	f.calls.Add(1)
	if f.fetch != nil {
		return f.fetch(ctx, wo)
	}
	return okRecord(wo)
}

func (f *fakeCrawler) Close() error {
	f.closed.Store(true)
	return nil
}

func okRecord(wo string) wipo.PatentRecord {
	title := "title for " + wo
	return wipo.PatentRecord{Source: wipo.SourceWIPO, Publication: wo, Title: &title}
}

func newTestPool(t *testing.T, size int, fetch func(ctx context.Context, wo string) wipo.PatentRecord) (*Pool, []*fakeCrawler) {
	t.Helper()
	var crawlers []*fakeCrawler
	pool, err := NewPool(Config{
		Size: size,
		NewCrawler: func() (Crawler, error) {
			c := &fakeCrawler{fetch: fetch}
			crawlers = append(crawlers, c)
			return c, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool, crawlers
}

func TestPoolBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int64
	release := make(chan struct{})

	pool, _ := newTestPool(t, 2, func(ctx context.Context, wo string) wipo.PatentRecord {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		return okRecord(wo)
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		wo := string(rune('0'+i)) + "2019123456"
		go func(wo string) {
			defer wg.Done()
			pool.Fetch(context.Background(), "WO"+wo)
		}(wo)
	}
	close(release)
	wg.Wait()

	if got := peak.Load(); got > 2 {
		t.Fatalf("peak concurrent fetches = %d, want <= 2", got)
	}
}

func TestPoolCacheHitSkipsCrawler(t *testing.T) {
	pool, crawlers := newTestPool(t, 1, nil)

	first := pool.Fetch(context.Background(), "WO2019123456")
	second := pool.Fetch(context.Background(), "wo 2019/123456")

	if first.Failed() || second.Failed() {
		t.Fatalf("unexpected failures: %q %q", first.Error, second.Error)
	}
	total := int64(0)
	for _, c := range crawlers {
		total += c.calls.Load()
	}
	if total != 1 {
		t.Fatalf("expected 1 crawler call across normalized variants, got %d", total)
	}
	if pool.CacheLen() != 1 {
		t.Fatalf("cache len = %d, want 1", pool.CacheLen())
	}
}

func TestPoolDoesNotCacheFailures(t *testing.T) {
	pool, crawlers := newTestPool(t, 1, func(ctx context.Context, wo string) wipo.PatentRecord {
		return wipo.PatentRecord{Publication: wo, Error: "fetch failed"}
	})

	pool.Fetch(context.Background(), "WO2019123456")
	pool.Fetch(context.Background(), "WO2019123456")

	if pool.CacheLen() != 0 {
		t.Fatalf("failed records must not be cached, cache len = %d", pool.CacheLen())
	}
	if got := crawlers[0].calls.Load(); got != 2 {
		t.Fatalf("expected a fresh crawler call per request, got %d", got)
	}
}

func TestPoolFetchAllPreservesOrder(t *testing.T) {
	pool, _ := newTestPool(t, 2, nil)

	wos := []string{"WO2019000001", "WO2019000002", "WO2019000003"}
	records := pool.FetchAll(context.Background(), wos)

	if len(records) != len(wos) {
		t.Fatalf("got %d records, want %d", len(records), len(wos))
	}
	for i, rec := range records {
		if rec.Publication != wos[i] {
			t.Fatalf("records[%d] = %q, want %q", i, rec.Publication, wos[i])
		}
	}
}

func TestPoolInitializationAllOrNothing(t *testing.T) {
	var started []*fakeCrawler
	attempts := 0
	_, err := NewPool(Config{
		Size: 3,
		NewCrawler: func() (Crawler, error) {
			attempts++
			if attempts == 3 {
				return nil, errors.New("chrome failed to start")
			}
			c := &fakeCrawler{}
			started = append(started, c)
			return c, nil
		},
	})

	if err == nil {
		t.Fatal("expected initialization failure")
	}
	if len(started) != 2 {
		t.Fatalf("expected 2 crawlers started before failure, got %d", len(started))
	}
	for i, c := range started {
		if !c.closed.Load() {
			t.Fatalf("crawler %d leaked after failed initialization", i)
		}
	}
}

func TestPoolFetchCancelledContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	pool, _ := newTestPool(t, 1, func(ctx context.Context, wo string) wipo.PatentRecord {
		<-block
		return okRecord(wo)
	})

	// Occupy the only slot.
	go pool.Fetch(context.Background(), "WO2019000001")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := pool.Fetch(ctx, "WO2019000002")

	if !rec.Failed() {
		t.Fatal("expected failure record for cancelled acquire")
	}
	if rec.Publication != "WO2019000002" {
		t.Fatalf("publication = %q", rec.Publication)
	}
}

func TestPoolCloseClosesAllCrawlers(t *testing.T) {
	pool, crawlers := newTestPool(t, 3, nil)
	if err := pool.Close(); err != nil {
		t.Fatal(err)
	}
	for i, c := range crawlers {
		if !c.closed.Load() {
			t.Fatalf("crawler %d not closed", i)
		}
	}
}
