package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pharmyrus/pharmyrus/internal/batch"
	"github.com/pharmyrus/pharmyrus/internal/crawlerpool"
	"github.com/pharmyrus/pharmyrus/internal/discovery"
	"github.com/pharmyrus/pharmyrus/internal/httpapi"
	"github.com/pharmyrus/pharmyrus/internal/observability"
	"github.com/pharmyrus/pharmyrus/internal/pipeline"
	"github.com/pharmyrus/pharmyrus/internal/pubchem"
	"github.com/pharmyrus/pharmyrus/internal/sources"
	"github.com/pharmyrus/pharmyrus/internal/wipo"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", ":8080", "HTTP listen address")
	dbPath := flag.String("db", "pharmyrus-cache.db", "Patent cache database path (empty for memory only)")
	poolSize := flag.Int("pool-size", envInt("CRAWLER_POOL_SIZE", crawlerpool.DefaultPoolSize), "Crawler pool size")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdown := observability.InitOTel(ctx, observability.OtelConfig{
		ServiceName: "pharmyrus-api",
		Environment: os.Getenv("PHARMYRUS_ENV"),
		Version:     pipeline.PipelineVersion,
	})
	if shutdown != nil {
		defer func() {
			shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			_ = shutdown(shutdownCtx)
		}()
	}

	serp, err := discovery.NewSerpClient(discovery.SerpConfig{APIKey: requiredEnv("SERPAPI_API_KEY")})
	if err != nil {
		log.Fatal(err)
	}

	var cache crawlerpool.Cache
	if *dbPath != "" {
		sqliteCache, err := crawlerpool.NewSQLiteCache(*dbPath, cacheTTL())
		if err != nil {
			log.Fatal(err)
		}
		defer sqliteCache.Close()
		cache = sqliteCache
	}

	pool, err := crawlerpool.NewPool(crawlerpool.Config{
		Size:  *poolSize,
		Cache: cache,
		NewCrawler: func() (crawlerpool.Crawler, error) {
			session, err := wipo.NewSession(wipo.SessionConfig{})
			if err != nil {
				return nil, err
			}
			return wipo.NewExtractor(session, wipo.DefaultMaxRetries), nil
		},
	})
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	orchestrator := pipeline.NewOrchestrator(pipeline.Deps{
		Compounds: pubchem.NewClient(pubchem.Config{}),
		Discovery: discovery.NewEngine(discovery.EngineConfig{Searcher: serp}),
		Patents:   pool,
		INPI:      sources.NewINPIClient(sources.INPIConfig{}),
		FDA:       sources.NewFDAClient(sources.FDAConfig{}),
		Trials:    sources.NewTrialsClient(sources.TrialsConfig{}),
	})
	runner := batch.NewRunner(orchestrator, envInt("BATCH_MAX_CONCURRENT", batch.DefaultMaxConcurrent))

	srv := &http.Server{
		Addr:    *addr,
		Handler: httpapi.NewServer(pool, orchestrator, runner),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, c := context.WithTimeout(context.Background(), 10*time.Second)
		defer c()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("pharmyrus-api listening addr=%s pool_size=%d db=%s", *addr, pool.Size(), *dbPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func cacheTTL() time.Duration {
	hours := envInt("PATENT_CACHE_TTL_HOURS", 0)
	return time.Duration(hours) * time.Hour
}

func requiredEnv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		log.Fatalf("missing required env var %s", key)
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	if n <= 0 {
		return fallback
	}
	return n
}
