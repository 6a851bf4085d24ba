// molecule-search runs the full aggregation pipeline for one molecule
// and writes the report as JSON, with optional markdown and PDF output.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pharmyrus/pharmyrus/internal/crawlerpool"
	"github.com/pharmyrus/pharmyrus/internal/discovery"
	"github.com/pharmyrus/pharmyrus/internal/observability"
	"github.com/pharmyrus/pharmyrus/internal/pipeline"
	"github.com/pharmyrus/pharmyrus/internal/pubchem"
	"github.com/pharmyrus/pharmyrus/internal/report"
	"github.com/pharmyrus/pharmyrus/internal/sources"
	"github.com/pharmyrus/pharmyrus/internal/wipo"
)

func main() {
	_ = godotenv.Load()

	country := flag.String("country", "", "Country filter, e.g. BR")
	limit := flag.Int("limit", pipeline.DefaultLimit, "Max WO patents to process")
	poolSize := flag.Int("pool-size", envInt("CRAWLER_POOL_SIZE", crawlerpool.DefaultPoolSize), "Crawler pool size")
	out := flag.String("out", "", "Report JSON output path (default stdout)")
	markdownOut := flag.String("markdown", "", "Also write the report as markdown to this path")
	pdfOut := flag.String("pdf", "", "Also render the report as PDF to this path")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: molecule-search [flags] MOLECULE")
	}
	molecule := flag.Arg(0)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdown := observability.InitOTel(ctx, observability.OtelConfig{
		ServiceName: "molecule-search",
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
	pool, err := crawlerpool.NewPool(crawlerpool.Config{
		Size: *poolSize,
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

	result, err := orchestrator.Run(ctx, molecule, *country, *limit)
	if err != nil {
		log.Fatal(err)
	}

	if err := writeJSON(result, *out); err != nil {
		log.Fatal(err)
	}
	if *markdownOut != "" {
		if err := os.WriteFile(*markdownOut, []byte(report.BuildReportMarkdown(result)), 0o644); err != nil {
			log.Fatal(err)
		}
		log.Printf("molecule-search markdown_written path=%s", *markdownOut)
	}
	if *pdfOut != "" {
		pdf, err := report.NewPDFRenderer().Render(ctx, report.BuildReportMarkdown(result))
		if err != nil {
			log.Fatal(err)
		}
		if err := os.WriteFile(*pdfOut, pdf, 0o644); err != nil {
			log.Fatal(err)
		}
		log.Printf("molecule-search pdf_written path=%s bytes=%d", *pdfOut, len(pdf))
	}
}

func writeJSON(result pipeline.Report, path string) error {
	w := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
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
