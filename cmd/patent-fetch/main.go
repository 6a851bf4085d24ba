// patent-fetch extracts one WO publication from Patentscope and prints
// the record as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/pharmyrus/pharmyrus/internal/wipo"
)

func main() {
	_ = godotenv.Load()

	country := flag.String("country", "", "Keep only national applications for this country code")
	retries := flag.Int("retries", wipo.DefaultMaxRetries, "Extraction attempts per publication")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: patent-fetch [flags] WO-NUMBER")
	}
	wo := flag.Arg(0)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	session, err := wipo.NewSession(wipo.SessionConfig{})
	if err != nil {
		log.Fatal(err)
	}
	extractor := wipo.NewExtractor(session, *retries)
	defer extractor.Close()

	rec := extractor.Fetch(ctx, wo)
	if filter := strings.ToUpper(strings.TrimSpace(*country)); filter != "" && !rec.Failed() {
		rec.WorldwideApplications = wipo.FilterByCountry(rec.WorldwideApplications, filter)
		rec.FamilyCountries = wipo.FamilyCountries(rec.WorldwideApplications)
		rec.CountryFilterApplied = filter
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		log.Fatal(err)
	}
	if rec.Failed() {
		os.Exit(1)
	}
}
