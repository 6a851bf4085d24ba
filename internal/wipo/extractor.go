package wipo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// SourceWIPO tags records produced by this extractor.
const SourceWIPO = "WIPO"

// Extractor drives one browser session through the fetch state machine:
// load, extract basic fields, reveal and parse the worldwide table,
// validate, retry with backoff. Fetch never returns an error; exhausted
// retries produce a terminal record with Error set.
type Extractor struct {
	loader     PageLoader
	maxRetries int

	// Injectable for tests; production uses sleepCtx and a random jitter.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

func NewExtractor(loader PageLoader, maxRetries int) *Extractor {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Extractor{
		loader:     loader,
		maxRetries: maxRetries,
		sleep:      sleepCtx,
		jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(time.Second)))
		},
	}
}

func (e *Extractor) Close() error {
	return e.loader.Close()
}

func (e *Extractor) Fetch(ctx context.Context, woNumber string) PatentRecord {
	wo := Normalize(woNumber)
	url := DetailURL(wo)

	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		log.Printf("wipo fetch_attempt wo=%s attempt=%d max=%d", wo, attempt, e.maxRetries)
		rec, err := e.attempt(ctx, wo, url)
		if err == nil {
			rec.Debug.Attempts = attempt
			log.Printf("wipo fetch_ok wo=%s worldwide_apps=%d countries=%d", wo, rec.Debug.TotalWorldwideApps, rec.Debug.CountriesFound)
			return rec
		}
		lastErr = err
		log.Printf("wipo fetch_attempt_failed wo=%s attempt=%d err=%v", wo, attempt, err)

		if attempt < e.maxRetries {
			delay := time.Duration(1<<uint(attempt-1))*time.Second + e.jitter()
			if serr := e.sleep(ctx, delay); serr != nil {
				lastErr = serr
				break
			}
		}
	}
	return failedRecord(wo, e.maxRetries, lastErr)
}

func (e *Extractor) attempt(ctx context.Context, wo, url string) (PatentRecord, error) {
	visit, err := e.loader.LoadDetail(ctx, url)
	if err != nil {
		return PatentRecord{}, err
	}

	detailDoc, err := goquery.NewDocumentFromReader(strings.NewReader(visit.DetailHTML))
	if err != nil {
		return PatentRecord{}, fmt.Errorf("parse detail page: %w", err)
	}
	basic := extractBasicFields(detailDoc)

	var nationalDoc *goquery.Document
	if visit.NationalHTML != "" {
		nationalDoc, err = goquery.NewDocumentFromReader(strings.NewReader(visit.NationalHTML))
		if err != nil {
			log.Printf("wipo parse_national_failed wo=%s err=%v", wo, err)
			nationalDoc = nil
		}
	}

	worldwide := extractWorldwide(nationalDoc)
	if countApplications(worldwide) == 0 {
		// The table structure is sometimes entirely absent even on valid
		// records; sweep for bare country codes as a degraded substitute.
		worldwide = extractCountrySweep(nationalDoc)
		if countApplications(worldwide) == 0 {
			worldwide = extractCountrySweep(detailDoc)
		}
	}

	if !hasData(basic, worldwide) {
		return PatentRecord{}, errors.New("no data extracted - all fields are null/empty")
	}

	family := FamilyCountries(worldwide)
	return PatentRecord{
		Source:                SourceWIPO,
		Publication:           wo,
		Title:                 optional(basic.Title),
		Abstract:              optional(basic.Abstract),
		Applicant:             optional(basic.Applicant),
		Dates:                 basic.Dates,
		Inventors:             emptyIfNil(basic.Inventors),
		ClassificationCodes:   emptyIfNil(basic.Codes),
		PDFLink:               optional(basic.PDFLink),
		WorldwideApplications: worldwide,
		FamilyCountries:       family,
		Debug: ExtractionDebug{
			SelectorsFound:     emptyIfNil(basic.SelectorsFound),
			RevealSelector:     visit.RevealSelector,
			TotalWorldwideApps: countApplications(worldwide),
			CountriesFound:     len(family),
		},
	}, nil
}

// hasData is the attempt acceptance rule: at least one of title, abstract,
// applicant, any date, or any worldwide entry.
func hasData(basic basicFields, worldwide map[string][]NationalApplication) bool {
	if basic.Title != "" || basic.Abstract != "" || basic.Applicant != "" {
		return true
	}
	if basic.Dates.Filing != nil || basic.Dates.Publication != nil || basic.Dates.Priority != nil {
		return true
	}
	return countApplications(worldwide) > 0
}

func failedRecord(wo string, attempts int, cause error) PatentRecord {
	msg := "fetch failed"
	if cause != nil {
		msg = cause.Error()
	}
	return PatentRecord{
		Source:                SourceWIPO,
		Publication:           wo,
		Inventors:             []string{},
		ClassificationCodes:   []string{},
		WorldwideApplications: map[string][]NationalApplication{},
		FamilyCountries:       []string{},
		Error:                 msg,
		Debug: ExtractionDebug{
			SelectorsFound: []string{},
			Attempts:       attempts,
			FinalError:     msg,
		},
	}
}

func countApplications(worldwide map[string][]NationalApplication) int {
	n := 0
	for _, apps := range worldwide {
		n += len(apps)
	}
	return n
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
