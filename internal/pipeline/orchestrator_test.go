package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/pharmyrus/pharmyrus/internal/discovery"
	"github.com/pharmyrus/pharmyrus/internal/pubchem"
	"github.com/pharmyrus/pharmyrus/internal/sources"
	"github.com/pharmyrus/pharmyrus/internal/wipo"
)

type stubDeps struct {
	compound   pubchem.Compound
	discovered discovery.Result
	records    map[string]wipo.PatentRecord
	fetched    []string
	inpi       sources.INPIResult
	fda        sources.FDAResult
	trials     sources.TrialsResult
}

func (s *stubDeps) Lookup(ctx context.Context, molecule string) pubchem.Compound {
	return s.compound
}

func (s *stubDeps) Discover(ctx context.Context, molecule string, aux discovery.Aux) discovery.Result {
	return s.discovered
}

func (s *stubDeps) FetchAll(ctx context.Context, woNumbers []string) []wipo.PatentRecord {
	s.fetched = woNumbers
	out := make([]wipo.PatentRecord, len(woNumbers))
	for i, wo := range woNumbers {
		if rec, ok := s.records[wo]; ok {
			out[i] = rec
		} else {
			out[i] = wipo.PatentRecord{Source: wipo.SourceWIPO, Publication: wo}
		}
	}
	return out
}

func (s *stubDeps) Search(ctx context.Context, molecule string, devCodes []string) sources.INPIResult {
	return s.inpi
}

func newTestOrchestrator(s *stubDeps) *Orchestrator {
	return NewOrchestrator(Deps{
		Compounds: s,
		Discovery: s,
		Patents:   s,
		INPI:      s,
		FDA:       fdaFunc(func(ctx context.Context, molecule string) sources.FDAResult { return s.fda }),
		Trials:    trialsFunc(func(ctx context.Context, molecule string) sources.TrialsResult { return s.trials }),
	})
}

type fdaFunc func(ctx context.Context, molecule string) sources.FDAResult

func (f fdaFunc) Lookup(ctx context.Context, molecule string) sources.FDAResult {
	return f(ctx, molecule)
}

type trialsFunc func(ctx context.Context, molecule string) sources.TrialsResult

func (f trialsFunc) Search(ctx context.Context, molecule string) sources.TrialsResult {
	return f(ctx, molecule)
}

func patentRecord(wo string, worldwide map[string][]wipo.NationalApplication) wipo.PatentRecord {
	title := "title " + wo
	return wipo.PatentRecord{
		Source:                wipo.SourceWIPO,
		Publication:           wo,
		Title:                 &title,
		WorldwideApplications: worldwide,
		FamilyCountries:       wipo.FamilyCountries(worldwide),
	}
}

func TestRunRejectsEmptyMolecule(t *testing.T) {
	o := newTestOrchestrator(&stubDeps{})
	if _, err := o.Run(context.Background(), "  ", "", 0); err == nil {
		t.Fatal("expected error for empty molecule")
	}
}

func TestRunZeroDiscoveryCompletesCleanly(t *testing.T) {
	s := &stubDeps{
		fda:    sources.FDAResult{ApprovalStatus: sources.FDANotFound, Applications: []sources.FDAApplication{}},
		inpi:   sources.INPIResult{BRPatents: []sources.BRPatent{}},
		trials: sources.TrialsResult{},
	}
	o := newTestOrchestrator(s)

	report, err := o.Run(context.Background(), "obscurol", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if report.ExecutiveSummary.TotalPatents != 0 {
		t.Fatalf("total patents = %d", report.ExecutiveSummary.TotalPatents)
	}
	if len(s.fetched) != 0 {
		t.Fatalf("no candidates should reach the pool, fetched %v", s.fetched)
	}
	if report.SearchStrategy.CountryFilter != "ALL" {
		t.Fatalf("country filter = %q", report.SearchStrategy.CountryFilter)
	}
	if report.GeneratedAt == "" {
		t.Fatal("generated_at missing")
	}
	// Discovery with zero hits is a warning, never an error.
	if report.DebugInfo.ErrorsCount != 0 {
		t.Fatalf("errors count = %d", report.DebugInfo.ErrorsCount)
	}
	if report.DebugInfo.WarningsCount == 0 {
		t.Fatal("expected no_results warnings")
	}
}

func TestRunTruncatesCandidatesToLimit(t *testing.T) {
	s := &stubDeps{
		discovered: discovery.Result{Identifiers: []string{"WO2019000001", "WO2019000002", "WO2019000003"}},
	}
	o := newTestOrchestrator(s)

	report, err := o.Run(context.Background(), "darolutamide", "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.fetched) != 2 {
		t.Fatalf("fetched = %v, want 2 candidates", s.fetched)
	}
	if report.SearchStrategy.TotalWOPatents != 3 || report.SearchStrategy.WOPatentsProcessed != 2 {
		t.Fatalf("strategy = %+v", report.SearchStrategy)
	}
}

func TestRunCountryFilterRewritesRecords(t *testing.T) {
	worldwide := map[string][]wipo.NationalApplication{
		"2020": {{CountryCode: "BR", ApplicationNumber: "BR1"}, {CountryCode: "US"}},
		"2021": {{CountryCode: "US"}},
	}
	usOnly := map[string][]wipo.NationalApplication{
		"2021": {{CountryCode: "US"}},
	}
	s := &stubDeps{
		discovered: discovery.Result{Identifiers: []string{"WO2019000001", "WO2019000002"}},
		records: map[string]wipo.PatentRecord{
			"WO2019000001": patentRecord("WO2019000001", worldwide),
			"WO2019000002": patentRecord("WO2019000002", usOnly),
		},
	}
	o := newTestOrchestrator(s)

	report, err := o.Run(context.Background(), "darolutamide", "br", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.WOPatents) != 1 {
		t.Fatalf("wo patents = %d, want only the record with BR filings", len(report.WOPatents))
	}
	rec := report.WOPatents[0]
	if rec.CountryFilterApplied != "BR" {
		t.Fatalf("country filter tag = %q", rec.CountryFilterApplied)
	}
	if len(rec.WorldwideApplications) != 1 || len(rec.WorldwideApplications["2020"]) != 1 {
		t.Fatalf("worldwide = %v", rec.WorldwideApplications)
	}
	if len(rec.FamilyCountries) != 1 || rec.FamilyCountries[0] != "BR" {
		t.Fatalf("family countries = %v", rec.FamilyCountries)
	}
}

func TestRunFailedRecordsBecomeStageErrors(t *testing.T) {
	s := &stubDeps{
		discovered: discovery.Result{Identifiers: []string{"WO2019000001", "WO2019000002"}},
		records: map[string]wipo.PatentRecord{
			"WO2019000001": {Publication: "WO2019000001", Error: "fetch failed"},
			"WO2019000002": patentRecord("WO2019000002", map[string][]wipo.NationalApplication{
				"2020": {{CountryCode: "BR"}},
			}),
		},
	}
	o := newTestOrchestrator(s)

	report, err := o.Run(context.Background(), "darolutamide", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.WOPatents) != 1 {
		t.Fatalf("failed records must not join the report, got %d", len(report.WOPatents))
	}
	found := false
	for _, e := range report.DebugInfo.Errors {
		if strings.Contains(e, "WO2019000001") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected stage error for the failed record, got %v", report.DebugInfo.Errors)
	}
}

func TestRunJurisdictionCountsAndMerge(t *testing.T) {
	s := &stubDeps{
		compound: pubchem.Compound{
			DevCodes:  []string{"ODM-201"},
			CASNumber: "1297538-32-9",
			IUPACName: "long-iupac-name",
		},
		discovered: discovery.Result{Identifiers: []string{"WO2019000001"}},
		records: map[string]wipo.PatentRecord{
			"WO2019000001": patentRecord("WO2019000001", map[string][]wipo.NationalApplication{
				"2020": {{CountryCode: "BR"}, {CountryCode: "US"}, {CountryCode: "EP"}},
			}),
		},
		inpi: sources.INPIResult{BRPatents: []sources.BRPatent{
			{Number: "BR-11-2020-000001", Title: "ORION", FilingDate: "2020-01-01"},
			{Number: "BR-11-2020-000001"}, // duplicate, dropped on merge
		}},
		fda:    sources.FDAResult{ApprovalStatus: sources.FDAApproved},
		trials: sources.TrialsResult{TotalTrials: 7},
	}
	o := newTestOrchestrator(s)

	report, err := o.Run(context.Background(), "darolutamide", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	summary := report.ExecutiveSummary
	if summary.TotalPatents != 2 || summary.TotalFamilies != 2 {
		t.Fatalf("summary totals = %+v", summary)
	}
	if summary.Jurisdictions.Brazil != 2 {
		t.Fatalf("brazil count = %d (WO family BR + direct BR)", summary.Jurisdictions.Brazil)
	}
	if summary.Jurisdictions.USA != 1 || summary.Jurisdictions.Europe != 1 || summary.Jurisdictions.WIPO != 1 {
		t.Fatalf("jurisdictions = %+v", summary.Jurisdictions)
	}
	if summary.FDAStatus != sources.FDAApproved || summary.ClinicalTrialsCount != 7 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.CASNumber != "1297538-32-9" || summary.ConsistencyScore != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(report.AllPatents) != 2 {
		t.Fatalf("all patents = %+v", report.AllPatents)
	}
	if report.AllPatents[0].Type != "WO" || report.AllPatents[1].Type != "BR" {
		t.Fatalf("merge order = %+v", report.AllPatents)
	}
}
