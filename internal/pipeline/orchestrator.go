package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/pharmyrus/pharmyrus/internal/discovery"
	"github.com/pharmyrus/pharmyrus/internal/pubchem"
	"github.com/pharmyrus/pharmyrus/internal/sources"
	"github.com/pharmyrus/pharmyrus/internal/wipo"
)

const DefaultLimit = 20

// Boundaries of the orchestrator, one per pipeline stage. The concrete
// clients satisfy these; tests substitute stubs.
type (
	CompoundLookup interface {
		Lookup(ctx context.Context, molecule string) pubchem.Compound
	}
	Discoverer interface {
		Discover(ctx context.Context, molecule string, aux discovery.Aux) discovery.Result
	}
	PatentFetcher interface {
		FetchAll(ctx context.Context, woNumbers []string) []wipo.PatentRecord
	}
	INPISearcher interface {
		Search(ctx context.Context, molecule string, devCodes []string) sources.INPIResult
	}
	FDALookup interface {
		Lookup(ctx context.Context, molecule string) sources.FDAResult
	}
	TrialsSearcher interface {
		Search(ctx context.Context, molecule string) sources.TrialsResult
	}
)

type Deps struct {
	Compounds CompoundLookup
	Discovery Discoverer
	Patents   PatentFetcher
	INPI      INPISearcher
	FDA       FDALookup
	Trials    TrialsSearcher
}

// Orchestrator runs the full aggregation pipeline. Every stage degrades
// independently; the only hard error is invalid input.
type Orchestrator struct {
	deps   Deps
	tracer trace.Tracer
	now    func() time.Time
}

func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{
		deps:   deps,
		tracer: otel.Tracer("pharmyrus/pipeline"),
		now:    time.Now,
	}
}

func (o *Orchestrator) Run(ctx context.Context, molecule, countryFilter string, limit int) (Report, error) {
	molecule = strings.TrimSpace(molecule)
	if molecule == "" {
		return Report{}, errors.New("molecule name is required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	countryFilter = strings.ToUpper(strings.TrimSpace(countryFilter))

	start := o.now()
	var metrics []StageMetric

	ctx, runSpan := o.tracer.Start(ctx, "pipeline.run")
	defer runSpan.End()

	// Stage 1: compound lookup.
	stageStart := o.now()
	compoundCtx, span := o.tracer.Start(ctx, "pipeline.pubchem")
	compound := o.deps.Compounds.Lookup(compoundCtx, molecule)
	span.End()
	pubchemDuration := o.since(stageStart)
	status := StageSuccess
	if compound.CID == 0 {
		status = StagePartial
	}
	metrics = append(metrics, StageMetric{
		Layer:           "Layer 1: PubChem",
		Status:          status,
		DurationSeconds: pubchemDuration,
		DataPoints:      len(compound.Synonyms),
		Details:         fmt.Sprintf("Found %d dev codes, %d synonyms", len(compound.DevCodes), len(compound.Synonyms)),
	})

	// Stage 2: WO discovery.
	stageStart = o.now()
	discoveryCtx, span := o.tracer.Start(ctx, "pipeline.discovery")
	discovered := o.deps.Discovery.Discover(discoveryCtx, molecule, discovery.Aux{
		DevCodes:  compound.DevCodes,
		CASNumber: compound.CASNumber,
	})
	span.End()
	discoveryDuration := o.since(stageStart)
	status = StageSuccess
	if len(discovered.Identifiers) == 0 {
		status = StageNoResults
	}
	metrics = append(metrics, StageMetric{
		Layer:           "Layer 2: WO Discovery",
		Status:          status,
		DurationSeconds: discoveryDuration,
		DataPoints:      len(discovered.Identifiers),
		Details:         fmt.Sprintf("Found %d WO patents from parallel queries", len(discovered.Identifiers)),
	})

	candidates := discovered.Identifiers
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	// Stages 3-6 run concurrently; each degrades on its own.
	stageStart = o.now()
	var (
		woPatents    []wipo.PatentRecord
		patentErrors []string
		inpiResult   sources.INPIResult
		fdaResult    sources.FDAResult
		trialsResult sources.TrialsResult
	)
	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fetchCtx, span := o.tracer.Start(groupCtx, "pipeline.patents")
		defer span.End()
		woPatents, patentErrors = o.fetchPatents(fetchCtx, candidates, countryFilter)
		return nil
	})
	g.Go(func() error {
		inpiCtx, span := o.tracer.Start(groupCtx, "pipeline.inpi")
		defer span.End()
		inpiResult = o.deps.INPI.Search(inpiCtx, molecule, capSlice(compound.DevCodes, 5))
		return nil
	})
	g.Go(func() error {
		fdaCtx, span := o.tracer.Start(groupCtx, "pipeline.fda")
		defer span.End()
		fdaResult = o.deps.FDA.Lookup(fdaCtx, molecule)
		return nil
	})
	g.Go(func() error {
		trialsCtx, span := o.tracer.Start(groupCtx, "pipeline.trials")
		defer span.End()
		trialsResult = o.deps.Trials.Search(trialsCtx, molecule)
		return nil
	})
	g.Wait()
	batchDuration := o.since(stageStart)

	metrics = append(metrics, patentStageMetric(woPatents, len(candidates), batchDuration))
	metrics = append(metrics, inpiStageMetric(inpiResult, batchDuration))
	metrics = append(metrics, fdaStageMetric(fdaResult, batchDuration))
	metrics = append(metrics, trialsStageMetric(trialsResult, batchDuration))

	allPatents := aggregatePatents(woPatents, inpiResult.BRPatents)
	totalDuration := o.since(start)

	report := Report{
		ExecutiveSummary:   buildExecutiveSummary(molecule, compound, allPatents, fdaResult, trialsResult),
		PubChemData:        compound,
		SearchStrategy:     buildSearchStrategy(discovered, len(candidates), countryFilter),
		WOPatents:          woPatents,
		BRPatentsINPI:      inpiResult.BRPatents,
		AllPatents:         allPatents,
		FDAData:            fdaResult,
		ClinicalTrialsData: trialsResult,
		DebugInfo:          buildDebugInfo(metrics, patentErrors, inpiResult.Errors, pubchemDuration, discoveryDuration, batchDuration, totalDuration),
		GeneratedAt:        o.now().UTC().Format(time.RFC3339),
	}
	log.Printf("pipeline done molecule=%s patents=%d duration=%.2fs", molecule, len(allPatents), totalDuration)
	return report, nil
}

// fetchPatents pulls the candidate records from the pool, drops terminal
// failures into the error list, and applies the country filter per
// record.
func (o *Orchestrator) fetchPatents(ctx context.Context, candidates []string, countryFilter string) ([]wipo.PatentRecord, []string) {
	if len(candidates) == 0 {
		return []wipo.PatentRecord{}, nil
	}
	records := o.deps.Patents.FetchAll(ctx, candidates)

	patents := make([]wipo.PatentRecord, 0, len(records))
	var errs []string
	for _, rec := range records {
		if rec.Failed() {
			errs = append(errs, rec.Publication+": "+rec.Error)
			continue
		}
		if countryFilter != "" {
			filtered := wipo.FilterByCountry(rec.WorldwideApplications, countryFilter)
			if len(filtered) == 0 {
				log.Printf("pipeline country_filter_skip wo=%s country=%s", rec.Publication, countryFilter)
				continue
			}
			rec.WorldwideApplications = filtered
			rec.FamilyCountries = wipo.FamilyCountries(filtered)
			rec.CountryFilterApplied = countryFilter
		}
		patents = append(patents, rec)
	}
	return patents, errs
}

func aggregatePatents(woPatents []wipo.PatentRecord, brPatents []sources.BRPatent) []AggregatedPatent {
	all := []AggregatedPatent{}
	seen := map[string]struct{}{}

	for _, rec := range woPatents {
		if rec.Publication == "" {
			continue
		}
		if _, dup := seen[rec.Publication]; dup {
			continue
		}
		seen[rec.Publication] = struct{}{}
		row := AggregatedPatent{
			Number:        rec.Publication,
			Type:          "WO",
			Source:        "wipo",
			WorldwideApps: rec.TotalApplications(),
			Countries:     rec.FamilyCountries,
		}
		if rec.Title != nil {
			row.Title = *rec.Title
		}
		if rec.Applicant != nil {
			row.Applicant = *rec.Applicant
		}
		if rec.Dates.Filing != nil {
			row.FilingDate = *rec.Dates.Filing
		}
		all = append(all, row)
	}

	for _, p := range brPatents {
		if p.Number == "" {
			continue
		}
		if _, dup := seen[p.Number]; dup {
			continue
		}
		seen[p.Number] = struct{}{}
		all = append(all, AggregatedPatent{
			Number:     p.Number,
			Type:       "BR",
			Title:      p.Title,
			FilingDate: p.FilingDate,
			Source:     "inpi",
			Link:       p.Link,
		})
	}
	return all
}

func buildExecutiveSummary(molecule string, compound pubchem.Compound, all []AggregatedPatent, fda sources.FDAResult, trials sources.TrialsResult) ExecutiveSummary {
	jurisdictions := Jurisdictions{}
	families := map[string]struct{}{}
	for _, p := range all {
		families[p.Number] = struct{}{}
		if p.Type == "BR" || contains(p.Countries, "BR") {
			jurisdictions.Brazil++
		}
		if contains(p.Countries, "US") {
			jurisdictions.USA++
		}
		if contains(p.Countries, "EP") {
			jurisdictions.Europe++
		}
		if contains(p.Countries, "JP") {
			jurisdictions.Japan++
		}
		if contains(p.Countries, "CN") {
			jurisdictions.China++
		}
		if p.Type == "WO" {
			jurisdictions.WIPO++
		}
	}

	consistency := 0
	if len(all) > 0 {
		consistency = 1
	}
	devCodes := compound.DevCodes
	if devCodes == nil {
		devCodes = []string{}
	}
	return ExecutiveSummary{
		MoleculeName:        molecule,
		GenericName:         truncate(compound.IUPACName, 100),
		CommercialName:      titleCase(molecule),
		CASNumber:           compound.CASNumber,
		DevCodes:            devCodes,
		TotalPatents:        len(all),
		TotalFamilies:       len(families),
		Jurisdictions:       jurisdictions,
		FDAStatus:           fda.ApprovalStatus,
		ClinicalTrialsCount: trials.TotalTrials,
		ConsistencyScore:    consistency,
	}
}

func buildSearchStrategy(discovered discovery.Result, processed int, countryFilter string) SearchStrategy {
	if countryFilter == "" {
		countryFilter = "ALL"
	}
	return SearchStrategy{
		PipelineVersion:    PipelineVersion,
		ExecutionMode:      "parallel_batch",
		LayersExecuted:     []string{"PubChem", "Google Patents", "WIPO", "INPI", "FDA", "ClinicalTrials"},
		TotalWOPatents:     len(discovered.Identifiers),
		WOPatentsProcessed: processed,
		CountryFilter:      countryFilter,
		ParallelProcessing: true,
		Sources: map[string]string{
			"pubchem":         "NIH PubChem API",
			"google_patents":  "SerpAPI Google Patents",
			"wipo":            "WIPO Patentscope Crawler (local)",
			"inpi":            "INPI Brasil API",
			"fda":             "FDA API",
			"clinical_trials": "ClinicalTrials.gov API v2",
		},
	}
}

func buildDebugInfo(metrics []StageMetric, patentErrors, inpiErrors []string, pubchemD, discoveryD, batchD, totalD float64) DebugInfo {
	info := DebugInfo{
		TotalDurationSeconds: totalD,
		Layers:               metrics,
		Timings: map[string]float64{
			"pubchem":        pubchemD,
			"wo_discovery":   discoveryD,
			"parallel_batch": batchD,
			"total":          totalD,
		},
		Errors:   []string{},
		Warnings: []string{},
	}
	info.Errors = append(info.Errors, patentErrors...)
	info.Warnings = append(info.Warnings, inpiErrors...)
	for _, m := range metrics {
		switch m.Status {
		case StageError:
			info.ErrorsCount++
		case StagePartial, StageNoResults:
			info.WarningsCount++
		}
	}
	return info
}

func patentStageMetric(patents []wipo.PatentRecord, processed int, duration float64) StageMetric {
	status := StageSuccess
	if len(patents) == 0 {
		status = StageNoResults
	}
	return StageMetric{
		Layer:           "Layer 3: Patent Details",
		Status:          status,
		DurationSeconds: duration,
		DataPoints:      len(patents),
		Details:         fmt.Sprintf("Processed %d WO patents with worldwide data", processed),
	}
}

func inpiStageMetric(result sources.INPIResult, duration float64) StageMetric {
	status := StageSuccess
	if len(result.BRPatents) == 0 {
		status = StageNoResults
	}
	return StageMetric{
		Layer:           "Layer 4: INPI Brasil",
		Status:          status,
		DurationSeconds: duration,
		DataPoints:      len(result.BRPatents),
		Details:         fmt.Sprintf("Found %d BR patents", len(result.BRPatents)),
	}
}

func fdaStageMetric(result sources.FDAResult, duration float64) StageMetric {
	status := StageSuccess
	if result.ApprovalStatus == sources.FDAError {
		status = StageError
	}
	return StageMetric{
		Layer:           "Layer 5: FDA",
		Status:          status,
		DurationSeconds: duration,
		DataPoints:      len(result.Applications),
		Details:         "FDA Status: " + result.ApprovalStatus,
	}
}

func trialsStageMetric(result sources.TrialsResult, duration float64) StageMetric {
	status := StageSuccess
	if result.TotalTrials == 0 {
		status = StageNoResults
	}
	return StageMetric{
		Layer:           "Layer 6: Clinical Trials",
		Status:          status,
		DurationSeconds: duration,
		DataPoints:      result.TotalTrials,
		Details:         fmt.Sprintf("Found %d clinical trials", result.TotalTrials),
	}
}

func (o *Orchestrator) since(t time.Time) float64 {
	return o.now().Sub(t).Seconds()
}

func capSlice(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func contains(items []string, v string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
