package pipeline

import (
	"github.com/pharmyrus/pharmyrus/internal/pubchem"
	"github.com/pharmyrus/pharmyrus/internal/sources"
	"github.com/pharmyrus/pharmyrus/internal/wipo"
)

const PipelineVersion = "3.1"

// Stage statuses recorded in debug info. "partial" and "no_results" are
// warnings; only "error" counts as a stage error.
const (
	StageSuccess   = "success"
	StagePartial   = "partial"
	StageNoResults = "no_results"
	StageError     = "error"
)

// StageMetric is one entry of the debug appendix: how a pipeline stage
// went, diagnostics only.
type StageMetric struct {
	Layer           string  `json:"layer"`
	Status          string  `json:"status"`
	DurationSeconds float64 `json:"duration_seconds"`
	DataPoints      int     `json:"data_points"`
	Details         string  `json:"details"`
}

type Jurisdictions struct {
	Brazil int `json:"brazil"`
	USA    int `json:"usa"`
	Europe int `json:"europe"`
	Japan  int `json:"japan"`
	China  int `json:"china"`
	WIPO   int `json:"wipo"`
}

type ExecutiveSummary struct {
	MoleculeName        string        `json:"molecule_name"`
	GenericName         string        `json:"generic_name"`
	CommercialName      string        `json:"commercial_name"`
	CASNumber           string        `json:"cas_number,omitempty"`
	DevCodes            []string      `json:"dev_codes"`
	TotalPatents        int           `json:"total_patents"`
	TotalFamilies       int           `json:"total_families"`
	Jurisdictions       Jurisdictions `json:"jurisdictions"`
	FDAStatus           string        `json:"fda_status"`
	ClinicalTrialsCount int           `json:"clinical_trials_count"`
	ConsistencyScore    int           `json:"consistency_score"`
}

type SearchStrategy struct {
	PipelineVersion    string            `json:"pipeline_version"`
	ExecutionMode      string            `json:"execution_mode"`
	LayersExecuted     []string          `json:"layers_executed"`
	TotalWOPatents     int               `json:"total_wo_patents"`
	WOPatentsProcessed int               `json:"wo_patents_processed"`
	CountryFilter      string            `json:"country_filter"`
	ParallelProcessing bool              `json:"parallel_processing"`
	Sources            map[string]string `json:"sources"`
}

// AggregatedPatent is one row of the merged all-sources patent list.
type AggregatedPatent struct {
	Number        string   `json:"number"`
	Type          string   `json:"type"`
	Title         string   `json:"title,omitempty"`
	Applicant     string   `json:"applicant,omitempty"`
	FilingDate    string   `json:"filing_date,omitempty"`
	Source        string   `json:"source"`
	WorldwideApps int      `json:"worldwide_apps,omitempty"`
	Countries     []string `json:"countries,omitempty"`
	Link          string   `json:"link,omitempty"`
}

type DebugInfo struct {
	TotalDurationSeconds float64            `json:"total_duration_seconds"`
	Layers               []StageMetric      `json:"layers"`
	Timings              map[string]float64 `json:"timings"`
	ErrorsCount          int                `json:"errors_count"`
	WarningsCount        int                `json:"warnings_count"`
	Errors               []string           `json:"errors"`
	Warnings             []string           `json:"warnings"`
}

// Report is the pipeline's complete result for one molecule.
type Report struct {
	ExecutiveSummary   ExecutiveSummary     `json:"executive_summary"`
	PubChemData        pubchem.Compound     `json:"pubchem_data"`
	SearchStrategy     SearchStrategy       `json:"search_strategy"`
	WOPatents          []wipo.PatentRecord  `json:"wo_patents"`
	BRPatentsINPI      []sources.BRPatent   `json:"br_patents_inpi"`
	AllPatents         []AggregatedPatent   `json:"all_patents"`
	FDAData            sources.FDAResult    `json:"fda_data"`
	ClinicalTrialsData sources.TrialsResult `json:"clinical_trials_data"`
	DebugInfo          DebugInfo            `json:"debug_info"`
	GeneratedAt        string               `json:"generated_at"`
}
