package wipo

// Dates holds the three dates reported on a Patentscope detail page.
// A nil field means the date was not found, not that it is empty.
type Dates struct {
	Filing      *string `json:"filing"`
	Publication *string `json:"publication"`
	Priority    *string `json:"priority"`
}

// NationalApplication is one row of the worldwide-applications table:
// a national or regional filing descending from the WO publication.
type NationalApplication struct {
	CountryCode         string `json:"country_code"`
	ApplicationNumber   string `json:"application_number"`
	FilingDate          string `json:"filing_date"`
	LegalStatus         string `json:"legal_status"`
	LegalStatusCategory string `json:"legal_status_category"`
}

// Legal status categories derived from the free-text legal status.
const (
	StatusActive    = "active"
	StatusNotActive = "not_active"
	StatusPending   = "pending"
	StatusUnknown   = "unknown"
)

// UnknownYear is the bucket key for worldwide applications whose filing
// date does not start with a 4-digit year.
const UnknownYear = "unknown"

// ExtractionDebug records how an extraction went. Diagnostic only; it is
// never part of record identity.
type ExtractionDebug struct {
	SelectorsFound     []string `json:"selectors_found"`
	RevealSelector     string   `json:"reveal_selector,omitempty"`
	TotalWorldwideApps int      `json:"total_worldwide_apps"`
	CountriesFound     int      `json:"countries_found"`
	Attempts           int      `json:"attempts"`
	FinalError         string   `json:"final_error,omitempty"`
}

// PatentRecord is the extractor's result for one WO publication. The shape
// is identical on success and failure; a non-empty Error marks a failed
// fetch after exhausted retries.
type PatentRecord struct {
	Source                string                           `json:"source"`
	Publication           string                           `json:"publication"`
	Title                 *string                          `json:"title"`
	Abstract              *string                          `json:"abstract"`
	Applicant             *string                          `json:"applicant"`
	Dates                 Dates                            `json:"dates"`
	Inventors             []string                         `json:"inventors"`
	ClassificationCodes   []string                         `json:"cpc_ipc"`
	PDFLink               *string                          `json:"pdf_link"`
	WorldwideApplications map[string][]NationalApplication `json:"worldwide_applications"`
	FamilyCountries       []string                         `json:"family_countries"`
	CountryFilterApplied  string                           `json:"country_filter_applied,omitempty"`
	Error                 string                           `json:"error,omitempty"`
	Debug                 ExtractionDebug                  `json:"debug"`
}

// Failed reports whether the record is a terminal failure.
func (r PatentRecord) Failed() bool {
	return r.Error != ""
}

// TotalApplications counts entries across all year buckets.
func (r PatentRecord) TotalApplications() int {
	n := 0
	for _, apps := range r.WorldwideApplications {
		n += len(apps)
	}
	return n
}
