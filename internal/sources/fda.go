package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultFDABaseURL = "https://api.fda.gov/drug"

	maxFDAApplications = 10
)

// Approval statuses reported by the FDA lookup.
const (
	FDAApproved = "Approved"
	FDANotFound = "Not Found"
	FDAError    = "Error"
)

type FDAConfig struct {
	BaseURL    string
	HTTPClient *http.Client
}

// FDAClient checks the national drug code registry for marketed products
// of the molecule.
type FDAClient struct {
	cfg FDAConfig
}

type FDAApplication struct {
	ProductNDC        string   `json:"product_ndc"`
	BrandName         string   `json:"brand_name"`
	GenericName       string   `json:"generic_name"`
	LabelerName       string   `json:"labeler_name"`
	DosageForm        string   `json:"dosage_form"`
	Route             []string `json:"route"`
	MarketingCategory string   `json:"marketing_category"`
	ApplicationNumber string   `json:"application_number"`
}

type FDAResult struct {
	ApprovalStatus string           `json:"approval_status"`
	Applications   []FDAApplication `json:"applications"`
	TotalProducts  int              `json:"total_products"`
	Err            string           `json:"error,omitempty"`
}

type fdaResponse struct {
	Results []FDAApplication `json:"results"`
}

func NewFDAClient(cfg FDAConfig) *FDAClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultFDABaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &FDAClient{cfg: cfg}
}

// Lookup never returns an error; network or decode failures yield the
// Error status with detail attached.
func (c *FDAClient) Lookup(ctx context.Context, molecule string) FDAResult {
	endpoint := c.cfg.BaseURL + "/ndc.json?search=" + url.QueryEscape(`generic_name:"`+molecule+`"`)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fdaError(err)
	}
	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fdaError(err)
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<20))

	// The registry answers 404 for molecules with no marketed product.
	if res.StatusCode == http.StatusNotFound {
		return FDAResult{ApprovalStatus: FDANotFound, Applications: []FDAApplication{}}
	}
	if res.StatusCode != http.StatusOK {
		return fdaError(fmt.Errorf("status code: %d", res.StatusCode))
	}

	var parsed fdaResponse
	if err := json.Unmarshal(b, &parsed); err != nil {
		return fdaError(err)
	}

	applications := parsed.Results
	if len(applications) > maxFDAApplications {
		applications = applications[:maxFDAApplications]
	}
	status := FDANotFound
	if len(applications) > 0 {
		status = FDAApproved
	}
	if applications == nil {
		applications = []FDAApplication{}
	}
	return FDAResult{
		ApprovalStatus: status,
		Applications:   applications,
		TotalProducts:  len(parsed.Results),
	}
}

func fdaError(err error) FDAResult {
	return FDAResult{ApprovalStatus: FDAError, Applications: []FDAApplication{}, Err: err.Error()}
}
