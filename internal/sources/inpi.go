// Package sources holds the auxiliary data clients the pipeline fans out
// to alongside patent extraction: the Brazilian national office, the FDA
// drug registry, and the clinical trials registry. Every client degrades
// to a placeholder result instead of failing the pipeline.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultINPIBaseURL = "https://crawler3-production.up.railway.app/api/data/inpi/patents"

	inpiDetailURL   = "https://busca.inpi.gov.br/pePI/servlet/PatenteServletController?Action=detail&CodPedido="
	maxINPIQueries  = 6 // molecule + up to 5 dev codes
	inpiHTTPTimeout = 60 * time.Second
)

type INPIConfig struct {
	BaseURL    string
	HTTPClient *http.Client
}

// INPIClient queries the Brazilian office for direct national filings
// that never pass through the WO route.
type INPIClient struct {
	cfg INPIConfig
}

type BRPatent struct {
	Number     string `json:"number"`
	Title      string `json:"title"`
	FilingDate string `json:"filing_date"`
	Source     string `json:"source"`
	Link       string `json:"link"`
}

type INPIResult struct {
	BRPatents []BRPatent `json:"br_patents"`
	Errors    []string   `json:"errors"`
}

type inpiResponse struct {
	Data []struct {
		Title       string `json:"title"`
		Applicant   string `json:"applicant"`
		DepositDate string `json:"depositDate"`
	} `json:"data"`
}

func NewINPIClient(cfg INPIConfig) *INPIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultINPIBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: inpiHTTPTimeout}
	}
	return &INPIClient{cfg: cfg}
}

// Search runs one query per term (molecule first, then dev codes) and
// keeps only rows whose title carries a BR filing number. Per-query
// failures are collected, not propagated.
func (c *INPIClient) Search(ctx context.Context, molecule string, devCodes []string) INPIResult {
	result := INPIResult{BRPatents: []BRPatent{}, Errors: []string{}}

	queries := []string{molecule}
	for _, code := range devCodes {
		if len(queries) >= maxINPIQueries {
			break
		}
		queries = append(queries, code)
	}

	for _, query := range queries {
		patents, err := c.searchOne(ctx, query)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("INPI %s: %v", query, err))
			continue
		}
		result.BRPatents = append(result.BRPatents, patents...)
	}
	return result
}

func (c *INPIClient) searchOne(ctx context.Context, query string) ([]BRPatent, error) {
	endpoint := c.cfg.BaseURL + "?medicine=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<20))
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status code: %d", res.StatusCode)
	}

	var parsed inpiResponse
	if err := json.Unmarshal(b, &parsed); err != nil {
		return nil, err
	}

	var patents []BRPatent
	for _, row := range parsed.Data {
		if !strings.HasPrefix(row.Title, "BR") {
			continue
		}
		patents = append(patents, BRPatent{
			Number:     strings.ReplaceAll(row.Title, " ", "-"),
			Title:      row.Applicant,
			FilingDate: row.DepositDate,
			Source:     "inpi_direct",
			Link:       inpiDetailURL + row.Title,
		})
	}
	return patents, nil
}
