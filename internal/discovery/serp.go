package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultSerpBaseURL  = "https://serpapi.com"
	defaultResultsPer   = 10
	defaultQueryTimeout = 30 * time.Second
)

type SerpConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// SerpClient wraps the keyword-search backend. One call per query; the
// backend's organic results carry the text scanned for identifiers.
type SerpClient struct {
	cfg SerpConfig
}

type SearchItem struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

type searchResponse struct {
	OrganicResults []SearchItem `json:"organic_results"`
}

func NewSerpClient(cfg SerpConfig) (*SerpClient, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, errors.New("SERPAPI_API_KEY not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSerpBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultQueryTimeout}
	}
	return &SerpClient{cfg: cfg}, nil
}

func (c *SerpClient) Search(ctx context.Context, query string) ([]SearchItem, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("api_key", c.cfg.APIKey)
	params.Set("num", fmt.Sprintf("%d", defaultResultsPer))

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/search.json?" + params.Encode()
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
	var parsed searchResponse
	if err := json.Unmarshal(b, &parsed); err != nil {
		return nil, err
	}
	return parsed.OrganicResults, nil
}
