package pubchem

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://pubchem.ncbi.nlm.nih.gov/rest/pug"

	maxSynonyms = 50
	maxDevCodes = 20
	// Only the leading synonyms are worth scanning; the tail is noise.
	synonymScanWindow = 100
)

var (
	// Development codes look like ODM-201, BAY1841788, MK-7264.
	devCodeRe = regexp.MustCompile(`(?i)^[A-Z]{2,5}-?\d{3,7}[A-Z]?$`)
	casRe     = regexp.MustCompile(`^\d{2,7}-\d{2}-\d$`)
)

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Client looks a molecule up in the public compound database. The lookup
// feeds discovery (dev codes) and the report (identity and properties).
type Client struct {
	cfg Config
}

// Compound is the lookup result. A zero Compound with Err set records a
// degraded lookup; the pipeline continues without it.
type Compound struct {
	CID              int64    `json:"cid,omitempty"`
	Synonyms         []string `json:"synonyms"`
	DevCodes         []string `json:"dev_codes"`
	CASNumber        string   `json:"cas_number,omitempty"`
	MolecularFormula string   `json:"molecular_formula,omitempty"`
	MolecularWeight  string   `json:"molecular_weight,omitempty"`
	IUPACName        string   `json:"iupac_name,omitempty"`
	CanonicalSMILES  string   `json:"canonical_smiles,omitempty"`
	InChI            string   `json:"inchi,omitempty"`
	InChIKey         string   `json:"inchi_key,omitempty"`
	Err              string   `json:"error,omitempty"`
}

type synonymsResponse struct {
	InformationList struct {
		Information []struct {
			Synonym []string `json:"Synonym"`
		} `json:"Information"`
	} `json:"InformationList"`
}

type propertiesResponse struct {
	PropertyTable struct {
		Properties []struct {
			CID              int64           `json:"CID"`
			MolecularFormula string          `json:"MolecularFormula"`
			MolecularWeight  json.RawMessage `json:"MolecularWeight"`
			IUPACName        string          `json:"IUPACName"`
			CanonicalSMILES  string          `json:"CanonicalSMILES"`
			InChI            string          `json:"InChI"`
			InChIKey         string          `json:"InChIKey"`
		} `json:"Properties"`
	} `json:"PropertyTable"`
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg}
}

// Lookup never returns an error: a failed lookup yields a Compound with
// Err set and empty collections, which the pipeline treats as a degraded
// stage.
func (c *Client) Lookup(ctx context.Context, molecule string) Compound {
	compound := Compound{Synonyms: []string{}, DevCodes: []string{}}

	synonyms, err := c.fetchSynonyms(ctx, molecule)
	if err != nil {
		log.Printf("pubchem lookup_failed molecule=%s err=%v", molecule, err)
		compound.Err = err.Error()
		return compound
	}

	window := synonyms
	if len(window) > synonymScanWindow {
		window = window[:synonymScanWindow]
	}
	for _, syn := range window {
		if devCodeRe.MatchString(syn) && len(compound.DevCodes) < maxDevCodes {
			compound.DevCodes = append(compound.DevCodes, syn)
		}
		if compound.CASNumber == "" && casRe.MatchString(syn) {
			compound.CASNumber = syn
		}
	}
	if len(synonyms) > maxSynonyms {
		synonyms = synonyms[:maxSynonyms]
	}
	compound.Synonyms = synonyms

	// Properties are best-effort; synonyms alone are enough to proceed.
	if err := c.fetchProperties(ctx, molecule, &compound); err != nil {
		log.Printf("pubchem properties_failed molecule=%s err=%v", molecule, err)
	}
	log.Printf("pubchem lookup_ok molecule=%s synonyms=%d dev_codes=%d cas=%q",
		molecule, len(compound.Synonyms), len(compound.DevCodes), compound.CASNumber)
	return compound
}

func (c *Client) fetchSynonyms(ctx context.Context, molecule string) ([]string, error) {
	endpoint := c.cfg.BaseURL + "/compound/name/" + url.PathEscape(molecule) + "/synonyms/JSON"
	var parsed synonymsResponse
	if err := c.getJSON(ctx, endpoint, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.InformationList.Information) == 0 {
		return nil, fmt.Errorf("compound not found: %s", molecule)
	}
	return parsed.InformationList.Information[0].Synonym, nil
}

func (c *Client) fetchProperties(ctx context.Context, molecule string, compound *Compound) error {
	endpoint := c.cfg.BaseURL + "/compound/name/" + url.PathEscape(molecule) +
		"/property/MolecularFormula,MolecularWeight,IUPACName,CanonicalSMILES,InChI,InChIKey/JSON"
	var parsed propertiesResponse
	if err := c.getJSON(ctx, endpoint, &parsed); err != nil {
		return err
	}
	if len(parsed.PropertyTable.Properties) == 0 {
		return nil
	}
	props := parsed.PropertyTable.Properties[0]
	compound.CID = props.CID
	compound.MolecularFormula = props.MolecularFormula
	compound.MolecularWeight = strings.Trim(string(props.MolecularWeight), `"`)
	compound.IUPACName = props.IUPACName
	compound.CanonicalSMILES = props.CanonicalSMILES
	compound.InChI = props.InChI
	compound.InChIKey = props.InChIKey
	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<20))
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("status code: %d", res.StatusCode)
	}
	return json.Unmarshal(b, out)
}
