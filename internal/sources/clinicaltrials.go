package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"
)

const (
	DefaultTrialsBaseURL = "https://clinicaltrials.gov/api/v2/studies"

	trialsPageSize  = 100
	maxTrialDetails = 20
)

type TrialsConfig struct {
	BaseURL    string
	HTTPClient *http.Client
}

// TrialsClient queries the trial registry's v2 API and aggregates the
// studies by phase and status.
type TrialsClient struct {
	cfg TrialsConfig
}

type TrialDetail struct {
	NCTID          string `json:"nct_id"`
	Title          string `json:"title"`
	Phase          string `json:"phase"`
	Status         string `json:"status"`
	Enrollment     int    `json:"enrollment"`
	StartDate      string `json:"start_date"`
	PrimarySponsor string `json:"primary_sponsor"`
}

type TrialsResult struct {
	TotalTrials  int            `json:"total_trials"`
	ByPhase      map[string]int `json:"by_phase"`
	ByStatus     map[string]int `json:"by_status"`
	Sponsors     []string       `json:"sponsors"`
	Countries    []string       `json:"countries"`
	TrialDetails []TrialDetail  `json:"trial_details"`
	Err          string         `json:"error,omitempty"`
}

type trialsResponse struct {
	Studies []struct {
		ProtocolSection struct {
			IdentificationModule struct {
				NCTID      string `json:"nctId"`
				BriefTitle string `json:"briefTitle"`
			} `json:"identificationModule"`
			StatusModule struct {
				OverallStatus  string `json:"overallStatus"`
				EnrollmentInfo struct {
					Count int `json:"count"`
				} `json:"enrollmentInfo"`
				StartDateStruct struct {
					Date string `json:"date"`
				} `json:"startDateStruct"`
			} `json:"statusModule"`
			DesignModule struct {
				Phases []string `json:"phases"`
			} `json:"designModule"`
			SponsorCollaboratorsModule struct {
				LeadSponsor struct {
					Name string `json:"name"`
				} `json:"leadSponsor"`
			} `json:"sponsorCollaboratorsModule"`
			ContactsLocationsModule struct {
				Locations []struct {
					Country string `json:"country"`
				} `json:"locations"`
			} `json:"contactsLocationsModule"`
		} `json:"protocolSection"`
	} `json:"studies"`
}

func NewTrialsClient(cfg TrialsConfig) *TrialsClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTrialsBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &TrialsClient{cfg: cfg}
}

// Search never returns an error; failures yield an empty result with Err
// set.
func (c *TrialsClient) Search(ctx context.Context, molecule string) TrialsResult {
	result := TrialsResult{
		ByPhase:      map[string]int{},
		ByStatus:     map[string]int{},
		Sponsors:     []string{},
		Countries:    []string{},
		TrialDetails: []TrialDetail{},
	}

	endpoint := c.cfg.BaseURL + "?query.term=" + url.QueryEscape(molecule) + fmt.Sprintf("&pageSize=%d", trialsPageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if res.StatusCode != http.StatusOK {
		result.Err = fmt.Sprintf("status code: %d", res.StatusCode)
		return result
	}

	var parsed trialsResponse
	if err := json.Unmarshal(b, &parsed); err != nil {
		result.Err = err.Error()
		return result
	}

	result.TotalTrials = len(parsed.Studies)
	sponsors := map[string]struct{}{}
	countries := map[string]struct{}{}

	studies := parsed.Studies
	if len(studies) > maxTrialDetails {
		studies = studies[:maxTrialDetails]
	}
	for _, study := range studies {
		proto := study.ProtocolSection

		phase := "Unknown"
		if len(proto.DesignModule.Phases) > 0 {
			phase = proto.DesignModule.Phases[0]
		}
		status := proto.StatusModule.OverallStatus
		if status == "" {
			status = "Unknown"
		}
		result.ByPhase[phase]++
		result.ByStatus[status]++

		if name := proto.SponsorCollaboratorsModule.LeadSponsor.Name; name != "" {
			sponsors[name] = struct{}{}
		}
		for _, loc := range proto.ContactsLocationsModule.Locations {
			if loc.Country != "" {
				countries[loc.Country] = struct{}{}
			}
		}

		result.TrialDetails = append(result.TrialDetails, TrialDetail{
			NCTID:          proto.IdentificationModule.NCTID,
			Title:          proto.IdentificationModule.BriefTitle,
			Phase:          phase,
			Status:         status,
			Enrollment:     proto.StatusModule.EnrollmentInfo.Count,
			StartDate:      proto.StatusModule.StartDateStruct.Date,
			PrimarySponsor: proto.SponsorCollaboratorsModule.LeadSponsor.Name,
		})
	}

	result.Sponsors = sortedKeys(sponsors)
	result.Countries = sortedKeys(countries)
	return result
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
