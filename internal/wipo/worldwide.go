package wipo

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Table matchers tried in priority order; the first one producing more than
// one row (header + at least one data row) wins.
var worldwideTableSelectors = []string{
	"table.national-phase-table tr",
	"div.national-phase tr",
	"table tr",
	".application-row",
}

var (
	countryCodeRe  = regexp.MustCompile(`^[A-Za-z]{2,3}$`)
	yearPrefixRe   = regexp.MustCompile(`^\d{4}`)
	twoLetterCodes = regexp.MustCompile(`^[A-Za-z]{2}$`)
)

// extractWorldwide parses the national-phase table from the post-click
// snapshot. Rows without a plausible 2-3 letter country code are discarded
// rather than stored malformed.
func extractWorldwide(doc *goquery.Document) map[string][]NationalApplication {
	worldwide := map[string][]NationalApplication{}
	if doc == nil {
		return worldwide
	}

	var rows *goquery.Selection
	for _, sel := range worldwideTableSelectors {
		candidate := doc.Find(sel)
		if candidate.Length() > 1 {
			rows = candidate
			break
		}
	}
	if rows == nil {
		return worldwide
	}

	rows.Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return // header
		}
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		filingDate := strings.TrimSpace(cells.Eq(0).Text())
		countryCode := strings.TrimSpace(cells.Eq(1).Text())
		appNumber := strings.TrimSpace(cells.Eq(2).Text())
		legalStatus := ""
		if cells.Length() > 3 {
			legalStatus = strings.TrimSpace(cells.Eq(3).Text())
		}

		if !countryCodeRe.MatchString(countryCode) {
			return
		}

		year := filingYear(filingDate)
		worldwide[year] = append(worldwide[year], NationalApplication{
			CountryCode:         strings.ToUpper(countryCode),
			ApplicationNumber:   appNumber,
			FilingDate:          filingDate,
			LegalStatus:         legalStatus,
			LegalStatusCategory: classifyLegalStatus(legalStatus),
		})
	})
	return worldwide
}

// extractCountrySweep is the degraded fallback used when the primary table
// is entirely absent: bare country-code elements elsewhere on the page
// become entries in the unknown-year bucket with no filing detail.
func extractCountrySweep(doc *goquery.Document) map[string][]NationalApplication {
	worldwide := map[string][]NationalApplication{}
	if doc == nil {
		return worldwide
	}
	doc.Find(".country-code, span[data-country]").Each(func(_ int, el *goquery.Selection) {
		country := strings.TrimSpace(el.Text())
		if !twoLetterCodes.MatchString(country) {
			return
		}
		worldwide[UnknownYear] = append(worldwide[UnknownYear], NationalApplication{
			CountryCode:         strings.ToUpper(country),
			LegalStatusCategory: StatusUnknown,
		})
	})
	return worldwide
}

// filingYear buckets by the leading 4-digit year of the filing date.
func filingYear(filingDate string) string {
	if y := yearPrefixRe.FindString(filingDate); y != "" {
		return y
	}
	return UnknownYear
}

var notActiveKeywords = []string{"lapse", "withdraw", "expire", "abandon", "refus", "revoke", "cease"}
var pendingKeywords = []string{"pending", "examination", "filed", "published", "entry"}

func classifyLegalStatus(legalStatus string) string {
	s := strings.ToLower(strings.TrimSpace(legalStatus))
	switch {
	case s == "":
		return StatusUnknown
	case strings.Contains(s, "grant") || strings.Contains(s, "active"):
		return StatusActive
	case containsAny(s, notActiveKeywords):
		return StatusNotActive
	case containsAny(s, pendingKeywords):
		return StatusPending
	}
	return StatusUnknown
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// FamilyCountries derives the sorted set of 2-letter jurisdiction codes
// from the worldwide applications. Always derived, never stored
// independently.
func FamilyCountries(worldwide map[string][]NationalApplication) []string {
	seen := map[string]struct{}{}
	for _, apps := range worldwide {
		for _, app := range apps {
			if twoLetterCodes.MatchString(app.CountryCode) {
				seen[app.CountryCode] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// FilterByCountry keeps only the entries for one country, dropping year
// buckets that become empty. The input map is not modified.
func FilterByCountry(worldwide map[string][]NationalApplication, country string) map[string][]NationalApplication {
	country = strings.ToUpper(strings.TrimSpace(country))
	filtered := map[string][]NationalApplication{}
	for year, apps := range worldwide {
		var keep []NationalApplication
		for _, app := range apps {
			if app.CountryCode == country {
				keep = append(keep, app)
			}
		}
		if len(keep) > 0 {
			filtered[year] = keep
		}
	}
	return filtered
}
