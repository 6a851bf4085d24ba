package wipo

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Patentscope markup is unstable and undocumented, so every field is
// extracted by an ordered list of strategies. The first strategy yielding a
// non-empty plausible value wins, independently per field, and the winning
// strategy name is recorded for diagnostics.
type fieldStrategy struct {
	name    string
	extract func(doc *goquery.Document) string
}

var titleStrategies = []fieldStrategy{
	{"title:h3.tab_title", textOf("h3.tab_title")},
	{"title:div.title", textOf("div.title")},
	{"title:h1.patent-title", textOf("h1.patent-title")},
	{"title:span.patentTitle", textOf("span.patentTitle")},
}

var abstractStrategies = []fieldStrategy{
	{"abstract:div.abstract", textOf("div.abstract")},
	{"abstract:div#abstract", textOf("div#abstract")},
	{"abstract:p.abstract-text", textOf("p.abstract-text")},
	{"abstract:div.description", textOf("div.description")},
}

var applicantStrategies = []fieldStrategy{
	{"applicant:label-cell", labelSibling("Applicant", "Applicants")},
	{"applicant:.applicantData", textOf(".applicantData")},
	{"applicant:div.applicant", textOf("div.applicant")},
	{"applicant:span.applicant-name", textOf("span.applicant-name")},
}

var dateLabels = map[string][]string{
	"filing":      {"Filing Date", "Application Date", "International Filing Date"},
	"publication": {"Publication Date", "International Publication Date"},
	"priority":    {"Priority Date", "Priority"},
}

// basicFields is the result of the per-field strategy pass over the
// rendered detail page.
type basicFields struct {
	Title     string
	Abstract  string
	Applicant string
	Dates     Dates
	Inventors []string
	Codes     []string
	PDFLink   string

	SelectorsFound []string
}

func extractBasicFields(doc *goquery.Document) basicFields {
	var out basicFields

	out.Title, out.SelectorsFound = runStrategies(doc, titleStrategies, out.SelectorsFound)
	if abstract, found := runStrategies(doc, abstractStrategies, out.SelectorsFound); abstract != "" {
		out.Abstract = truncateRunes(abstract, maxAbstractRunes)
		out.SelectorsFound = found
	}
	out.Applicant, out.SelectorsFound = runStrategies(doc, applicantStrategies, out.SelectorsFound)

	out.Dates = extractDates(doc, &out.SelectorsFound)
	out.Inventors = extractInventors(doc, &out.SelectorsFound)
	out.Codes = extractClassificationCodes(doc, &out.SelectorsFound)
	out.PDFLink = extractPDFLink(doc, &out.SelectorsFound)
	return out
}

func runStrategies(doc *goquery.Document, strategies []fieldStrategy, found []string) (string, []string) {
	for _, st := range strategies {
		if v := strings.TrimSpace(st.extract(doc)); v != "" {
			return v, append(found, st.name)
		}
	}
	return "", found
}

func textOf(selector string) func(*goquery.Document) string {
	return func(doc *goquery.Document) string {
		return strings.TrimSpace(doc.Find(selector).First().Text())
	}
}

// labelSibling finds a table cell whose text contains one of the labels and
// returns the text of the next cell. This matches the label/value table
// layout Patentscope uses for bibliographic data.
func labelSibling(labels ...string) func(*goquery.Document) string {
	return func(doc *goquery.Document) string {
		value := ""
		doc.Find("td, th").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
			txt := strings.TrimSpace(cell.Text())
			for _, label := range labels {
				if strings.Contains(txt, label) {
					if v := strings.TrimSpace(cell.NextFiltered("td").Text()); v != "" {
						value = v
						return false
					}
				}
			}
			return true
		})
		return value
	}
}

// extractDates scans table rows for known date labels; a row matches when
// its text contains the label and its second cell looks like a date
// (at least 8 characters, trimmed to 10).
func extractDates(doc *goquery.Document, found *[]string) Dates {
	var dates Dates
	targets := map[string]**string{}
	targets["filing"] = &dates.Filing
	targets["publication"] = &dates.Publication
	targets["priority"] = &dates.Priority

	rows := doc.Find("tr")
	for _, dateType := range []string{"filing", "publication", "priority"} {
		for _, label := range dateLabels[dateType] {
			var value string
			rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
				if !strings.Contains(row.Text(), label) {
					return true
				}
				cells := row.Find("td")
				if cells.Length() < 2 {
					return true
				}
				v := strings.TrimSpace(cells.Eq(1).Text())
				if len(v) < 8 {
					return true
				}
				value = truncateRunes(v, 10)
				return false
			})
			if value != "" {
				*targets[dateType] = &value
				*found = append(*found, "date_"+dateType+":"+label)
				break
			}
		}
	}
	return dates
}

var inventorSelectors = []string{".inventorData", "div.inventor"}

func extractInventors(doc *goquery.Document, found *[]string) []string {
	collect := func(sel *goquery.Selection) []string {
		var out []string
		seen := map[string]struct{}{}
		sel.Each(func(_ int, s *goquery.Selection) {
			raw := strings.ReplaceAll(s.Text(), ";", ",")
			for _, inv := range strings.Split(raw, ",") {
				inv = strings.TrimSpace(inv)
				if len(inv) <= 2 || len(out) >= maxInventors {
					continue
				}
				if _, dup := seen[inv]; dup {
					continue
				}
				seen[inv] = struct{}{}
				out = append(out, inv)
			}
		})
		return out
	}

	// Label-cell layout first, then the class-based fallbacks.
	if cells := labelValueCells(doc, "Inventor", "Inventors"); cells != nil {
		if inventors := collect(cells); len(inventors) > 0 {
			*found = append(*found, "inventors:label-cell")
			return inventors
		}
	}
	for _, sel := range inventorSelectors {
		if inventors := collect(doc.Find(sel)); len(inventors) > 0 {
			*found = append(*found, "inventors:"+sel)
			return inventors
		}
	}
	return nil
}

// labelValueCells returns every value cell adjacent to a label cell
// containing one of the given labels, or nil when none match.
func labelValueCells(doc *goquery.Document, labels ...string) *goquery.Selection {
	var matched *goquery.Selection
	doc.Find("td").Each(func(_ int, cell *goquery.Selection) {
		txt := strings.TrimSpace(cell.Text())
		for _, label := range labels {
			if strings.Contains(txt, label) {
				next := cell.NextFiltered("td")
				if next.Length() == 0 {
					continue
				}
				if matched == nil {
					matched = next
				} else {
					matched = matched.AddSelection(next)
				}
			}
		}
	})
	return matched
}

func extractClassificationCodes(doc *goquery.Document, found *[]string) []string {
	var codes []string
	seen := map[string]struct{}{}
	add := func(s *goquery.Selection) {
		s.Each(func(_ int, el *goquery.Selection) {
			txt := strings.TrimSpace(el.Text())
			if txt == "" || len(txt) >= 50 || len(codes) >= maxClassCodes {
				return
			}
			if _, dup := seen[txt]; dup {
				return
			}
			seen[txt] = struct{}{}
			codes = append(codes, txt)
		})
	}
	add(doc.Find(".cpc, .ipc"))
	if cells := labelValueCells(doc, "IPC"); cells != nil {
		add(cells)
	}
	if len(codes) > 0 {
		*found = append(*found, "cpc_ipc:found")
	}
	return codes
}

func extractPDFLink(doc *goquery.Document, found *[]string) string {
	href, ok := doc.Find(`a[href*="pdf"]`).First().Attr("href")
	if !ok {
		doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if strings.Contains(strings.ToUpper(a.Text()), "PDF") {
				href, ok = a.Attr("href")
				return !ok
			}
			return true
		})
	}
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if !strings.HasPrefix(href, "http") {
		href = PatentscopeBaseURL + href
	}
	*found = append(*found, "pdf:found")
	return href
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
