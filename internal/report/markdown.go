// Package report renders completed pipeline reports as markdown and PDF.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pharmyrus/pharmyrus/internal/pipeline"
)

func BuildReportMarkdown(r pipeline.Report) string {
	var b strings.Builder
	buildHeader(&b, r)
	buildExecutiveSummary(&b, r)
	buildCompoundSection(&b, r)
	buildWOPatentsTable(&b, r)
	buildBRPatentsTable(&b, r)
	buildFDASection(&b, r)
	buildTrialsSection(&b, r)
	buildDebugAppendix(&b, r)
	return b.String()
}

func buildHeader(b *strings.Builder, r pipeline.Report) {
	fmt.Fprintf(b, "# Patent Intelligence Report: %s\n\n", safe(r.ExecutiveSummary.MoleculeName))
	fmt.Fprintf(b, "- Generated: %s\n", safe(r.GeneratedAt))
	fmt.Fprintf(b, "- Pipeline version: %s\n", r.SearchStrategy.PipelineVersion)
	fmt.Fprintf(b, "- Country filter: %s\n\n", r.SearchStrategy.CountryFilter)
}

func buildExecutiveSummary(b *strings.Builder, r pipeline.Report) {
	s := r.ExecutiveSummary
	fmt.Fprintf(b, "## Executive Summary\n\n")
	fmt.Fprintf(b, "- Molecule: %s\n", safe(s.MoleculeName))
	if s.CASNumber != "" {
		fmt.Fprintf(b, "- CAS number: %s\n", s.CASNumber)
	}
	if len(s.DevCodes) > 0 {
		fmt.Fprintf(b, "- Development codes: %s\n", strings.Join(s.DevCodes, ", "))
	}
	fmt.Fprintf(b, "- Total patents: %d\n", s.TotalPatents)
	fmt.Fprintf(b, "- Total families: %d\n", s.TotalFamilies)
	fmt.Fprintf(b, "- FDA status: %s\n", safe(s.FDAStatus))
	fmt.Fprintf(b, "- Clinical trials: %d\n\n", s.ClinicalTrialsCount)

	fmt.Fprintf(b, "### Jurisdictions\n\n")
	fmt.Fprintf(b, "| Jurisdiction | Patents |\n|---|---:|\n")
	fmt.Fprintf(b, "| Brazil | %d |\n", s.Jurisdictions.Brazil)
	fmt.Fprintf(b, "| USA | %d |\n", s.Jurisdictions.USA)
	fmt.Fprintf(b, "| Europe | %d |\n", s.Jurisdictions.Europe)
	fmt.Fprintf(b, "| Japan | %d |\n", s.Jurisdictions.Japan)
	fmt.Fprintf(b, "| China | %d |\n", s.Jurisdictions.China)
	fmt.Fprintf(b, "| WIPO | %d |\n\n", s.Jurisdictions.WIPO)
}

func buildCompoundSection(b *strings.Builder, r pipeline.Report) {
	c := r.PubChemData
	if c.CID == 0 && c.MolecularFormula == "" {
		return
	}
	fmt.Fprintf(b, "## Compound\n\n")
	if c.CID != 0 {
		fmt.Fprintf(b, "- PubChem CID: %d\n", c.CID)
	}
	if c.MolecularFormula != "" {
		fmt.Fprintf(b, "- Molecular formula: %s\n", c.MolecularFormula)
	}
	if c.MolecularWeight != "" {
		fmt.Fprintf(b, "- Molecular weight: %s\n", c.MolecularWeight)
	}
	if c.InChIKey != "" {
		fmt.Fprintf(b, "- InChIKey: %s\n", c.InChIKey)
	}
	b.WriteString("\n")
}

func buildWOPatentsTable(b *strings.Builder, r pipeline.Report) {
	fmt.Fprintf(b, "## WO Patents\n\n")
	if len(r.WOPatents) == 0 {
		fmt.Fprintf(b, "No WO patents extracted.\n\n")
		return
	}
	fmt.Fprintf(b, "| Publication | Title | Applicant | Filing Date | Worldwide Apps | Countries |\n|---|---|---|---|---:|---|\n")
	for _, p := range r.WOPatents {
		fmt.Fprintf(b, "| [%s](%s) | %s | %s | %s | %d | %s |\n",
			p.Publication, detailURL(p.Publication),
			safe(deref(p.Title)), safe(deref(p.Applicant)), safe(deref(p.Dates.Filing)),
			p.TotalApplications(), strings.Join(p.FamilyCountries, ", "))
	}
	b.WriteString("\n")

	for _, p := range r.WOPatents {
		if p.TotalApplications() == 0 {
			continue
		}
		fmt.Fprintf(b, "### %s by filing year\n\n", p.Publication)
		years := make([]string, 0, len(p.WorldwideApplications))
		for y := range p.WorldwideApplications {
			years = append(years, y)
		}
		sort.Strings(years)
		for _, year := range years {
			for _, app := range p.WorldwideApplications[year] {
				fmt.Fprintf(b, "- %s: %s %s (%s)\n", year, app.CountryCode, safe(app.ApplicationNumber), app.LegalStatusCategory)
			}
		}
		b.WriteString("\n")
	}
}

func buildBRPatentsTable(b *strings.Builder, r pipeline.Report) {
	fmt.Fprintf(b, "## Direct BR Filings (INPI)\n\n")
	if len(r.BRPatentsINPI) == 0 {
		fmt.Fprintf(b, "No direct BR filings found.\n\n")
		return
	}
	fmt.Fprintf(b, "| Number | Applicant | Filing Date |\n|---|---|---|\n")
	for _, p := range r.BRPatentsINPI {
		fmt.Fprintf(b, "| [%s](%s) | %s | %s |\n", p.Number, p.Link, safe(p.Title), safe(p.FilingDate))
	}
	b.WriteString("\n")
}

func buildFDASection(b *strings.Builder, r pipeline.Report) {
	fmt.Fprintf(b, "## FDA\n\n")
	fmt.Fprintf(b, "- Approval status: %s\n", safe(r.FDAData.ApprovalStatus))
	fmt.Fprintf(b, "- Products: %d\n\n", r.FDAData.TotalProducts)
	if len(r.FDAData.Applications) == 0 {
		return
	}
	fmt.Fprintf(b, "| NDC | Brand | Labeler | Application |\n|---|---|---|---|\n")
	for _, a := range r.FDAData.Applications {
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n", safe(a.ProductNDC), safe(a.BrandName), safe(a.LabelerName), safe(a.ApplicationNumber))
	}
	b.WriteString("\n")
}

func buildTrialsSection(b *strings.Builder, r pipeline.Report) {
	t := r.ClinicalTrialsData
	fmt.Fprintf(b, "## Clinical Trials\n\n")
	fmt.Fprintf(b, "- Total trials: %d\n", t.TotalTrials)
	if len(t.Sponsors) > 0 {
		fmt.Fprintf(b, "- Sponsors: %s\n", strings.Join(t.Sponsors, ", "))
	}
	if len(t.Countries) > 0 {
		fmt.Fprintf(b, "- Countries: %s\n", strings.Join(t.Countries, ", "))
	}
	b.WriteString("\n")
	if len(t.TrialDetails) == 0 {
		return
	}
	fmt.Fprintf(b, "| NCT ID | Title | Phase | Status | Enrollment |\n|---|---|---|---|---:|\n")
	for _, d := range t.TrialDetails {
		fmt.Fprintf(b, "| %s | %s | %s | %s | %d |\n", safe(d.NCTID), safe(d.Title), safe(d.Phase), safe(d.Status), d.Enrollment)
	}
	b.WriteString("\n")
}

func buildDebugAppendix(b *strings.Builder, r pipeline.Report) {
	fmt.Fprintf(b, "## Pipeline Diagnostics\n\n")
	fmt.Fprintf(b, "- Total duration: %.2fs\n", r.DebugInfo.TotalDurationSeconds)
	fmt.Fprintf(b, "- Errors: %d, warnings: %d\n\n", r.DebugInfo.ErrorsCount, r.DebugInfo.WarningsCount)
	fmt.Fprintf(b, "| Layer | Status | Duration (s) | Data Points |\n|---|---|---:|---:|\n")
	for _, m := range r.DebugInfo.Layers {
		fmt.Fprintf(b, "| %s | %s | %.2f | %d |\n", m.Layer, m.Status, m.DurationSeconds, m.DataPoints)
	}
	b.WriteString("\n")
	for _, e := range r.DebugInfo.Errors {
		fmt.Fprintf(b, "- Error: %s\n", e)
	}
	for _, w := range r.DebugInfo.Warnings {
		fmt.Fprintf(b, "- Warning: %s\n", w)
	}
}

func detailURL(publication string) string {
	return "https://patentscope.wipo.int/search/en/detail.jsf?docId=" + strings.TrimSpace(publication)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func safe(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(none)"
	}
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
