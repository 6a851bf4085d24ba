package wipo

import "strings"

var separatorReplacer = strings.NewReplacer(" ", "", "-", "", "/", "", ".", "")

// Normalize canonicalizes a free-form WO publication number: uppercase,
// separators stripped, WO prefix guaranteed. Normalizing an already
// canonical number returns it unchanged.
func Normalize(raw string) string {
	wo := separatorReplacer.Replace(strings.ToUpper(strings.TrimSpace(raw)))
	if !strings.HasPrefix(wo, "WO") {
		wo = "WO" + wo
	}
	return wo
}

// DetailURL is the Patentscope detail page for a canonical WO number.
func DetailURL(wo string) string {
	return PatentscopeBaseURL + "/search/en/detail.jsf?docId=" + wo
}
