// Package cluster groups classified items into named clusters by normalized
// category and recomputes their aggregate statistics each run.
package cluster

import (
	"strings"
	"unicode"
)

// mapping is one keyword → canonical-cluster entry. The table is an ordered
// slice, not a map: ties between matching keywords are broken by longest
// keyword first, then table order, so normalization is deterministic.
type mapping struct {
	keyword string
	cluster string
}

var normalizationTable = []mapping{
	{"automation", "Automation & Workflows"},
	{"workflow", "Automation & Workflows"},
	{"integration", "Automation & Workflows"},
	{"invoice", "Billing & Payments"},
	{"billing", "Billing & Payments"},
	{"payment", "Billing & Payments"},
	{"accounting", "Billing & Payments"},
	{"marketing", "Marketing & Growth"},
	{"seo", "Marketing & Growth"},
	{"lead gen", "Marketing & Growth"},
	{"growth", "Marketing & Growth"},
	{"hiring", "Hiring & Talent"},
	{"recruit", "Hiring & Talent"},
	{"freelance", "Hiring & Talent"},
	{"talent", "Hiring & Talent"},
	{"data", "Data & Reporting"},
	{"analytics", "Data & Reporting"},
	{"report", "Data & Reporting"},
	{"dashboard", "Data & Reporting"},
	{"saas", "SaaS Operations"},
	{"subscription", "SaaS Operations"},
	{"churn", "SaaS Operations"},
	{"support", "Customer Support"},
	{"helpdesk", "Customer Support"},
	{"onboarding", "Customer Support"},
	{"ecommerce", "E-commerce"},
	{"e-commerce", "E-commerce"},
	{"shopify", "E-commerce"},
	{"inventory", "E-commerce"},
}

// Normalize maps a free-text category label to its canonical cluster name.
// Substring match over the table; the longest matching keyword wins, equal
// lengths fall back to table order. Labels matching nothing become their own
// capitalized singleton cluster.
func Normalize(label string) string {
	lower := strings.ToLower(strings.TrimSpace(label))
	if lower == "" {
		return "Uncategorized"
	}

	best := -1
	bestLen := 0
	for i, m := range normalizationTable {
		if strings.Contains(lower, m.keyword) && len(m.keyword) > bestLen {
			best = i
			bestLen = len(m.keyword)
		}
	}
	if best >= 0 {
		return normalizationTable[best].cluster
	}
	return capitalize(lower)
}

func capitalize(s string) string {
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
