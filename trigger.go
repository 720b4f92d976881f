package main

import (
	"regexp"
	"strings"
)

// Words that make a message worth sending to the classifier: product nouns
// and request/confirmation verbs. Biased toward recall; a false positive
// costs one cheap classification call, a false negative loses a sale.
var triggerKeywords = []string{
	"agua", "bidon", "bidón", "recarga", "botellon", "botellón",
	"pedido", "confirmado", "listo",
}

// Implicit-order pattern: a 3-4 digit number next to a unit/address token,
// in either order ("al 1201", "depto 304", "1201 torre b").
var unitBeforeNumberRegex = regexp.MustCompile(`\b(al|depto|dpto|apto|casa|torre|oficina|piso)\.?\s*#?\d{3,4}\b`)
var numberBeforeUnitRegex = regexp.MustCompile(`\b\d{3,4}\s*(al|depto|dpto|apto|casa|torre|oficina|piso)\b`)

// IsPotentialSale is the cheap pre-filter deciding whether a message is
// worth escalating to the classifier. Input must already be lowercased.
func IsPotentialSale(textLower string) bool {
	for _, kw := range triggerKeywords {
		if strings.Contains(textLower, kw) {
			return true
		}
	}
	return unitBeforeNumberRegex.MatchString(textLower) || numberBeforeUnitRegex.MatchString(textLower)
}
