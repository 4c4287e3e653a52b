// Package country maps free-text country names to ISO 3166-1 alpha-2 codes.
package country

import "strings"

// names is keyed by lowercase country name or common alias.
var names = map[string]string{
	"italy":                "IT",
	"france":               "FR",
	"germany":              "DE",
	"spain":                "ES",
	"portugal":             "PT",
	"greece":               "GR",
	"netherlands":          "NL",
	"belgium":              "BE",
	"austria":              "AT",
	"poland":               "PL",
	"romania":              "RO",
	"czech republic":       "CZ",
	"hungary":              "HU",
	"sweden":               "SE",
	"denmark":              "DK",
	"finland":              "FI",
	"norway":               "NO",
	"switzerland":          "CH",
	"ireland":              "IE",
	"united kingdom":       "GB",
	"united states":        "US",
	"usa":                  "US",
	"canada":               "CA",
	"australia":            "AU",
	"new zealand":          "NZ",
	"japan":                "JP",
	"south korea":          "KR",
	"singapore":            "SG",
	"united arab emirates": "AE",
	"saudi arabia":         "SA",
	"south africa":         "ZA",
	"brazil":               "BR",
	"mexico":               "MX",
	"argentina":            "AR",
	"chile":                "CL",
	"india":                "IN",
	"china":                "CN",
}

// Normalize trims and uppercases s. Tokens longer than two characters are
// looked up by name; unknown names are returned normalized but unmapped.
// Two-character tokens are treated as codes and never looked up.
func Normalize(s string) string {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	if len(normalized) > 2 {
		if code, ok := names[strings.ToLower(normalized)]; ok {
			return code
		}
	}
	return normalized
}
