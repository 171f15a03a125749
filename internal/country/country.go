package country

import (
	"strings"

	"github.com/lusosms/dispatch-engine/internal/models"
)

// prefixTable maps international dialing prefixes onto country codes. The
// table is ordered most specific first so three-digit prefixes are checked
// before the two-digit Brazilian one.
var prefixTable = []struct {
	prefix string
	code   models.CountryCode
}{
	{"+244", models.CountryAO},
	{"+258", models.CountryMZ},
	{"+238", models.CountryCV},
	{"+245", models.CountryGW},
	{"+239", models.CountryST},
	{"+670", models.CountryTL},
	{"+351", models.CountryPT},
	{"+55", models.CountryBR},
}

// Detect infers the destination country from a raw phone string. Numbers
// that match no known prefix resolve to CountryUnknown and are routed to
// the default gateway.
func Detect(phone string) models.CountryCode {
	normalized := Normalize(phone)
	if normalized == "" {
		return models.CountryUnknown
	}

	for _, entry := range prefixTable {
		if strings.HasPrefix(normalized, entry.prefix) {
			return entry.code
		}
	}

	// Nine bare digits starting with 9 is treated as an Angolan
	// local-format mobile. Several other markets share that shape, so
	// this can misclassify; kept for compatibility with the numbers the
	// contact importer already accepted.
	if isBareAngolanMobile(normalized) {
		return models.CountryAO
	}

	return models.CountryUnknown
}

// Normalize strips the separators users routinely paste into phone fields:
// whitespace, hyphens and parentheses.
func Normalize(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		switch r {
		case ' ', '\t', '-', '(', ')':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isBareAngolanMobile(normalized string) bool {
	if len(normalized) != 9 || normalized[0] != '9' {
		return false
	}
	for i := 0; i < len(normalized); i++ {
		if normalized[i] < '0' || normalized[i] > '9' {
			return false
		}
	}
	return true
}
