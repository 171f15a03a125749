package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lusosms/dispatch-engine/internal/country"
	"github.com/lusosms/dispatch-engine/internal/models"
)

// NormalizeDestination strips separators and enforces international
// format before any network call, so malformed numbers fail locally with a
// clear error instead of bouncing at the provider. Angolan local-format
// mobiles (nine digits starting with 9) get +244 prepended.
func NormalizeDestination(raw string, c models.CountryCode) (string, error) {
	to := country.Normalize(raw)
	if to == "" {
		return "", WrapPhoneFormat(errors.New("destination is empty"))
	}
	if !strings.HasPrefix(to, "+") {
		if c == models.CountryAO && len(to) == 9 && to[0] == '9' {
			to = "+244" + to
		} else {
			return "", WrapPhoneFormat(fmt.Errorf("destination %q is not in international format", raw))
		}
	}
	digits := to[1:]
	if len(digits) < 8 || len(digits) > 15 {
		return "", WrapPhoneFormat(fmt.Errorf("destination %q has an invalid length", raw))
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return "", WrapPhoneFormat(fmt.Errorf("destination %q contains non-digit characters", raw))
		}
	}
	return to, nil
}
