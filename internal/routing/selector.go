// Package routing chooses the primary and fallback gateway for a dispatch.
package routing

import "github.com/lusosms/dispatch-engine/internal/models"

// palop is the set of Portuguese-speaking markets with preferential mimo
// routing; mimo terminates traffic there directly while bulksms relays it.
var palop = map[models.CountryCode]struct{}{
	models.CountryAO: {},
	models.CountryMZ: {},
	models.CountryCV: {},
	models.CountryGW: {},
	models.CountryST: {},
	models.CountryTL: {},
}

// Select returns the primary and fallback gateway for the supplied country,
// honoring the administrative override. The two identifiers are always
// distinct: whichever gateway is not primary becomes the fallback.
func Select(country models.CountryCode, override models.GatewayOverride) (primary, fallback models.GatewayID) {
	switch override {
	case models.OverrideForceBulkSMS:
		return models.GatewayBulkSMS, models.GatewayMimo
	case models.OverrideForceMimo:
		return models.GatewayMimo, models.GatewayBulkSMS
	}

	if _, ok := palop[country]; ok {
		return models.GatewayMimo, models.GatewayBulkSMS
	}
	return models.GatewayBulkSMS, models.GatewayMimo
}
