package routing_test

import (
	"testing"

	"github.com/lusosms/dispatch-engine/internal/models"
	"github.com/lusosms/dispatch-engine/internal/routing"
)

var allCountries = []models.CountryCode{
	models.CountryAO, models.CountryMZ, models.CountryCV, models.CountryGW,
	models.CountryST, models.CountryTL, models.CountryPT, models.CountryBR,
	models.CountryUnknown,
}

var allOverrides = []models.GatewayOverride{
	models.OverrideNone, models.OverrideForceBulkSMS, models.OverrideForceMimo,
}

func TestSelectAlwaysReturnsDistinctGateways(t *testing.T) {
	for _, c := range allCountries {
		for _, ov := range allOverrides {
			primary, fallback := routing.Select(c, ov)
			if primary == fallback {
				t.Fatalf("Select(%s, %s) returned identical gateways %s", c, ov, primary)
			}
			if primary == "" || fallback == "" {
				t.Fatalf("Select(%s, %s) returned empty gateway", c, ov)
			}
		}
	}
}

func TestSelectPalopPrefersMimo(t *testing.T) {
	for _, c := range []models.CountryCode{
		models.CountryAO, models.CountryMZ, models.CountryCV,
		models.CountryGW, models.CountryST, models.CountryTL,
	} {
		primary, fallback := routing.Select(c, models.OverrideNone)
		if primary != models.GatewayMimo {
			t.Fatalf("expected mimo primary for %s, got %s", c, primary)
		}
		if fallback != models.GatewayBulkSMS {
			t.Fatalf("expected bulksms fallback for %s, got %s", c, fallback)
		}
	}
}

func TestSelectRestOfWorldPrefersBulkSMS(t *testing.T) {
	for _, c := range []models.CountryCode{models.CountryPT, models.CountryBR, models.CountryUnknown} {
		primary, fallback := routing.Select(c, models.OverrideNone)
		if primary != models.GatewayBulkSMS {
			t.Fatalf("expected bulksms primary for %s, got %s", c, primary)
		}
		if fallback != models.GatewayMimo {
			t.Fatalf("expected mimo fallback for %s, got %s", c, fallback)
		}
	}
}

func TestSelectOverrideBeatsCountryPolicy(t *testing.T) {
	primary, fallback := routing.Select(models.CountryAO, models.OverrideForceBulkSMS)
	if primary != models.GatewayBulkSMS || fallback != models.GatewayMimo {
		t.Fatalf("force_bulksms not honored for AO: primary=%s fallback=%s", primary, fallback)
	}

	primary, fallback = routing.Select(models.CountryPT, models.OverrideForceMimo)
	if primary != models.GatewayMimo || fallback != models.GatewayBulkSMS {
		t.Fatalf("force_mimo not honored for PT: primary=%s fallback=%s", primary, fallback)
	}
}
