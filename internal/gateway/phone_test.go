package gateway_test

import (
	"errors"
	"testing"

	"github.com/lusosms/dispatch-engine/internal/gateway"
	"github.com/lusosms/dispatch-engine/internal/models"
)

func TestNormalizeDestinationStripsSeparators(t *testing.T) {
	got, err := gateway.NormalizeDestination("+244 923-456-789", models.CountryAO)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "+244923456789" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeDestinationPrependsAngolanCountryCode(t *testing.T) {
	got, err := gateway.NormalizeDestination("923456789", models.CountryAO)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "+244923456789" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeDestinationRejectsMalformedNumbers(t *testing.T) {
	cases := []struct {
		raw     string
		country models.CountryCode
	}{
		{"", models.CountryAO},
		{"912345678", models.CountryPT},     // local format outside AO
		{"+244abc456789", models.CountryAO}, // non-digits
		{"+2449", models.CountryAO},         // too short
		{"+2449234567890123456", models.CountryAO},
	}

	for _, tc := range cases {
		if _, err := gateway.NormalizeDestination(tc.raw, tc.country); !errors.Is(err, gateway.ErrPhoneFormat) {
			t.Fatalf("NormalizeDestination(%q, %s): expected phone format error, got %v", tc.raw, tc.country, err)
		}
	}
}
