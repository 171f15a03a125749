package models

// CountryCode identifies the destination market of an outbound message.
// It is derived from the phone number at dispatch time and never stored on
// the message itself.
type CountryCode string

const (
	CountryAO CountryCode = "AO" // Angola
	CountryMZ CountryCode = "MZ" // Mozambique
	CountryCV CountryCode = "CV" // Cabo Verde
	CountryGW CountryCode = "GW" // Guinea-Bissau
	CountryST CountryCode = "ST" // Sao Tome and Principe
	CountryTL CountryCode = "TL" // Timor-Leste
	CountryPT CountryCode = "PT" // Portugal
	CountryBR CountryCode = "BR" // Brazil

	// CountryUnknown is returned when no dialing prefix matched. Dispatch
	// proceeds with the default gateway.
	CountryUnknown CountryCode = "UNKNOWN"
)

// String implements fmt.Stringer.
func (c CountryCode) String() string { return string(c) }
