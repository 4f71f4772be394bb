// Package address decomposes free-text Polish postal addresses.
//
// The whitelist registry sometimes returns addresses as a single line in the
// shape "<street> <number>[/<apartment>], <postal-code> <city>" instead of a
// structured object. Parsing is heuristic: when the line does not match, the
// raw text is preserved so nothing is lost downstream.
package address

import (
	"regexp"
	"strings"
)

// Address is a structured Polish postal address. Raw keeps the original line
// when heuristic parsing had to fall back.
type Address struct {
	Street          string `json:"street"`
	BuildingNumber  string `json:"building_number"`
	ApartmentNumber string `json:"apartment_number"`
	City            string `json:"city"`
	PostalCode      string `json:"postal_code"`
	Country         string `json:"country"`
	Raw             string `json:"raw_address,omitempty"`
}

// Both sources in this domain only ever report Polish addresses.
const country = "Polska"

var streetPrefixes = []string{"UL.", "AL.", "PL.", "BULW.", "OS.", "PARK.", "ROND."}

var (
	apartmentRe  = regexp.MustCompile(`(\d+)/(\d+)`)
	trailingNoRe = regexp.MustCompile(`\s+(\d+[A-Z]?)\s*$`)
	embeddedNoRe = regexp.MustCompile(`\b(\d+[A-Z]?)\b`)
	postalRe     = regexp.MustCompile(`\d{2}-\d{3}`)
	multiSpaceRe = regexp.MustCompile(`\s+`)
)

// Parse splits one free-text address line into structured fields. Inputs that
// do not contain exactly one comma come back as a fallback record with the
// whole line in Street and the raw text preserved.
func Parse(raw string) Address {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Address{Country: country}
	}

	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return fallback(raw)
	}
	streetPart := strings.TrimSpace(parts[0])
	cityPart := strings.TrimSpace(parts[1])
	if streetPart == "" || cityPart == "" {
		return fallback(raw)
	}

	addr := parseStreet(streetPart)
	addr.City, addr.PostalCode = parseCity(cityPart)
	addr.Country = country
	return addr
}

func fallback(raw string) Address {
	return Address{Street: raw, Country: country, Raw: raw}
}

func parseStreet(part string) Address {
	part = stripPrefix(part)

	// Building/apartment pair wins over any other number pattern.
	if m := apartmentRe.FindStringSubmatchIndex(part); m != nil {
		return Address{
			Street:          strings.TrimSpace(part[:m[0]]),
			BuildingNumber:  part[m[2]:m[3]],
			ApartmentNumber: part[m[4]:m[5]],
		}
	}

	if m := trailingNoRe.FindStringSubmatchIndex(part); m != nil {
		return Address{
			Street:         strings.TrimSpace(part[:m[0]]),
			BuildingNumber: part[m[2]:m[3]],
		}
	}

	// First embedded number wins when nothing matched at the end.
	if m := embeddedNoRe.FindStringSubmatch(part); m != nil {
		street := strings.Replace(part, m[1], "", 1)
		street = multiSpaceRe.ReplaceAllString(strings.TrimSpace(street), " ")
		return Address{
			Street:         street,
			BuildingNumber: m[1],
		}
	}

	return Address{Street: strings.TrimSpace(part)}
}

func parseCity(part string) (city, postalCode string) {
	if code := postalRe.FindString(part); code != "" {
		rest := strings.TrimSpace(strings.Replace(part, code, "", 1))
		return rest, code
	}
	return strings.TrimSpace(part), ""
}

func stripPrefix(part string) string {
	upper := strings.ToUpper(part)
	for _, prefix := range streetPrefixes {
		if strings.HasPrefix(upper, prefix+" ") {
			return strings.TrimSpace(part[len(prefix):])
		}
	}
	return part
}
