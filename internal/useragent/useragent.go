// Package useragent derives browser, OS and device class from a raw
// User-Agent header.
package useragent

import ua "github.com/mileusna/useragent"

const unknown = "Other"

type Attributes struct {
	Browser string
	OS      string
	Device  string
}

// Parse never fails; unrecognized parts come back as "Other".
func Parse(raw string) Attributes {
	parsed := ua.Parse(raw)

	attrs := Attributes{
		Browser: parsed.Name,
		OS:      parsed.OS,
		Device:  deviceClass(parsed),
	}
	if attrs.Browser == "" {
		attrs.Browser = unknown
	}
	if attrs.OS == "" {
		attrs.OS = unknown
	}
	return attrs
}

func deviceClass(parsed ua.UserAgent) string {
	switch {
	case parsed.Bot:
		return "Bot"
	case parsed.Mobile:
		return "Mobile"
	case parsed.Tablet:
		return "Tablet"
	case parsed.Desktop:
		return "Desktop"
	default:
		return unknown
	}
}
