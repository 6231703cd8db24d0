// Package formatters converts backend user fields for display in the web pages and the cli.
package formatters

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FormatStatus converts a backend status such as ONLINE to Online
func FormatStatus(status string) string {
	if status == "" {
		return "Unknown"
	}
	// a Caser keeps state and cannot be shared between requests
	return cases.Title(language.English).String(strings.ToLower(status))
}

// FormatDate converts an RFC3339 timestamp or YYYY-MM-DD date to YYYY-MM-DD, "Not set" when empty
func FormatDate(value string) string {
	if value == "" {
		return "Not set"
	}
	return NormalizeDate(value)
}

// NormalizeDate returns the YYYY-MM-DD form of an RFC3339 timestamp.
// Other values, including "", are returned unchanged.
func NormalizeDate(value string) string {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.Format(time.DateOnly)
	}
	return value
}
