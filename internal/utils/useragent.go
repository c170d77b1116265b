package utils

import (
	"fmt"

	ua "github.com/mssola/user_agent"
)

// SummarizeUserAgent condenses a User-Agent string into a short
// "Browser x.y on OS (mobile)" description for payment audit rows, so the
// audit table stays readable without storing full UA strings.
func SummarizeUserAgent(userAgent string) string {
	if userAgent == "" || userAgent == "Unknown" {
		return "unknown client"
	}

	parser := ua.New(userAgent)
	if parser.Bot() {
		return "bot"
	}

	browser, version := parser.Browser()
	if browser == "" {
		browser = "unknown browser"
	}
	osInfo := parser.OS()
	if osInfo == "" {
		osInfo = "unknown OS"
	}

	summary := browser
	if version != "" {
		summary = fmt.Sprintf("%s %s", browser, version)
	}
	summary = fmt.Sprintf("%s on %s", summary, osInfo)
	if parser.Mobile() {
		summary += " (mobile)"
	}
	return summary
}
