// Package device derives a human-readable device name from a browser
// User-Agent string. The name is stored on registration sessions so the admin
// dashboard can show where an in-flight registration came from.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// ParseUserAgent returns a short display name like "Chrome on Mac OS X".
// Unknown or empty user agents collapse to a fixed placeholder.
func ParseUserAgent(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return "Unknown Device"
	}

	parsed := useragent.New(ua)
	browser, _ := parsed.Browser()
	os := parsed.OSInfo().Name

	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	case os != "":
		return os
	default:
		return "Unknown Device"
	}
}
