package sentinel

import (
	"regexp"
	"strings"
)

// DeviceInfo is derived from the User-Agent header when a session is created.
type DeviceInfo struct {
	Browser   string `json:"browser"`
	OS        string `json:"os"`
	Device    string `json:"device"`
	IsMobile  bool   `json:"is_mobile"`
	IsTablet  bool   `json:"is_tablet"`
	IsDesktop bool   `json:"is_desktop"`
}

var mobileRe = regexp.MustCompile(`(?i)\b(mobile|iphone|ipod|windows phone|blackberry|opera mini)\b`)

// ParseUserAgent classifies a User-Agent string. Substring checks are
// deliberately ordered: Edge and Opera embed "Chrome", Chrome embeds
// "Safari", so the more specific token wins.
func ParseUserAgent(ua string) DeviceInfo {
	info := DeviceInfo{
		Browser: "Unknown",
		OS:      "Unknown",
		Device:  "desktop",
	}
	if ua == "" {
		info.IsDesktop = true
		return info
	}

	lower := strings.ToLower(ua)

	switch {
	case strings.Contains(lower, "edg/"), strings.Contains(lower, "edge"):
		info.Browser = "Edge"
	case strings.Contains(lower, "opr/"), strings.Contains(lower, "opera"):
		info.Browser = "Opera"
	case strings.Contains(lower, "chrome"):
		info.Browser = "Chrome"
	case strings.Contains(lower, "firefox"):
		info.Browser = "Firefox"
	case strings.Contains(lower, "safari"):
		info.Browser = "Safari"
	}

	switch {
	case strings.Contains(lower, "windows"):
		info.OS = "Windows"
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"), strings.Contains(lower, "ios"):
		info.OS = "iOS"
	case strings.Contains(lower, "mac os"), strings.Contains(lower, "macintosh"):
		info.OS = "macOS"
	case strings.Contains(lower, "android"):
		info.OS = "Android"
	case strings.Contains(lower, "linux"):
		info.OS = "Linux"
	}

	info.IsTablet = isTablet(lower)
	info.IsMobile = !info.IsTablet && mobileRe.MatchString(lower)
	info.IsDesktop = !info.IsMobile && !info.IsTablet

	switch {
	case info.IsTablet:
		info.Device = "tablet"
	case info.IsMobile:
		info.Device = "mobile"
	default:
		info.Device = "desktop"
	}

	return info
}

// Go's regexp has no lookahead, so the "android without mobile" case for
// tablets is handled here instead of in tabletRe.
func isTablet(lower string) bool {
	if strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet") ||
		strings.Contains(lower, "kindle") || strings.Contains(lower, "silk") ||
		strings.Contains(lower, "playbook") {
		return true
	}
	return strings.Contains(lower, "android") && !strings.Contains(lower, "mobile")
}
