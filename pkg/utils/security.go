package utils

import (
	"net/url"
	"strings"
)

// IsAllowedOrigin reports whether origin matches one of the configured patterns.
// Empty origins are never allowed.
func IsAllowedOrigin(origin string, allowedPatterns []string) bool {
	if origin == "" {
		return false
	}

	cleanOrigin := getCleanOrigin(origin)
	for _, pattern := range allowedPatterns {
		if MatchOrigin(cleanOrigin, pattern) {
			return true
		}
	}
	return false
}

func getCleanOrigin(originURL string) string {

	u, err := url.Parse(originURL)
	if err != nil {
		return originURL
	}

	if u.Scheme != "" && u.Host != "" {
		return u.Scheme + "://" + u.Host
	}

	return originURL
}

// MatchOrigin matches an origin against a single pattern:
//   - "*" accepts everything
//   - "https://**.example.com" accepts the main domain and any subdomain
//   - "https://*.example.com" accepts direct subdomains only
func MatchOrigin(origin, pattern string) bool {
	if pattern == "*" {
		return true
	}

	if origin == pattern {
		return true
	}

	if strings.Contains(pattern, "**.") {
		base := strings.Replace(pattern, "**.", "", 1) // "https://**.example.com" -> "https://example.com"
		if origin == base {
			return true
		}

		domainPart := removeProtocol(base)
		if strings.HasSuffix(origin, "."+domainPart) {
			return true
		}
		return false
	}

	if strings.Contains(pattern, "*.") {
		parts := strings.Split(pattern, "*")
		if len(parts) == 2 {
			prefix := parts[0] // "https://"
			suffix := parts[1] // ".example.com"

			if len(origin) > len(prefix)+len(suffix) &&
				strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
				middle := origin[len(prefix) : len(origin)-len(suffix)]
				if !strings.Contains(middle, "/") && !strings.Contains(middle, ".") {
					return true
				}
			}
		}
	}

	return false
}

func removeProtocol(urlStr string) string {
	urlStr = strings.TrimPrefix(urlStr, "https://")
	return strings.TrimPrefix(urlStr, "http://")
}
