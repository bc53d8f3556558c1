package research

import (
	"net/url"
	"strings"
)

// NormalizeURL returns the form of raw used for deduplication: fragment
// dropped, scheme and host lower-cased, trailing slash trimmed. Unparseable
// or non-http urls yield "".
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	out := u.String()
	if u.RawQuery == "" {
		out = strings.TrimSuffix(out, "/")
	}
	return out
}

// DomainOf returns the lower-cased host of raw without a leading "www."
func DomainOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
