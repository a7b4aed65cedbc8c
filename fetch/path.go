package fetch

import (
	"net/url"
	"regexp"
	"strings"
)

// IDPlaceholder replaces long numeric identifiers in sanitized paths
const IDPlaceholder = "[id]"

var longNumericID = regexp.MustCompile(`[0-9]{13}`)

// SanitizePath derives the diagnostic form of a request URL: the escaped path with
// every run of 13 digits replaced by IDPlaceholder. The query string is dropped.
// When the URL cannot be parsed or its path is shorter than two characters the whole
// URL is sanitized instead. SanitizePath is idempotent.
//
// Input that already starts with "/" is taken as a path without parsing, so a path
// such as "//cdn.example.com/users" is not mistaken for a host on a second pass.
func SanitizePath(rawURL string) string {
	target := rawURL
	if strings.HasPrefix(rawURL, "/") {
		p := rawURL
		if i := strings.IndexAny(p, "?#"); i >= 0 {
			p = p[:i]
		}
		if len(p) >= 2 {
			target = p
		}
	} else if u, err := url.Parse(rawURL); err == nil {
		if p := u.EscapedPath(); len(p) >= 2 {
			target = p
		}
	}
	return longNumericID.ReplaceAllString(target, IDPlaceholder)
}
