package canonicalization

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	numericSegmentPattern = regexp.MustCompile(`^\d+$`)
	uuidSegmentPattern    = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

// EndpointPath derives a normalized path from a raw request URL, replacing
// path segments that look like a numeric id or a UUID with placeholders so
// that "/users/42/orders/9f1b..." and "/users/17/orders/3ac2..." collapse to
// the same endpoint for aggregation: "/users/{id}/orders/{uuid}".
func EndpointPath(rawURL string) string {
	path := rawURL

	if parsed, err := url.Parse(rawURL); err == nil && parsed.Path != "" {
		path = parsed.Path
	}

	if path == "" {
		return "/"
	}

	segments := strings.Split(path, "/")
	for i, segment := range segments {
		switch {
		case segment == "":
			continue
		case uuidSegmentPattern.MatchString(segment):
			segments[i] = "{uuid}"
		case numericSegmentPattern.MatchString(segment):
			segments[i] = "{id}"
		}
	}

	return strings.Join(segments, "/")
}
