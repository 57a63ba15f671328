package router

import (
	"net/url"
	"strings"

	"github.com/saiset-co/sai-router/types"
)

// ParamMarker starts a named segment in a route pattern, as in /users/:id.
const ParamMarker = ':'

// SplitPath splits a path on '/', dropping surrounding slashes and empty
// segments.
func SplitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return []string{}
	}

	parts := strings.Split(path, "/")
	segments := parts[:0]
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}

	return segments
}

// MatchExact compares a canonical method and a raw path with a route
// literally.
func MatchExact(method, path, routeMethod, routePath string) bool {
	return strings.ToUpper(method) == routeMethod && path == routePath
}

// MatchPattern matches a raw request path against a pattern with named
// segments. Bound values are percent-decoded; a repeated name keeps the
// last value.
func MatchPattern(pattern, path string) (*types.Params, bool) {
	patternSegments := SplitPath(pattern)
	pathSegments := SplitPath(path)

	if len(patternSegments) != len(pathSegments) {
		return nil, false
	}

	params := types.NewParams()

	for i, segment := range patternSegments {
		if len(segment) > 0 && segment[0] == ParamMarker {
			params.Set(segment[1:], decodeSegment(pathSegments[i]))
			continue
		}

		if segment != pathSegments[i] {
			return nil, false
		}
	}

	return params, true
}

func decodeSegment(segment string) string {
	decoded, err := url.QueryUnescape(segment)
	if err != nil {
		return segment
	}
	return decoded
}
