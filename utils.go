package stremio

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ParseExtras parses the extras path segment of a catalog request, like "search=The%20Matrix.json" or "genre=Drama&skip=100".
func ParseExtras(segment string) (url.Values, error) {
	segment = strings.TrimSuffix(segment, ".json")
	if segment == "" {
		return url.Values{}, nil
	}
	return url.ParseQuery(segment)
}

func createCacheHeader(cacheAge time.Duration, cachePublic bool) string {
	if cacheAge == 0 {
		return ""
	}
	cacheHeaderVal := "max-age=" + strconv.FormatFloat(cacheAge.Seconds(), 'f', 0, 64)
	if cachePublic {
		cacheHeaderVal += ", public"
	} else {
		cacheHeaderVal += ", private"
	}
	return cacheHeaderVal
}
