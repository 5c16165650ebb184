package playlist

import (
	"net/url"
	"path"
	"strings"
)

// ContentType partitions a stream URL into the system's content-type
// taxonomy. It mirrors catalog.ContentType's string values without
// importing internal/catalog, keeping the classifier a pure leaf package.
type ContentType string

const (
	Live   ContentType = "live"
	VOD    ContentType = "vod"
	Series ContentType = "series"
)

var vodExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".wmv": true,
	".flv": true, ".webm": true, ".m4v": true, ".mpg": true, ".mpeg": true, ".3gp": true,
}

var liveExtensions = map[string]bool{
	".ts": true, ".m3u8": true, ".m2ts": true, ".mts": true,
}

// Classify is a pure function of the stream URL (§4.2): it never
// considers any other field, so the same URL always yields the same
// content type.
func Classify(streamURL string) ContentType {
	segments, query := pathSegmentsAndQuery(streamURL)

	for _, seg := range segments {
		switch strings.ToLower(seg) {
		case "live":
			return Live
		case "series":
			return Series
		case "movie", "movies", "vod":
			return VOD
		}
	}

	if query != nil {
		for _, key := range []string{"type", "kind"} {
			if v := query.Get(key); v != "" {
				switch strings.ToLower(v) {
				case "live":
					return Live
				case "series":
					return Series
				case "vod", "movie":
					return VOD
				}
			}
		}
	}

	ext := strings.ToLower(path.Ext(lastPathSegment(segments)))
	if liveExtensions[ext] {
		return Live
	}
	if vodExtensions[ext] {
		return VOD
	}

	return Live
}

// pathSegmentsAndQuery parses raw as an absolute URI when possible; if
// parsing fails it falls back to a substring scan over the raw string so
// malformed-but-recognizable upstream URLs still classify.
func pathSegmentsAndQuery(raw string) ([]string, url.Values) {
	if u, err := url.Parse(raw); err == nil && u.IsAbs() {
		return splitPath(u.Path), u.Query()
	}
	// Fallback: treat the whole string as a path, stripping any query suffix.
	p := raw
	if idx := strings.IndexByte(p, '?'); idx != -1 {
		p = p[:idx]
	}
	return splitPath(p), nil
}

func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, seg := range parts {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func lastPathSegment(segments []string) string {
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}
