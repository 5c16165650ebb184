// Package guide retrieves a Provider's optional EPG/XMLTV document and
// passes it through to the Snapshot Builder, tolerating non-UTF-8
// encodings and upstream failures (§4.1, §4.4.5, §7: GuideFetchFailed is
// recovered locally, never fatal).
package guide

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/net/html/charset"

	"lineupd/internal/errs"
	"lineupd/internal/fetch"
)

// maxGuideBytes is the largest guide document Fetch accepts. The check runs
// after fetch.Fetch has read the whole body into memory, so it rejects an
// oversized document but does not bound the memory used to read it.
const maxGuideBytes = 64 * 1024 * 1024

// emptyXMLTV is substituted whenever the guide cannot be retrieved, so the
// Snapshot Builder always has a well-formed document to write.
const emptyXMLTV = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" + `<tv></tv>` + "\n"

// EmptyGuide returns the minimal valid XMLTV document used in place of a
// failed or absent guide fetch.
func EmptyGuide() []byte {
	return []byte(emptyXMLTV)
}

// Fetch retrieves the guide document at rawURL, transcoding it to UTF-8
// when it declares or sniffs as a different encoding. Any failure is
// wrapped in errs.ErrGuideFetchFailed for the caller to recover from by
// substituting EmptyGuide.
func Fetch(ctx context.Context, rawURL string, headers map[string]string, userAgent string, timeout time.Duration) ([]byte, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("%w: no guide url configured", errs.ErrGuideFetchFailed)
	}

	res, err := fetch.Fetch(ctx, rawURL, headers, userAgent, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrGuideFetchFailed, err)
	}
	if res.ByteCount > maxGuideBytes {
		return nil, fmt.Errorf("%w: guide document exceeds %d bytes", errs.ErrGuideFetchFailed, maxGuideBytes)
	}

	return toUTF8(res.Bytes), nil
}

// toUTF8 best-effort transcodes raw to UTF-8 using BOM/declared-charset
// sniffing; if sniffing or transcoding fails, the original bytes pass
// through unchanged rather than aborting the guide fetch.
func toUTF8(raw []byte) []byte {
	r, err := charset.NewReader(bytes.NewReader(raw), "")
	if err != nil {
		return raw
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return raw
	}
	return out
}
