package catalog

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	unorm "golang.org/x/text/unicode/norm"
)

const unitSeparator = "\x1f"

// stableIdentity builds the identity string for a parsed entry (§4.3 step
// 4): tvg-id when present, else displayName US streamUrl, with a
// disambiguating suffix so items sharing a tvg-id across groups, or exact
// duplicate lines, still resolve to distinct identities.
func stableIdentity(tvgID, displayName, streamURL, groupTitle string, occurrence int) string {
	name := unorm.NFC.String(displayName)

	var base string
	if tvgID != "" {
		base = tvgID
	} else {
		base = name + unitSeparator + streamURL
	}

	identity := base + unitSeparator + streamURL + unitSeparator + groupTitle + unitSeparator + name
	if occurrence >= 2 {
		identity += fmt.Sprintf("%sdup:%d", unitSeparator, occurrence)
	}
	return identity
}

// StableChannelKey derives the ProviderChannel stable key: the first 16
// base64url characters (unpadded) of the SHA-256 of the identity string.
func StableChannelKey(tvgID, displayName, streamURL, groupTitle string, occurrence int) string {
	return truncatedHash(stableIdentity(tvgID, displayName, streamURL, groupTitle, occurrence))
}

func truncatedHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	enc := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(sum[:])
	enc = strings.ReplaceAll(enc, "+", "-")
	enc = strings.ReplaceAll(enc, "/", "_")
	if len(enc) > 16 {
		enc = enc[:16]
	}
	return enc
}

// StreamKey derives the opaque client-facing token for an emitted channel
// (§4.4.3). providerChannelKey is the channel's raw tvg-id (the Snapshot
// Builder passes ProviderChannel.TvgID); an empty value falls back to the
// three-field identity.
func StreamKey(providerChannelKey, streamURL, outputGroup, displayName, profileID string) string {
	var identity string
	if providerChannelKey != "" {
		identity = providerChannelKey + unitSeparator + streamURL + unitSeparator + outputGroup + unitSeparator + displayName
	} else {
		identity = displayName + unitSeparator + streamURL + unitSeparator + outputGroup
	}
	return truncatedHash(identity + ":" + profileID)
}
