package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"lineupd/internal/catalog"
	"lineupd/internal/log"
)

// handlePlaylist renders the extended-M3U document for outputName's active
// snapshot (§4.7 "Playlist render").
func (s *Server) handlePlaylist(w http.ResponseWriter, req *http.Request, outputName string) {
	logger := log.WithComponent("server")

	profile, ok, err := s.profileByOutputName(req, outputName)
	if err != nil {
		logger.Error().Err(err).Msg("lookup profile")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, req)
		return
	}

	snap, ok, err := s.store.ActiveSnapshot(req.Context(), profile.ID)
	if err != nil {
		logger.Error().Err(err).Msg("load active snapshot")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		w.Header().Set("Retry-After", "60")
		http.Error(w, "no active snapshot", http.StatusServiceUnavailable)
		return
	}

	raw, err := os.ReadFile(snap.ChannelIndexPath)
	if err != nil {
		logger.Error().Err(err).Str("path", snap.ChannelIndexPath).Msg("read channel index")
		w.Header().Set("Retry-After", "60")
		http.Error(w, "snapshot artifact missing", http.StatusServiceUnavailable)
		return
	}
	var entries []catalog.ChannelIndexEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		logger.Error().Err(err).Str("path", snap.ChannelIndexPath).Msg("corrupt channel index")
		w.Header().Set("Retry-After", "60")
		http.Error(w, "snapshot artifact corrupt", http.StatusServiceUnavailable)
		return
	}

	baseURL := baseURLFromRequest(req)

	w.Header().Set("Content-Type", "application/x-mpegurl; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "#EXTM3U url-tvg=\"%s/%s.xml\" x-tvg-url=\"%s/%s.xml\"\n", baseURL, outputName, baseURL, outputName)
	for _, e := range entries {
		writeEntry(w, e, baseURL)
	}
}

func writeEntry(w http.ResponseWriter, e catalog.ChannelIndexEntry, baseURL string) {
	var b strings.Builder
	b.WriteString("#EXTINF:-1")
	if e.TvgID != "" {
		fmt.Fprintf(&b, ` tvg-id="%s"`, e.TvgID)
	}
	tvgName := e.TvgName
	if tvgName == "" {
		tvgName = e.DisplayName
	}
	fmt.Fprintf(&b, ` tvg-name="%s"`, tvgName)
	if e.LogoURL != "" {
		fmt.Fprintf(&b, ` tvg-logo="%s"`, e.LogoURL)
	}
	if e.GroupTitle != "" {
		fmt.Fprintf(&b, ` group-title="%s"`, e.GroupTitle)
	}
	if e.TvgChno != 0 {
		fmt.Fprintf(&b, ` tvg-chno="%d"`, e.TvgChno)
	}
	fmt.Fprintf(&b, ",%s\n", e.DisplayName)
	fmt.Fprintf(&b, "%s/stream/%s\n", baseURL, e.StreamKey)

	fmt.Fprint(w, b.String())
}

// baseURLFromRequest reconstructs the externally visible base URL from the
// incoming request, honoring a reverse proxy's X-Forwarded-Proto.
func baseURLFromRequest(req *http.Request) string {
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	if fwd := req.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return fmt.Sprintf("%s://%s", scheme, req.Host)
}
