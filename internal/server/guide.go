package server

import (
	"net/http"
	"os"

	"lineupd/internal/log"
)

// handleGuide serves outputName's active snapshot guide file verbatim
// (§4.7 "Guide passthrough").
func (s *Server) handleGuide(w http.ResponseWriter, req *http.Request, outputName string) {
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

	raw, err := os.ReadFile(snap.GuidePath)
	if err != nil {
		logger.Error().Err(err).Str("path", snap.GuidePath).Msg("read guide file")
		w.Header().Set("Retry-After", "60")
		http.Error(w, "snapshot artifact missing", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}
