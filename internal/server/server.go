// Package server implements the Client Read Endpoints (§4.7): playlist
// render, guide passthrough, status JSON, and the stream relay, wired
// behind a chi router with the teacher's canonical middleware ordering.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"lineupd/internal/catalog"
	"lineupd/internal/log"
	"lineupd/internal/refresh"
	"lineupd/internal/relay"
)

// Server holds the dependencies the read endpoints need: the catalog for
// profile/snapshot/fetch-run lookups (the status endpoint reads only the
// catalog), the refresh coordinator, and the relay for stream proxying.
type Server struct {
	store       *catalog.Store
	coordinator *refresh.Coordinator
	relay       *relay.Relay
}

// New constructs a Server.
func New(store *catalog.Store, coordinator *refresh.Coordinator, rl *relay.Relay) *Server {
	return &Server{store: store, coordinator: coordinator, relay: rl}
}

// Routes builds the chi router for the client-facing read surface.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(log.Middleware())

	r.Get("/status", s.handleStatus)

	relayLimiter := httprate.Limit(600, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))
	r.With(relayLimiter).Get("/stream/{streamKey}", s.handleStream)

	r.Get("/{name}", s.handleNamedArtifact)

	return r
}

// handleNamedArtifact dispatches "<outputName>.m3u" and "<outputName>.xml"
// to the playlist and guide handlers respectively; chi route params match
// a whole path segment, so the extension is split out here rather than in
// the route pattern.
func (s *Server) handleNamedArtifact(w http.ResponseWriter, req *http.Request) {
	name := chi.URLParam(req, "name")
	switch {
	case strings.HasSuffix(name, ".m3u"):
		s.handlePlaylist(w, req, strings.TrimSuffix(name, ".m3u"))
	case strings.HasSuffix(name, ".xml"):
		s.handleGuide(w, req, strings.TrimSuffix(name, ".xml"))
	default:
		http.NotFound(w, req)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, req *http.Request) {
	streamKey := chi.URLParam(req, "streamKey")
	s.relay.Serve(w, req, streamKey)
}

// profileByOutputName finds the enabled profile whose output_name matches
// name, or (Profile{}, false, nil) if none exists.
func (s *Server) profileByOutputName(req *http.Request, name string) (catalog.Profile, bool, error) {
	profiles, err := s.store.ListEnabledProfiles(req.Context())
	if err != nil {
		return catalog.Profile{}, false, err
	}
	for _, p := range profiles {
		if p.OutputName == name {
			return p, true, nil
		}
	}
	return catalog.Profile{}, false, nil
}
