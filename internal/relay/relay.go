// Package relay implements the Stream Relay (§4.6): it resolves an opaque
// streamKey against the currently active snapshot of some profile and
// proxies the upstream response verbatim, never redirecting so that
// credential-bearing upstream URLs never reach the client.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"lineupd/internal/catalog"
	"lineupd/internal/errs"
	"lineupd/internal/log"
	"lineupd/internal/metrics"
)

// Relay resolves stream keys against the catalog's active snapshots and
// proxies matched requests upstream.
type Relay struct {
	store  *catalog.Store
	client *http.Client
}

// New returns a Relay backed by store. The HTTP client carries no overall
// timeout: live streams are open-ended and bounded only by client or
// upstream disconnect (§5).
func New(store *catalog.Store) *Relay {
	return &Relay{
		store: store,
		client: &http.Client{
			Timeout: 0,
		},
	}
}

// resolved is what a successful lookup yields: the matched entry plus the
// provider whose headers/user-agent govern the upstream request.
type resolved struct {
	entry    catalog.ChannelIndexEntry
	provider catalog.Provider
}

// resolve searches every enabled profile's active snapshot for streamKey.
func (r *Relay) resolve(ctx context.Context, streamKey string) (resolved, error) {
	profiles, err := r.store.ListEnabledProfiles(ctx)
	if err != nil {
		return resolved{}, fmt.Errorf("relay: list profiles: %w", err)
	}

	var anyActive bool
	for _, profile := range profiles {
		snap, ok, err := r.store.ActiveSnapshot(ctx, profile.ID)
		if err != nil || !ok {
			continue
		}
		anyActive = true

		raw, err := os.ReadFile(snap.ChannelIndexPath)
		if err != nil {
			continue
		}
		var entries []catalog.ChannelIndexEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			continue
		}
		for _, e := range entries {
			if e.StreamKey == streamKey {
				provider, ok, err := r.store.ActiveEnabledProvider(ctx)
				if err != nil || !ok {
					return resolved{}, errs.ErrUnknownStreamKey
				}
				return resolved{entry: e, provider: provider}, nil
			}
		}
	}
	if !anyActive {
		return resolved{}, errs.ErrNoActiveSnapshot
	}
	return resolved{}, errs.ErrUnknownStreamKey
}

// Serve implements the relay endpoint. streamKey is extracted by the
// caller (e.g. chi's URL param) and taken directly as an argument to keep
// this package router-agnostic.
func (r *Relay) Serve(w http.ResponseWriter, req *http.Request, streamKey string) {
	logger := log.WithComponent("relay")
	ctx := req.Context()

	res, err := r.resolve(ctx, streamKey)
	switch {
	case err == errs.ErrNoActiveSnapshot:
		metrics.RelayRequestsTotal.WithLabelValues("no_active_snapshot").Inc()
		w.Header().Set("Retry-After", "60")
		http.Error(w, "no active snapshot", http.StatusServiceUnavailable)
		return
	case err == errs.ErrUnknownStreamKey:
		metrics.RelayRequestsTotal.WithLabelValues("unknown_key").Inc()
		logger.Warn().Str("stream_key", streamKey).Str("remote_addr", req.RemoteAddr).Msg("unknown stream key")
		http.Error(w, "unknown stream key", http.StatusNotFound)
		return
	case err != nil:
		metrics.RelayRequestsTotal.WithLabelValues("error").Inc()
		logger.Error().Err(err).Str("stream_key", streamKey).Msg("resolve failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	upstreamReq, err := http.NewRequestWithContext(ctx, http.MethodGet, res.entry.StreamURL, nil)
	if err != nil {
		logger.Error().Err(err).Msg("build upstream request")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	for k, v := range res.provider.Headers {
		upstreamReq.Header.Set(k, v)
	}
	if res.provider.UserAgent != "" {
		upstreamReq.Header.Set("User-Agent", res.provider.UserAgent)
	}
	if rng := req.Header.Get("Range"); rng != "" {
		upstreamReq.Header.Set("Range", rng)
	}

	upstreamResp, err := r.client.Do(upstreamReq)
	if err != nil {
		metrics.RelayRequestsTotal.WithLabelValues("upstream_failed").Inc()
		logger.Warn().Err(err).Str("stream_key", streamKey).Msg("upstream relay failed before response")
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	defer upstreamResp.Body.Close()

	for _, h := range []string{"Content-Type", "Content-Length", "Accept-Ranges", "Content-Range"} {
		if v := upstreamResp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	w.WriteHeader(upstreamResp.StatusCode)

	n, copyErr := io.Copy(w, upstreamResp.Body)
	if copyErr != nil {
		metrics.RelayBytesTotal.WithLabelValues("client_disconnect").Add(float64(n))
		// A client disconnect mid-copy is normal termination, not an error
		// (§4.6 step 7) — log at info, not warn or error.
		logger.Info().Err(copyErr).Str("stream_key", streamKey).Msg("relay copy ended")
		metrics.RelayRequestsTotal.WithLabelValues("client_disconnect").Inc()
		return
	}
	metrics.RelayBytesTotal.WithLabelValues("ok").Add(float64(n))
	metrics.RelayRequestsTotal.WithLabelValues("ok").Inc()
}
