package server

import (
	"encoding/json"
	"net/http"
	"time"

	"lineupd/internal/catalog"
	"lineupd/internal/log"
)

type statusResponse struct {
	Status  string          `json:"status"`
	Lineups []lineupStatus  `json:"lineups"`
}

type lineupStatus struct {
	Name           string          `json:"name"`
	Status         string          `json:"status"`
	ActiveProvider *providerRef    `json:"activeProvider"`
	ActiveSnapshot *snapshotRef    `json:"activeSnapshot"`
	LastRefresh    *fetchRunRef    `json:"lastRefresh"`
}

type providerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type snapshotRef struct {
	ID                    string    `json:"id"`
	ProfileID             string    `json:"profileId"`
	CreatedUTC            time.Time `json:"createdUtc"`
	ChannelCountPublished int       `json:"channelCountPublished"`
}

type fetchRunRef struct {
	Status           string    `json:"status"`
	StartedUTC       time.Time `json:"startedUtc"`
	FinishedUTC      time.Time `json:"finishedUtc"`
	ChannelCountSeen int       `json:"channelCountSeen"`
	ErrorSummary     string    `json:"errorSummary,omitempty"`
}

// handleStatus reports per-lineup health (§4.7 "Status", §6).
func (s *Server) handleStatus(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	logger := log.WithComponent("server")

	profiles, err := s.store.ListEnabledProfiles(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("list profiles")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	provider, hasActiveProvider, err := s.store.ActiveEnabledProvider(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("load active provider")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	lineups := make([]lineupStatus, 0, len(profiles))
	overall := "no_active_snapshot"

	for _, p := range profiles {
		ls := lineupStatus{Name: p.OutputName, Status: "no_active_snapshot"}

		if hasActiveProvider {
			ls.ActiveProvider = &providerRef{ID: provider.ID, Name: provider.Name}
		}

		snap, ok, err := s.store.ActiveSnapshot(ctx, p.ID)
		if err != nil {
			logger.Error().Err(err).Str("profile_id", p.ID).Msg("load active snapshot")
		} else if ok {
			ls.ActiveSnapshot = &snapshotRef{
				ID:                    snap.ID,
				ProfileID:             snap.ProfileID,
				CreatedUTC:            snap.Created,
				ChannelCountPublished: snap.ChannelCountPublished,
			}
			ls.Status = "ok"
		}

		if hasActiveProvider {
			run, ok, err := s.store.LatestFetchRun(ctx, provider.ID)
			if err == nil && ok {
				ls.LastRefresh = &fetchRunRef{
					Status:           string(run.Status),
					StartedUTC:       run.Started,
					FinishedUTC:      run.Finished,
					ChannelCountSeen: run.ChannelCountSeen,
					ErrorSummary:     run.ErrorSummary,
				}
				if run.Status == catalog.FetchRunFail && ls.Status == "ok" {
					ls.Status = "degraded"
				}
			}
		}

		if ls.Status != "no_active_snapshot" {
			overall = "ok"
		}
		if ls.Status == "degraded" && overall != "degraded" {
			overall = "degraded"
		}
		lineups = append(lineups, ls)
	}

	if len(lineups) == 0 {
		overall = "no_active_snapshot"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(statusResponse{Status: overall, Lineups: lineups})
}
