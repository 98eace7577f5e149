// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quantfleet/atrwac/internal/config"
	xglog "github.com/quantfleet/atrwac/internal/log"
)

// configView is the wire representation of the effective configuration.
// The interval is exposed in whole seconds, matching the update document.
type configView struct {
	Enabled                   bool                 `json:"enabled"`
	Target                    config.Target        `json:"target"`
	Weights                   config.Weights       `json:"weights"`
	Pruning                   config.PruningPolicy `json:"pruning"`
	EvaluationIntervalSeconds int                  `json:"evaluation_interval_seconds"`
	AutoPrune                 bool                 `json:"auto_prune"`
}

func viewOf(cfg config.Engine) configView {
	return configView{
		Enabled:                   cfg.Enabled,
		Target:                    cfg.Target,
		Weights:                   cfg.Weights,
		Pruning:                   cfg.Pruning,
		EvaluationIntervalSeconds: int(cfg.EvaluationInterval.Seconds()),
		AutoPrune:                 cfg.AutoPrune,
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Rankings())
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.engine.Agent(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *Server) handleChampions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Champions())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.PruningHistory())
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Resources())
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(s.engine.Config()))
}

// handleUpdateConfig applies a partial configuration document. A rejected
// document returns 400 and leaves the running configuration untouched.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var update config.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	next, err := s.engine.UpdateConfig(update)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewOf(next))
}

// handleEvaluate triggers one synchronous evaluation tick.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ForceEvaluation(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Status())
}

type pruneRequest struct {
	Reason string `json:"reason"`
}

// handleManualPrune evicts one agent on operator request.
func (s *Server) handleManualPrune(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req pruneRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
	}

	rec, err := s.engine.ManualPrune(r.Context(), id, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	logger := xglog.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str("event", "api.manual_prune").
		Str(xglog.FieldAgentID, id).
		Str(xglog.FieldReason, rec.Reason).
		Msg("agent pruned by operator")

	writeJSON(w, http.StatusOK, rec)
}
