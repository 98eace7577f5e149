// SPDX-License-Identifier: MIT

// Package audit provides structured audit logging for agent lifecycle
// decisions. It follows the WHO/WHAT/WHEN pattern for compliance and
// forensics: every eviction leaves a row naming the agent, the reason, and
// the phase the decision was taken in.
package audit

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfleet/atrwac/internal/log"
)

// EventType represents the type of audit event.
type EventType string

const (
	// Engine lifecycle events
	EventEngineStart EventType = "engine.start"
	EventEngineStop  EventType = "engine.stop"

	// Evaluation events
	EventPhaseChange EventType = "phase.change"
	EventAgentPruned EventType = "agent.pruned"
	EventManualPrune EventType = "agent.manual_prune"

	// Configuration events
	EventConfigUpdate EventType = "config.update"
	EventConfigReject EventType = "config.reject"
)

// Record is one row of the pruning audit trail.
type Record struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	AgentID    string    `json:"agent_id"`
	AgentName  string    `json:"agent_name"`
	Reason     string    `json:"reason"`
	FinalScore float64   `json:"final_score"`
	Rank       int       `json:"rank"`
	Phase      string    `json:"phase"`
}

// Logger provides audit logging functionality.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new audit logger with a dedicated "audit" component.
func NewLogger() *Logger {
	auditLogger := log.WithComponent("audit").With().
		Str("log_type", "audit").
		Logger()

	return &Logger{logger: auditLogger}
}

// Pruned logs an eviction audit row.
func (l *Logger) Pruned(kind EventType, rec Record) {
	l.logger.Info().
		Str("event_type", string(kind)).
		Time("timestamp", rec.Timestamp).
		Str(log.FieldAgentID, rec.AgentID).
		Str(log.FieldAgentName, rec.AgentName).
		Str(log.FieldReason, rec.Reason).
		Float64(log.FieldScore, rec.FinalScore).
		Int(log.FieldRank, rec.Rank).
		Str(log.FieldPhase, rec.Phase).
		Msg("audit event")
}

// PhaseChange logs a phase transition.
func (l *Logger) PhaseChange(oldPhase, newPhase string) {
	l.logger.Info().
		Str("event_type", string(EventPhaseChange)).
		Str(log.FieldOldPhase, oldPhase).
		Str(log.FieldNewPhase, newPhase).
		Msg("audit event")
}

// ConfigUpdate logs the outcome of a configuration replacement.
func (l *Logger) ConfigUpdate(actor, result string) {
	kind := EventConfigUpdate
	if result != "success" {
		kind = EventConfigReject
	}
	l.logger.Info().
		Str("event_type", string(kind)).
		Str("actor", actor).
		Str("result", result).
		Msg("audit event")
}

// EngineLifecycle logs engine start/stop transitions.
func (l *Logger) EngineLifecycle(kind EventType, liveAgents int) {
	l.logger.Info().
		Str("event_type", string(kind)).
		Int(log.FieldLiveSize, liveAgents).
		Msg("audit event")
}
