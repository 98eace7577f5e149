// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldAgentID   = "agent_id"
	FieldAgentName = "agent_name"
	FieldRequestID = "request_id"

	// Lifecycle fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPhase     = "phase"
	FieldOldPhase  = "old_phase"
	FieldNewPhase  = "new_phase"

	// Evaluation fields
	FieldScore    = "score"
	FieldRank     = "rank"
	FieldLiveSize = "live"
	FieldKeep     = "keep"
	FieldReason   = "reason"

	// Resource fields
	FieldLane = "lane_id"
	FieldGPU  = "gpu_id"
)
