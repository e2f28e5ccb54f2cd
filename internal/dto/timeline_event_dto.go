package dto

import "time"

// TimelineEventResponse is pushed to websocket subscribers whenever a group's
// timeline changes, so clients know to refetch it.
type TimelineEventResponse struct {
	GroupID         uint      `json:"group_id"`
	Operation       string    `json:"operation"`
	Position        int       `json:"position"`
	RunningModuleID uint      `json:"running_module_id,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}
