package mq

import "time"

// Routing keys on the task events exchange.
const (
	RoutingTaskCreated = "task.created"
	RoutingTaskUpdated = "task.updated"
	RoutingTaskDeleted = "task.deleted"
)

// TaskEventPayload is the body of every task event.
type TaskEventPayload struct {
	TaskID     int64     `json:"task_id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status,omitempty"`
	Important  bool      `json:"important"`
	OccurredAt time.Time `json:"occurred_at"`
	TraceID    string    `json:"trace_id,omitempty"`
}
