package events

import "time"

// SyncCompleted is raised after every sync pass, including passes that left
// conflicts outstanding.
type SyncCompleted struct {
	BaseEvent
	TotalProcessed int `json:"total_processed"`
	SuccessCount   int `json:"success_count"`
	FailureCount   int `json:"failure_count"`
	ConflictCount  int `json:"conflict_count"`
}

// NewSyncCompleted creates a SyncCompleted event. The aggregate is the user.
func NewSyncCompleted(userID string, total, success, failure, conflicts int, timestamp time.Time) SyncCompleted {
	return SyncCompleted{
		BaseEvent: BaseEvent{
			AggregateID: userID,
			EventType:   TypeSyncCompleted,
			UserID:      userID,
			Timestamp:   timestamp,
			Version:     1,
		},
		TotalProcessed: total,
		SuccessCount:   success,
		FailureCount:   failure,
		ConflictCount:  conflicts,
	}
}
