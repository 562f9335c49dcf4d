package scheduler

import (
	"strings"

	"searchahouse/internal/changefeed"

	"github.com/hibiken/asynq"
)

// TaskChangePrefix prefixes the task type of every change event.
const TaskChangePrefix = "index.change."

// ChangeTaskType returns the task type for change events of entityType.
func ChangeTaskType(entityType changefeed.EntityType) string {
	return TaskChangePrefix + string(entityType)
}

// EntityTypeOf extracts the entity type from a change task type.
func EntityTypeOf(taskType string) string {
	return strings.TrimPrefix(taskType, TaskChangePrefix)
}

// QueueName returns the queue that carries change events of entityType.
// Each entity type has its own queue so one type cannot starve another.
func QueueName(prefix string, entityType changefeed.EntityType) string {
	if prefix == "" {
		prefix = "searchahouse"
	}
	return prefix + ":" + string(entityType)
}

// NewChangeTask wraps an encoded change event.
func NewChangeTask(entityType changefeed.EntityType, payload []byte) *asynq.Task {
	return asynq.NewTask(ChangeTaskType(entityType), payload)
}
