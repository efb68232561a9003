package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskMenuIntegrity is the task type for the menu duplicate scan.
	TaskMenuIntegrity = "menu:integrity"
)

// MenuIntegrityPayload configures a menu integrity scan. When Fix is
// set, duplicate rows are removed instead of just reported.
type MenuIntegrityPayload struct {
	Fix bool `json:"fix"`
}

// NewMenuIntegrityTask constructs an Asynq task.
func NewMenuIntegrityTask(payload MenuIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMenuIntegrity, data), nil
}
