package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const statusFailed = "failed"

// ConfirmationResult is what a hwid:confirm task leaves for the relay to
// fetch. Messages never repeat the acknowledgement already returned on
// enqueue.
type ConfirmationResult struct {
	Status   string   `json:"status"`
	Messages []string `json:"messages"`
	Done     bool     `json:"-"`
}

// ResultFromTaskInfo reads the stored outcome of a confirmation task. Tasks
// still waiting or retrying report their asynq state and no messages.
func ResultFromTaskInfo(info *asynq.TaskInfo) (*ConfirmationResult, error) {
	switch info.State {
	case asynq.TaskStateCompleted:
		var res ConfirmationResult
		if err := json.Unmarshal(info.Result, &res); err != nil {
			return nil, fmt.Errorf("invalid result for task %s: %w", info.ID, err)
		}
		if res.Messages == nil {
			res.Messages = []string{}
		}
		res.Done = true
		return &res, nil
	case asynq.TaskStateArchived:
		return &ConfirmationResult{Status: statusFailed, Messages: []string{}, Done: true}, nil
	default:
		return &ConfirmationResult{Status: info.State.String(), Messages: []string{}}, nil
	}
}
