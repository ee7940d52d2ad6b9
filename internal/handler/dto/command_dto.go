package dto

import "github.com/makkenzo/keybind-service/internal/command"

type CallerRequest struct {
	ID    string   `json:"id" binding:"required"`
	Roles []string `json:"roles"`
}

type CommandRequest struct {
	Name   string        `json:"name" binding:"required,max=32"`
	Caller CallerRequest `json:"caller" binding:"required"`
	Args   []string      `json:"args" binding:"max=8"`
}

func (r *CommandRequest) Invocation() command.Invocation {
	return command.Invocation{
		Name: r.Name,
		Caller: command.Caller{
			ID:    r.Caller.ID,
			Roles: r.Caller.Roles,
		},
		Args: r.Args,
	}
}

type CommandResponse struct {
	RequestID          string   `json:"request_id"`
	Outcome            string   `json:"outcome"`
	Messages           []string `json:"messages"`
	PurgeCount         int      `json:"purge_count,omitempty"`
	DeleteAfterSeconds int      `json:"delete_after_seconds,omitempty"`
}

func NewCommandResponse(requestID string, res *command.Result) *CommandResponse {
	return &CommandResponse{
		RequestID:          requestID,
		Outcome:            res.Outcome,
		Messages:           res.Messages,
		PurgeCount:         res.PurgeCount,
		DeleteAfterSeconds: int(res.DeleteAfter.Seconds()),
	}
}
