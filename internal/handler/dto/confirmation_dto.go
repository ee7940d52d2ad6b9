package dto

import "github.com/makkenzo/keybind-service/internal/service"

type ConfirmationRequest struct {
	SenderID string `json:"sender_id" binding:"required"`
	Content  string `json:"content" binding:"required,max=4000"`
	Token    string `json:"token,omitempty"`
}

func (r *ConfirmationRequest) Message() service.ConfirmationMessage {
	return service.ConfirmationMessage{
		SenderID: r.SenderID,
		Content:  r.Content,
		Token:    r.Token,
	}
}

type ConfirmationResponse struct {
	RequestID string   `json:"request_id"`
	Status    string   `json:"status"`
	Messages  []string `json:"messages"`
	TaskID    string   `json:"task_id,omitempty"`
}
