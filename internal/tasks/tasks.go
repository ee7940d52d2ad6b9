package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/keybind-service/internal/service"
)

const (
	TypeHWIDConfirm = "hwid:confirm"
	TypeKeyStats    = "keys:stats"

	QueueConfirmations = "confirmations"
	QueueDefault       = "default"
)

type HWIDConfirmPayload struct {
	SenderID string `json:"sender_id"`
	Content  string `json:"content"`
	Token    string `json:"token,omitempty"`
}

func (p HWIDConfirmPayload) Message() service.ConfirmationMessage {
	return service.ConfirmationMessage{
		SenderID: p.SenderID,
		Content:  p.Content,
		Token:    p.Token,
	}
}

func NewHWIDConfirmTask(msg service.ConfirmationMessage, opts ...asynq.Option) (*asynq.Task, error) {
	payload := HWIDConfirmPayload{
		SenderID: msg.SenderID,
		Content:  msg.Content,
		Token:    msg.Token,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	allOpts := append([]asynq.Option{asynq.Queue(QueueConfirmations), asynq.MaxRetry(3)}, opts...)
	return asynq.NewTask(TypeHWIDConfirm, payloadBytes, allOpts...), nil
}

type KeyStatsPayload struct{}

func NewKeyStatsTask(opts ...asynq.Option) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(KeyStatsPayload{})
	if err != nil {
		return nil, err
	}

	allOpts := append(opts, asynq.Unique(30*time.Second))
	return asynq.NewTask(TypeKeyStats, payloadBytes, allOpts...), nil
}
