package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/makkenzo/keybind-service/internal/domain/key"
	"github.com/makkenzo/keybind-service/internal/ierr"
	"go.uber.org/zap"
)

var (
	userPattern      = regexp.MustCompile(`User:\s*(\S+)`)
	clientIDPattern  = regexp.MustCompile(`Client ID:\s*([\w-]+)`)
	scriptKeyPattern = regexp.MustCompile(`Script Key:\s*(\S+)`)
)

const AckMessage = "Understood, copied"

// ConfirmationMessage is an inbound chat message that may carry an HWID
// confirmation.
type ConfirmationMessage struct {
	SenderID string
	Content  string
	Token    string
}

// Confirmation holds the labelled fields of a confirmation message.
type Confirmation struct {
	User      string
	ClientID  string
	ScriptKey string
}

func ParseConfirmation(content string) (Confirmation, error) {
	user := userPattern.FindStringSubmatch(content)
	clientID := clientIDPattern.FindStringSubmatch(content)
	scriptKey := scriptKeyPattern.FindStringSubmatch(content)
	if user == nil || clientID == nil || scriptKey == nil {
		return Confirmation{}, ierr.ErrMalformedConfirmation
	}
	return Confirmation{
		User:      user[1],
		ClientID:  clientID[1],
		ScriptKey: scriptKey[1],
	}, nil
}

type ConfirmationStatus string

const (
	ConfirmationIgnored       ConfirmationStatus = "ignored"
	ConfirmationMalformed     ConfirmationStatus = "malformed"
	ConfirmationRejected      ConfirmationStatus = "rejected"
	ConfirmationNotApplicable ConfirmationStatus = "not_applicable"
	ConfirmationRefused       ConfirmationStatus = "refused"
	ConfirmationApplied       ConfirmationStatus = "applied"
)

type ConfirmationOutcome struct {
	Status       ConfirmationStatus
	Confirmation *Confirmation
	Messages     []string
}

// FollowUp returns the replies that come after the acknowledgement.
func (o *ConfirmationOutcome) FollowUp() []string {
	if len(o.Messages) > 0 && o.Messages[0] == AckMessage {
		return o.Messages[1:]
	}
	return o.Messages
}

// BindingWorkflow drives the second phase of redemption: a trusted sender
// reports the client ID for a script key and the key becomes bound.
type BindingWorkflow struct {
	registry  *KeyRegistry
	confirmer TrustedConfirmer
	logger    *zap.Logger
}

func NewBindingWorkflow(registry *KeyRegistry, confirmer TrustedConfirmer, logger *zap.Logger) *BindingWorkflow {
	return &BindingWorkflow{
		registry:  registry,
		confirmer: confirmer,
		logger:    logger.Named("BindingWorkflow"),
	}
}

func (w *BindingWorkflow) TrustsSender(senderID string) bool {
	return w.confirmer.TrustsSender(senderID)
}

// HandleMessage never reports domain failures as errors; only storage
// failures are returned.
func (w *BindingWorkflow) HandleMessage(ctx context.Context, msg ConfirmationMessage) (*ConfirmationOutcome, error) {
	if !w.confirmer.TrustsSender(msg.SenderID) {
		return &ConfirmationOutcome{Status: ConfirmationIgnored}, nil
	}

	out := &ConfirmationOutcome{Messages: []string{AckMessage}}

	conf, err := ParseConfirmation(msg.Content)
	if err != nil {
		w.logger.Debug("Trusted message without confirmation fields", zap.String("sender_id", msg.SenderID))
		out.Status = ConfirmationMalformed
		return out, nil
	}
	out.Confirmation = &conf

	if err := w.confirmer.Verify(ctx, msg, conf); err != nil {
		w.logger.Warn("Confirmation failed verification", zap.String("script_key", conf.ScriptKey), zap.Error(err))
		out.Status = ConfirmationRejected
		return out, nil
	}

	k, err := w.registry.Describe(ctx, conf.ScriptKey)
	if err != nil {
		if errors.Is(err, ierr.ErrKeyNotFound) {
			out.Status = ConfirmationNotApplicable
			return out, nil
		}
		return nil, err
	}
	if k.State() != key.StatePendingHWID {
		out.Status = ConfirmationNotApplicable
		return out, nil
	}

	err = w.registry.ConfirmHWID(ctx, conf.ScriptKey, conf.ClientID)
	switch {
	case err == nil:
		out.Status = ConfirmationApplied
		out.Messages = append(out.Messages, fmt.Sprintf("HWID for key %s has been updated.", conf.ScriptKey))
	case errors.Is(err, ierr.ErrHWIDAlreadySet), errors.Is(err, ierr.ErrKeyNotFound), errors.Is(err, ierr.ErrKeyNotRedeemed):
		out.Status = ConfirmationRefused
		out.Messages = append(out.Messages, fmt.Sprintf("Key %s already has a HWID or is not valid.", conf.ScriptKey))
	default:
		return nil, err
	}

	w.logger.Info("Confirmation processed",
		zap.String("script_key", conf.ScriptKey),
		zap.String("client_id", conf.ClientID),
		zap.String("user", conf.User),
		zap.String("status", string(out.Status)),
	)
	return out, nil
}
