package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/makkenzo/keybind-service/internal/ierr"
)

// TrustedConfirmer decides whether a confirmation message may bind an HWID.
type TrustedConfirmer interface {
	TrustsSender(senderID string) bool
	Verify(ctx context.Context, msg ConfirmationMessage, conf Confirmation) error
}

// IdentityConfirmer trusts whatever arrives under one sender ID. The ID is
// not a credential: anyone able to post as that account can bind HWIDs.
type IdentityConfirmer struct {
	TrustedID string
}

func (c IdentityConfirmer) TrustsSender(senderID string) bool {
	return c.TrustedID != "" && senderID == c.TrustedID
}

func (c IdentityConfirmer) Verify(ctx context.Context, msg ConfirmationMessage, conf Confirmation) error {
	if !c.TrustsSender(msg.SenderID) {
		return ierr.ErrUntrustedSender
	}
	return nil
}

// ConfirmationClaims is the payload of a signed confirmation token.
type ConfirmationClaims struct {
	ScriptKey string `json:"script_key"`
	ClientID  string `json:"client_id"`
	jwt.RegisteredClaims
}

// SignedConfirmer additionally requires an HS256 token whose claims match the
// parsed message fields.
type SignedConfirmer struct {
	IdentityConfirmer
	Secret []byte
}

func (c SignedConfirmer) Verify(ctx context.Context, msg ConfirmationMessage, conf Confirmation) error {
	if err := c.IdentityConfirmer.Verify(ctx, msg, conf); err != nil {
		return err
	}
	if msg.Token == "" {
		return fmt.Errorf("%w: confirmation token missing", ierr.ErrUntrustedSender)
	}

	var claims ConfirmationClaims
	_, err := jwt.ParseWithClaims(msg.Token, &claims, func(t *jwt.Token) (interface{}, error) {
		return c.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("%w: %v", ierr.ErrUntrustedSender, err)
	}

	if claims.ScriptKey != conf.ScriptKey || claims.ClientID != conf.ClientID {
		return fmt.Errorf("%w: token does not match message", ierr.ErrUntrustedSender)
	}
	return nil
}

// SignConfirmation issues a token accepted by SignedConfirmer.
func SignConfirmation(secret []byte, conf Confirmation, claims jwt.RegisteredClaims) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("confirmation secret is empty")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ConfirmationClaims{
		ScriptKey:        conf.ScriptKey,
		ClientID:         conf.ClientID,
		RegisteredClaims: claims,
	})
	return token.SignedString(secret)
}

// NewTrustedConfirmer returns a SignedConfirmer when a secret is configured
// and falls back to sender identity alone otherwise.
func NewTrustedConfirmer(trustedID, secret string) TrustedConfirmer {
	identity := IdentityConfirmer{TrustedID: trustedID}
	if secret == "" {
		return identity
	}
	return SignedConfirmer{IdentityConfirmer: identity, Secret: []byte(secret)}
}
