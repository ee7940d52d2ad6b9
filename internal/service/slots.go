package service

import "github.com/makkenzo/keybind-service/internal/domain/key"

// SlotPolicy decides how a redemption is recorded against the redeeming user.
type SlotPolicy interface {
	Assign(users key.UserKeys, userID, code string)
	KeyFor(users key.UserKeys, userID string) (string, bool)
}

// SingleSlot keeps one key per user; a later redemption replaces the earlier
// mapping, although the earlier key stays redeemed.
type SingleSlot struct{}

func (SingleSlot) Assign(users key.UserKeys, userID, code string) {
	users[userID] = code
}

func (SingleSlot) KeyFor(users key.UserKeys, userID string) (string, bool) {
	code, ok := users[userID]
	return code, ok
}
