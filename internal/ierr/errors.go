package ierr

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("resource not found")
	ErrInternalServer = errors.New("internal server error")

	ErrAPIKeyNotFound = errors.New("api key not found or disabled")

	ErrKeyNotFound           = errors.New("key not found")
	ErrAlreadyRedeemed       = errors.New("key already redeemed")
	ErrKeyNotRedeemed        = errors.New("key not redeemed")
	ErrHWIDAlreadySet        = errors.New("hwid already set for key")
	ErrCooldownActive        = errors.New("cooldown active")
	ErrNoCooldownRecord      = errors.New("no cooldown record")
	ErrAuthorizationDenied   = errors.New("authorization denied")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrUnknownCommand        = errors.New("unknown command")
	ErrUntrustedSender       = errors.New("confirmation sender is not trusted")
	ErrMalformedConfirmation = errors.New("malformed confirmation message")
)

// CooldownActiveError reports how long a caller still has to wait.
type CooldownActiveError struct {
	Remaining time.Duration
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("%s: %s remaining", ErrCooldownActive, e.Remaining)
}

func (e *CooldownActiveError) Is(target error) bool {
	return target == ErrCooldownActive
}

// Split breaks the remaining wait into whole hours, minutes and seconds.
func (e *CooldownActiveError) Split() (hours, minutes, seconds int64) {
	total := int64(e.Remaining / time.Second)
	hours = total / 3600
	minutes = (total % 3600) / 60
	seconds = total % 60
	return hours, minutes, seconds
}
