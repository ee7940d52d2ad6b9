package ierr

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCooldownActiveErrorSplit(t *testing.T) {
	err := &CooldownActiveError{Remaining: 5*time.Hour + 7*time.Minute + 9*time.Second + 800*time.Millisecond}

	h, m, s := err.Split()
	assert.Equal(t, int64(5), h)
	assert.Equal(t, int64(7), m)
	assert.Equal(t, int64(9), s)
}

func TestCooldownActiveErrorIs(t *testing.T) {
	var err error = fmt.Errorf("reset: %w", &CooldownActiveError{Remaining: time.Minute})

	assert.True(t, errors.Is(err, ErrCooldownActive))

	var target *CooldownActiveError
	assert.True(t, errors.As(err, &target))
	assert.Equal(t, time.Minute, target.Remaining)
}
