package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/makkenzo/keybind-service/internal/domain/key"
	"github.com/makkenzo/keybind-service/internal/ierr"
	"github.com/makkenzo/keybind-service/internal/storage"
	"go.uber.org/zap"
)

const DefaultResetCooldown = 24 * time.Hour

// CooldownLedger throttles HWID resets per user.
type CooldownLedger struct {
	store  storage.DocumentStore
	locker *storage.Locker
	period time.Duration
	logger *zap.Logger
}

func NewCooldownLedger(store storage.DocumentStore, locker *storage.Locker, period time.Duration, logger *zap.Logger) *CooldownLedger {
	if period <= 0 {
		period = DefaultResetCooldown
	}
	return &CooldownLedger{
		store:  store,
		locker: locker,
		period: period,
		logger: logger.Named("CooldownLedger"),
	}
}

func (l *CooldownLedger) Period() time.Duration { return l.period }

func (l *CooldownLedger) load(ctx context.Context) (key.Cooldowns, error) {
	cooldowns := make(key.Cooldowns)
	if _, err := l.store.Load(ctx, storage.DocCooldowns, &cooldowns); err != nil {
		return nil, fmt.Errorf("failed to load cooldowns: %w", err)
	}
	return cooldowns, nil
}

// Timestamps are unix seconds with microsecond precision, which a float64
// holds exactly for present-day dates.
func toUnix(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

func fromUnix(ts float64) time.Time {
	return time.UnixMicro(int64(math.Round(ts * 1e6)))
}

// CheckAndConsume records now as the user's last reset, unless the previous
// reset is younger than the cooldown period.
func (l *CooldownLedger) CheckAndConsume(ctx context.Context, userID string, now time.Time) error {
	return l.locker.Do(func() error {
		return l.checkAndConsume(ctx, userID, now)
	})
}

func (l *CooldownLedger) checkAndConsume(ctx context.Context, userID string, now time.Time) error {
	cooldowns, err := l.check(ctx, userID, now)
	if err != nil {
		return err
	}
	return l.consume(ctx, cooldowns, userID, now)
}

// check fails with CooldownActiveError while the window is open and returns
// the loaded ledger for a later consume. The caller must hold the locker.
func (l *CooldownLedger) check(ctx context.Context, userID string, now time.Time) (key.Cooldowns, error) {
	cooldowns, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	if last, ok := cooldowns[userID]; ok {
		elapsed := now.Sub(fromUnix(last))
		if elapsed < l.period {
			remaining := l.period - elapsed
			l.logger.Info("Cooldown still active", zap.String("user_id", userID), zap.Duration("remaining", remaining))
			return nil, &ierr.CooldownActiveError{Remaining: remaining}
		}
	}
	return cooldowns, nil
}

func (l *CooldownLedger) consume(ctx context.Context, cooldowns key.Cooldowns, userID string, now time.Time) error {
	cooldowns[userID] = toUnix(now)
	if err := l.store.Save(ctx, storage.DocCooldowns, cooldowns); err != nil {
		return fmt.Errorf("failed to save cooldowns: %w", err)
	}
	return nil
}

// Clear drops the user's cooldown entry.
func (l *CooldownLedger) Clear(ctx context.Context, userID string) error {
	err := l.locker.Do(func() error {
		cooldowns, err := l.load(ctx)
		if err != nil {
			return err
		}
		if _, ok := cooldowns[userID]; !ok {
			return ierr.ErrNoCooldownRecord
		}
		delete(cooldowns, userID)
		return l.store.Save(ctx, storage.DocCooldowns, cooldowns)
	})
	if err != nil {
		return err
	}

	l.logger.Info("Cooldown cleared", zap.String("user_id", userID))
	return nil
}
