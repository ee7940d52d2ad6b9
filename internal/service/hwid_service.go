package service

import (
	"context"
	"fmt"
	"time"

	"github.com/makkenzo/keybind-service/internal/domain/key"
	"github.com/makkenzo/keybind-service/internal/storage"
	"github.com/makkenzo/keybind-service/internal/util"
	"go.uber.org/zap"
)

type Clock func() time.Time

// HWIDService manages the per-user HWID assignment. It is separate from the
// HWID a key receives through confirmation; a reset clears the latter but
// does not copy one into the other.
type HWIDService struct {
	store    storage.DocumentStore
	locker   *storage.Locker
	registry *KeyRegistry
	cooldown *CooldownLedger
	suffix   util.CodeGenerator
	now      Clock
	logger   *zap.Logger
}

func NewHWIDService(
	store storage.DocumentStore,
	locker *storage.Locker,
	registry *KeyRegistry,
	cooldown *CooldownLedger,
	suffix util.CodeGenerator,
	now Clock,
	logger *zap.Logger,
) *HWIDService {
	if suffix == nil {
		suffix = util.HWIDSuffix(8)
	}
	if now == nil {
		now = time.Now
	}
	return &HWIDService{
		store:    store,
		locker:   locker,
		registry: registry,
		cooldown: cooldown,
		suffix:   suffix,
		now:      now,
		logger:   logger.Named("HWIDService"),
	}
}

func (s *HWIDService) newHWID(userID string) (string, error) {
	suffix, err := s.suffix.Generate()
	if err != nil {
		return "", fmt.Errorf("failed to generate hwid suffix: %w", err)
	}
	return fmt.Sprintf("@%s-%s", userID, suffix), nil
}

func (s *HWIDService) load(ctx context.Context) (key.HWIDs, error) {
	hwids := make(key.HWIDs)
	if _, err := s.store.Load(ctx, storage.DocHWIDs, &hwids); err != nil {
		return nil, fmt.Errorf("failed to load hwids: %w", err)
	}
	return hwids, nil
}

// GetOrCreate returns the user's HWID, issuing one on first use.
func (s *HWIDService) GetOrCreate(ctx context.Context, userID string) (string, error) {
	var hwid string
	err := s.locker.Do(func() error {
		hwids, err := s.load(ctx)
		if err != nil {
			return err
		}
		if existing, ok := hwids[userID]; ok {
			hwid = existing
			return nil
		}

		hwid, err = s.newHWID(userID)
		if err != nil {
			return err
		}
		hwids[userID] = hwid
		if err := s.store.Save(ctx, storage.DocHWIDs, hwids); err != nil {
			return fmt.Errorf("failed to save hwids: %w", err)
		}
		s.logger.Info("Issued HWID", zap.String("user_id", userID), zap.String("hwid", hwid))
		return nil
	})
	if err != nil {
		return "", err
	}
	return hwid, nil
}

// Reset issues a fresh HWID and releases the HWID bound to the user's key so
// it can be confirmed again. The cooldown is recorded only after both saves
// succeed; an active cooldown or a failed save leaves the window open.
func (s *HWIDService) Reset(ctx context.Context, userID string) (string, error) {
	var hwid string
	err := s.locker.Do(func() error {
		now := s.now()
		cooldowns, err := s.cooldown.check(ctx, userID, now)
		if err != nil {
			return err
		}

		hwids, err := s.load(ctx)
		if err != nil {
			return err
		}
		hwid, err = s.newHWID(userID)
		if err != nil {
			return err
		}
		hwids[userID] = hwid
		if err := s.store.Save(ctx, storage.DocHWIDs, hwids); err != nil {
			return fmt.Errorf("failed to save hwids: %w", err)
		}

		released, err := s.registry.releaseBoundHWID(ctx, userID)
		if err != nil {
			return err
		}
		if released != "" {
			s.logger.Info("Released key HWID for reconfirmation", zap.String("user_id", userID), zap.String("code", released))
		}

		return s.cooldown.consume(ctx, cooldowns, userID, now)
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("HWID reset", zap.String("user_id", userID), zap.String("hwid", hwid))
	return hwid, nil
}
