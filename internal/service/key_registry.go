package service

import (
	"context"
	"fmt"

	"github.com/makkenzo/keybind-service/internal/domain/key"
	"github.com/makkenzo/keybind-service/internal/ierr"
	"github.com/makkenzo/keybind-service/internal/storage"
	"github.com/makkenzo/keybind-service/internal/util"
	"go.uber.org/zap"
)

type KeyRegistryOptions struct {
	Codes       util.CodeGenerator
	UniqueCodes bool
	Slots       SlotPolicy
}

// KeyRegistry owns the keys document together with the user mapping and the
// used-key log that a redemption writes alongside it.
type KeyRegistry struct {
	store  storage.DocumentStore
	locker *storage.Locker
	codes  util.CodeGenerator
	unique bool
	slots  SlotPolicy
	logger *zap.Logger
}

func NewKeyRegistry(store storage.DocumentStore, locker *storage.Locker, opts KeyRegistryOptions, logger *zap.Logger) *KeyRegistry {
	if opts.Codes == nil {
		opts.Codes = util.DigitCodes(11)
	}
	if opts.Slots == nil {
		opts.Slots = SingleSlot{}
	}
	return &KeyRegistry{
		store:  store,
		locker: locker,
		codes:  opts.Codes,
		unique: opts.UniqueCodes,
		slots:  opts.Slots,
		logger: logger.Named("KeyRegistry"),
	}
}

func (r *KeyRegistry) loadKeys(ctx context.Context) (key.Set, error) {
	keys := make(key.Set)
	if _, err := r.store.Load(ctx, storage.DocKeys, &keys); err != nil {
		return nil, fmt.Errorf("failed to load keys: %w", err)
	}
	return keys, nil
}

func (r *KeyRegistry) loadUsers(ctx context.Context) (key.UserKeys, error) {
	users := make(key.UserKeys)
	if _, err := r.store.Load(ctx, storage.DocUsers, &users); err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	return users, nil
}

func (r *KeyRegistry) loadUsedKeys(ctx context.Context) (key.UsedLog, bool, error) {
	used := make(key.UsedLog, 0)
	found, err := r.store.Load(ctx, storage.DocUsedKeys, &used)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load used keys: %w", err)
	}
	if used == nil {
		used = make(key.UsedLog, 0)
	}
	return used, found, nil
}

// Generate adds n unredeemed keys and returns their codes. Without UniqueCodes
// a code colliding with an existing one replaces that entry.
func (r *KeyRegistry) Generate(ctx context.Context, n int) ([]string, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: key count must be positive, got %d", ierr.ErrInvalidArgument, n)
	}

	var codes []string
	err := r.locker.Do(func() error {
		keys, err := r.loadKeys(ctx)
		if err != nil {
			return err
		}

		codes, err = r.generateInto(keys, n)
		if err != nil {
			return err
		}

		return r.store.Save(ctx, storage.DocKeys, keys)
	})
	if err != nil {
		r.logger.Error("Failed to generate keys", zap.Int("count", n), zap.Error(err))
		return nil, err
	}

	r.logger.Info("Keys generated", zap.Int("count", len(codes)))
	return codes, nil
}

func (r *KeyRegistry) generateInto(keys key.Set, n int) ([]string, error) {
	gen := r.codes
	if r.unique {
		gen = &util.UniqueGenerator{
			Next: r.codes,
			Exists: func(code string) bool {
				_, ok := keys[code]
				return ok
			},
		}
	}

	codes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		code, err := gen.Generate()
		if err != nil {
			return nil, fmt.Errorf("failed to generate key code: %w", err)
		}
		if _, exists := keys[code]; exists {
			r.logger.Warn("Generated key code collides with an existing key, overwriting", zap.String("code", code))
		}
		keys[code] = &key.Key{Code: code}
		codes = append(codes, code)
	}
	return codes, nil
}

// Bootstrap seeds the keys document when it is empty and makes sure the
// used-key log exists.
func (r *KeyRegistry) Bootstrap(ctx context.Context, n int) error {
	return r.locker.Do(func() error {
		keys, err := r.loadKeys(ctx)
		if err != nil {
			return err
		}
		if len(keys) == 0 && n > 0 {
			codes, err := r.generateInto(keys, n)
			if err != nil {
				return err
			}
			if err := r.store.Save(ctx, storage.DocKeys, keys); err != nil {
				return fmt.Errorf("failed to save bootstrap keys: %w", err)
			}
			r.logger.Info("Bootstrapped key set", zap.Int("count", len(codes)))
		}

		_, found, err := r.loadUsedKeys(ctx)
		if err != nil {
			return err
		}
		if !found {
			if err := r.store.Save(ctx, storage.DocUsedKeys, make(key.UsedLog, 0)); err != nil {
				return fmt.Errorf("failed to initialize used keys: %w", err)
			}
			r.logger.Info("Initialized empty used-key log")
		}
		return nil
	})
}

// RedeemUnconfirmed claims an unredeemed key for userID. The key then waits
// for its HWID confirmation.
func (r *KeyRegistry) RedeemUnconfirmed(ctx context.Context, code, userID string) error {
	err := r.locker.Do(func() error {
		keys, err := r.loadKeys(ctx)
		if err != nil {
			return err
		}

		k, ok := keys[code]
		if !ok {
			return ierr.ErrKeyNotFound
		}
		if k.State() != key.StateUnredeemed {
			return ierr.ErrAlreadyRedeemed
		}

		users, err := r.loadUsers(ctx)
		if err != nil {
			return err
		}
		used, _, err := r.loadUsedKeys(ctx)
		if err != nil {
			return err
		}

		k.RedeemedBy = userID
		k.HWID = nil
		r.slots.Assign(users, userID, code)
		used = append(used, code)

		if err := r.store.Save(ctx, storage.DocUsedKeys, used); err != nil {
			return fmt.Errorf("failed to save used keys: %w", err)
		}
		if err := r.store.Save(ctx, storage.DocKeys, keys); err != nil {
			return fmt.Errorf("failed to save keys: %w", err)
		}
		if err := r.store.Save(ctx, storage.DocUsers, users); err != nil {
			return fmt.Errorf("failed to save users: %w", err)
		}
		return nil
	})
	if err != nil {
		r.logger.Info("Key redemption rejected", zap.String("code", code), zap.String("user_id", userID), zap.Error(err))
		return err
	}

	r.logger.Info("Key redeemed, awaiting HWID confirmation", zap.String("code", code), zap.String("user_id", userID))
	return nil
}

// ConfirmHWID binds hwid to a redeemed key. Only the first confirmation is
// accepted.
func (r *KeyRegistry) ConfirmHWID(ctx context.Context, code, hwid string) error {
	err := r.locker.Do(func() error {
		keys, err := r.loadKeys(ctx)
		if err != nil {
			return err
		}

		k, ok := keys[code]
		if !ok {
			return ierr.ErrKeyNotFound
		}
		switch k.State() {
		case key.StateUnredeemed:
			return ierr.ErrKeyNotRedeemed
		case key.StateBound:
			return ierr.ErrHWIDAlreadySet
		}

		bound := hwid
		k.HWID = &bound
		return r.store.Save(ctx, storage.DocKeys, keys)
	})
	if err != nil {
		r.logger.Info("HWID confirmation not applied", zap.String("code", code), zap.Error(err))
		return err
	}

	r.logger.Info("HWID bound to key", zap.String("code", code), zap.String("hwid", hwid))
	return nil
}

// Describe returns a copy of the key for display.
func (r *KeyRegistry) Describe(ctx context.Context, code string) (*key.Key, error) {
	keys, err := r.loadKeys(ctx)
	if err != nil {
		return nil, err
	}
	k, ok := keys[code]
	if !ok {
		return nil, ierr.ErrKeyNotFound
	}
	keyCopy := *k
	return &keyCopy, nil
}

func (r *KeyRegistry) UsedKeys(ctx context.Context) ([]string, error) {
	used, _, err := r.loadUsedKeys(ctx)
	if err != nil {
		return nil, err
	}
	return used, nil
}

func (r *KeyRegistry) Stats(ctx context.Context) (map[key.State]int, error) {
	keys, err := r.loadKeys(ctx)
	if err != nil {
		return nil, err
	}
	return keys.CountByState(), nil
}

// releaseBoundHWID clears the HWID of the key mapped to userID so the key can
// be confirmed again. The caller must hold the locker.
func (r *KeyRegistry) releaseBoundHWID(ctx context.Context, userID string) (string, error) {
	users, err := r.loadUsers(ctx)
	if err != nil {
		return "", err
	}
	code, ok := r.slots.KeyFor(users, userID)
	if !ok {
		return "", nil
	}

	keys, err := r.loadKeys(ctx)
	if err != nil {
		return "", err
	}
	k, ok := keys[code]
	if !ok || k.State() != key.StateBound {
		return "", nil
	}

	k.HWID = nil
	if err := r.store.Save(ctx, storage.DocKeys, keys); err != nil {
		return "", fmt.Errorf("failed to save keys: %w", err)
	}
	return code, nil
}
