package service

import (
	"errors"
	"testing"
	"time"

	"github.com/makkenzo/keybind-service/internal/storage"
	"github.com/makkenzo/keybind-service/internal/storage/memstorage"
	"github.com/makkenzo/keybind-service/internal/util"
	"go.uber.org/zap"
)

type fixture struct {
	store    *memstorage.Store
	registry *KeyRegistry
	cooldown *CooldownLedger
	hwids    *HWIDService
	now      time.Time
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func sequence(codes ...string) util.GeneratorFunc {
	i := 0
	return func() (string, error) {
		if i >= len(codes) {
			return "", errors.New("sequence exhausted")
		}
		c := codes[i]
		i++
		return c, nil
	}
}

func counterSuffix() util.GeneratorFunc {
	n := 0
	return func() (string, error) {
		n++
		return "SUFFIX" + string(rune('A'+n-1)) + "0", nil
	}
}

func newFixture(t *testing.T, codes util.CodeGenerator) *fixture {
	t.Helper()
	logger := zap.NewNop()
	f := &fixture{
		store: memstorage.NewStore(),
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	locker := storage.NewLocker()
	if codes == nil {
		codes = util.DigitCodes(11)
	}
	f.registry = NewKeyRegistry(f.store, locker, KeyRegistryOptions{Codes: codes}, logger)
	f.cooldown = NewCooldownLedger(f.store, locker, DefaultResetCooldown, logger)
	f.hwids = NewHWIDService(f.store, locker, f.registry, f.cooldown, counterSuffix(), f.clock, logger)
	return f
}
