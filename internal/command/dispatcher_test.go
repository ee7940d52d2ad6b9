package command

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/makkenzo/keybind-service/internal/ierr"
	"github.com/makkenzo/keybind-service/internal/metrics"
	"github.com/makkenzo/keybind-service/internal/service"
	"github.com/makkenzo/keybind-service/internal/storage"
	"github.com/makkenzo/keybind-service/internal/storage/memstorage"
	"github.com/makkenzo/keybind-service/internal/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	buyerRole = "buyer-role"
	adminRole = "admin-role"
)

var (
	buyer = Caller{ID: "U1", Roles: []string{buyerRole}}
	admin = Caller{ID: "A1", Roles: []string{adminRole}}
	guest = Caller{ID: "G1"}
)

type harness struct {
	d        *Dispatcher
	registry *service.KeyRegistry
	metrics  *metrics.Metrics
	now      time.Time
}

func newHarness(t *testing.T, codes ...string) *harness {
	t.Helper()
	logger := zap.NewNop()
	store := memstorage.NewStore()
	locker := storage.NewLocker()

	h := &harness{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	next := 0
	gen := util.GeneratorFunc(func() (string, error) {
		if next >= len(codes) {
			return "", errors.New("no more codes")
		}
		c := codes[next]
		next++
		return c, nil
	})
	suffixes := 0
	suffix := util.GeneratorFunc(func() (string, error) {
		suffixes++
		return strings.Repeat(string(rune('A'+suffixes-1)), 8), nil
	})

	h.registry = service.NewKeyRegistry(store, locker, service.KeyRegistryOptions{Codes: gen}, logger)
	cooldown := service.NewCooldownLedger(store, locker, service.DefaultResetCooldown, logger)
	hwids := service.NewHWIDService(store, locker, h.registry, cooldown, suffix, func() time.Time { return h.now }, logger)
	h.metrics = metrics.New(prometheus.NewRegistry())
	h.d = NewDispatcher(h.registry, hwids, cooldown, RoleMap{BuyerRoleID: buyerRole, AdminRoleID: adminRole}, h.metrics, logger)
	return h
}

func (h *harness) run(t *testing.T, caller Caller, name string, args ...string) *Result {
	t.Helper()
	res, err := h.d.Execute(context.Background(), Invocation{Name: name, Caller: caller, Args: args})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func (h *harness) text(t *testing.T, caller Caller, name string, args ...string) string {
	t.Helper()
	res := h.run(t, caller, name, args...)
	require.Len(t, res.Messages, 1)
	return res.Messages[0]
}

func TestHelloNeedsNoRole(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "Hello!", h.text(t, guest, "hello"))
}

func TestRoleGates(t *testing.T) {
	h := newHarness(t, "12345678901")
	denied := "You do not have permission to use this command."

	for _, name := range []string{"clear", "hwid", "resethwid", "redeemkey"} {
		res := h.run(t, guest, name, "1")
		assert.Equal(t, OutcomeDenied, res.Outcome, name)
		assert.Equal(t, []string{denied}, res.Messages, name)
	}
	for _, name := range []string{"resetcooldown", "keyinfo", "genkey", "viewusedkeys"} {
		res := h.run(t, buyer, name, "1")
		assert.Equal(t, OutcomeDenied, res.Outcome, name)
		assert.Equal(t, []string{denied}, res.Messages, name)
	}

	_, err := h.registry.Describe(context.Background(), "12345678901")
	assert.ErrorIs(t, err, ierr.ErrKeyNotFound, "denied genkey must not mutate state")

	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.Commands.WithLabelValues("genkey", OutcomeDenied)))
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	_, err := h.d.Execute(context.Background(), Invocation{Name: "nope", Caller: admin})
	assert.ErrorIs(t, err, ierr.ErrUnknownCommand)
}

func TestClear(t *testing.T) {
	h := newHarness(t)

	for _, arg := range []string{"0", "101", "abc"} {
		res := h.run(t, buyer, "clear", arg)
		assert.Equal(t, []string{"Please provide a number between 1 and 100."}, res.Messages, arg)
		assert.Zero(t, res.PurgeCount)
	}

	res := h.run(t, buyer, "clear", "25")
	assert.Equal(t, 25, res.PurgeCount)
	assert.Equal(t, 5*time.Second, res.DeleteAfter)
	assert.Equal(t, []string{"Deleted: 25 messages."}, res.Messages)
}

func TestKeyLifecycleThroughCommands(t *testing.T) {
	h := newHarness(t, "12345678901", "10987654321")

	assert.Equal(t, "Please specify a positive number of keys to generate.", h.text(t, admin, "genkey", "0"))
	assert.Equal(t, "Successfully generated 2 keys.", h.text(t, admin, "genkey", "2"))
	assert.Equal(t, float64(2), testutil.ToFloat64(h.metrics.Keys.WithLabelValues("Unredeemed")))

	assert.Equal(t, "No keys have been used yet.", h.text(t, admin, "viewusedkeys"))
	assert.Equal(t, "Key: 12345678901 has not been redeemed yet.", h.text(t, admin, "keyinfo", "12345678901"))

	assert.Equal(t, "Key 00000000000 does not exist.", h.text(t, buyer, "redeemkey", "00000000000"))
	assert.Equal(t, "Key 12345678901 successfully redeemed! Awaiting HWID confirmation.", h.text(t, buyer, "redeemkey", "12345678901"))
	assert.Equal(t, "Failed to redeem key 12345678901. It may be invalid or already used.", h.text(t, buyer, "redeemkey", "12345678901"))

	assert.Equal(t, "Key: 12345678901\nRedeemed by: <@U1>\nHWID: Not yet confirmed", h.text(t, admin, "keyinfo", "12345678901"))
	assert.Equal(t, "Used keys:\n12345678901", h.text(t, admin, "viewusedkeys"))

	require.NoError(t, h.registry.ConfirmHWID(context.Background(), "12345678901", "ABC-123"))
	assert.Equal(t, "Key: 12345678901\nRedeemed by: <@U1>\nHWID: ABC-123", h.text(t, admin, "keyinfo", "12345678901"))
	assert.Equal(t, "Key 55555555555 does not exist.", h.text(t, admin, "keyinfo", "55555555555"))
}

func TestMissingArguments(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "Usage: redeemkey <key>", h.text(t, buyer, "redeemkey"))
	assert.Equal(t, "Usage: keyinfo <key>", h.text(t, admin, "keyinfo"))
	assert.Equal(t, "Usage: resetcooldown <user>", h.text(t, admin, "resetcooldown"))
	assert.Equal(t, "Please specify a positive number of keys to generate.", h.text(t, admin, "genkey"))
}

func TestHWIDCommands(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "Your HWID is: @U1-AAAAAAAA", h.text(t, buyer, "hwid"))
	assert.Equal(t, "Your HWID is: @U1-AAAAAAAA", h.text(t, buyer, "hwid"))

	assert.Equal(t, "Your HWID has been reset. New HWID is: @U1-BBBBBBBB", h.text(t, buyer, "resethwid"))

	h.now = h.now.Add(90*time.Minute + 30*time.Second)
	res := h.run(t, buyer, "resethwid")
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Equal(t, []string{"<@U1>, you need to wait 22 hours, 29 minutes, and 30 seconds before using this command again."}, res.Messages)
	assert.Equal(t, "Your HWID is: @U1-BBBBBBBB", h.text(t, buyer, "hwid"))

	assert.Equal(t, "Cooldown for <@U1> has been reset.", h.text(t, admin, "resetcooldown", "<@!U1>"))
	assert.Equal(t, "<@U1> does not have a cooldown record.", h.text(t, admin, "resetcooldown", "U1"))
	assert.Equal(t, "Your HWID has been reset. New HWID is: @U1-CCCCCCCC", h.text(t, buyer, "resethwid"))
}

func TestParseUserRef(t *testing.T) {
	cases := map[string]string{
		"123":     "123",
		"<@123>":  "123",
		"<@!123>": "123",
		"@123":    "123",
	}
	for in, want := range cases {
		got, ok := ParseUserRef(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "<@>", "a b"} {
		_, ok := ParseUserRef(in)
		assert.False(t, ok, in)
	}
}

func TestRoleMapRequiresConfiguredRole(t *testing.T) {
	m := RoleMap{}
	assert.True(t, m.Allows(RoleNone, nil))
	assert.False(t, m.Allows(RoleBuyer, []string{""}))
}
