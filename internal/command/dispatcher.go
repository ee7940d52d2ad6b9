// Package command implements the role-gated chat commands. Each command
// parses its arguments, calls one service operation and renders one reply.
package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/makkenzo/keybind-service/internal/domain/key"
	"github.com/makkenzo/keybind-service/internal/ierr"
	"github.com/makkenzo/keybind-service/internal/metrics"
	"github.com/makkenzo/keybind-service/internal/service"
	"go.uber.org/zap"
)

const (
	MaxPurge         = 100
	purgeReplyExpiry = 5 * time.Second
)

const (
	OutcomeOK       = "ok"
	OutcomeDenied   = "denied"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

type Caller struct {
	ID    string
	Roles []string
}

func (c Caller) Mention() string {
	return Mention(c.ID)
}

func Mention(userID string) string {
	return "<@" + userID + ">"
}

type Invocation struct {
	Name   string
	Caller Caller
	Args   []string
}

// Result is what the chat collaborator should post back. PurgeCount asks it
// to delete that many recent channel messages first.
type Result struct {
	Messages    []string
	PurgeCount  int
	DeleteAfter time.Duration
	Outcome     string
}

func reply(outcome string, format string, args ...any) *Result {
	return &Result{Messages: []string{fmt.Sprintf(format, args...)}, Outcome: outcome}
}

type handlerFunc func(ctx context.Context, inv Invocation) (*Result, error)

type definition struct {
	role    Role
	handler handlerFunc
}

type Dispatcher struct {
	registry *service.KeyRegistry
	hwids    *service.HWIDService
	cooldown *service.CooldownLedger
	roles    RoleMap
	metrics  *metrics.Metrics
	logger   *zap.Logger
	commands map[string]definition
}

func NewDispatcher(
	registry *service.KeyRegistry,
	hwids *service.HWIDService,
	cooldown *service.CooldownLedger,
	roles RoleMap,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		hwids:    hwids,
		cooldown: cooldown,
		roles:    roles,
		metrics:  m,
		logger:   logger.Named("CommandDispatcher"),
	}
	d.commands = map[string]definition{
		"hello":         {RoleNone, d.hello},
		"clear":         {RoleBuyer, d.clear},
		"hwid":          {RoleBuyer, d.hwid},
		"resethwid":     {RoleBuyer, d.resetHWID},
		"redeemkey":     {RoleBuyer, d.redeemKey},
		"resetcooldown": {RoleAdmin, d.resetCooldown},
		"keyinfo":       {RoleAdmin, d.keyInfo},
		"genkey":        {RoleAdmin, d.genKey},
		"viewusedkeys":  {RoleAdmin, d.viewUsedKeys},
	}
	return d
}

// Execute runs one command. Domain failures come back as a reply; the error
// is reserved for unknown commands and storage failures.
func (d *Dispatcher) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	name := strings.ToLower(strings.TrimSpace(inv.Name))
	def, ok := d.commands[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ierr.ErrUnknownCommand, inv.Name)
	}

	log := d.logger.With(zap.String("command", name), zap.String("caller_id", inv.Caller.ID))

	if !d.roles.Allows(def.role, inv.Caller.Roles) {
		log.Info("Command denied", zap.String("required_role", string(def.role)))
		d.observe(name, OutcomeDenied)
		return reply(OutcomeDenied, "You do not have permission to use this command."), nil
	}

	res, err := def.handler(ctx, inv)
	if err != nil {
		log.Error("Command failed", zap.Error(err))
		d.observe(name, OutcomeError)
		return nil, fmt.Errorf("command %s: %w", name, err)
	}

	log.Debug("Command handled", zap.String("outcome", res.Outcome))
	d.observe(name, res.Outcome)
	return res, nil
}

func (d *Dispatcher) observe(name, outcome string) {
	if d.metrics != nil {
		d.metrics.ObserveCommand(name, outcome)
	}
}

func (d *Dispatcher) refreshKeyGauge(ctx context.Context) {
	if d.metrics == nil {
		return
	}
	counts, err := d.registry.Stats(ctx)
	if err != nil {
		d.logger.Warn("Failed to refresh key gauge", zap.Error(err))
		return
	}
	d.metrics.SetKeyCounts(counts)
}

func (d *Dispatcher) hello(ctx context.Context, inv Invocation) (*Result, error) {
	return reply(OutcomeOK, "Hello!"), nil
}

func (d *Dispatcher) clear(ctx context.Context, inv Invocation) (*Result, error) {
	amount, err := intArg(inv.Args)
	if err != nil || amount < 1 || amount > MaxPurge {
		return reply(OutcomeRejected, "Please provide a number between 1 and %d.", MaxPurge), nil
	}

	res := reply(OutcomeOK, "Deleted: %d messages.", amount)
	res.PurgeCount = amount
	res.DeleteAfter = purgeReplyExpiry
	return res, nil
}

func (d *Dispatcher) hwid(ctx context.Context, inv Invocation) (*Result, error) {
	hwid, err := d.hwids.GetOrCreate(ctx, inv.Caller.ID)
	if err != nil {
		return nil, err
	}
	return reply(OutcomeOK, "Your HWID is: %s", hwid), nil
}

func (d *Dispatcher) resetHWID(ctx context.Context, inv Invocation) (*Result, error) {
	hwid, err := d.hwids.Reset(ctx, inv.Caller.ID)
	if err != nil {
		var cooldownErr *ierr.CooldownActiveError
		if errors.As(err, &cooldownErr) {
			h, m, s := cooldownErr.Split()
			return reply(OutcomeRejected,
				"%s, you need to wait %d hours, %d minutes, and %d seconds before using this command again.",
				inv.Caller.Mention(), h, m, s), nil
		}
		return nil, err
	}
	d.refreshKeyGauge(ctx)
	return reply(OutcomeOK, "Your HWID has been reset. New HWID is: %s", hwid), nil
}

func (d *Dispatcher) resetCooldown(ctx context.Context, inv Invocation) (*Result, error) {
	if len(inv.Args) < 1 {
		return reply(OutcomeRejected, "Usage: resetcooldown <user>"), nil
	}
	target, ok := ParseUserRef(inv.Args[0])
	if !ok {
		return reply(OutcomeRejected, "Could not resolve user %s.", inv.Args[0]), nil
	}

	err := d.cooldown.Clear(ctx, target)
	switch {
	case err == nil:
		return reply(OutcomeOK, "Cooldown for %s has been reset.", Mention(target)), nil
	case errors.Is(err, ierr.ErrNoCooldownRecord):
		return reply(OutcomeRejected, "%s does not have a cooldown record.", Mention(target)), nil
	default:
		return nil, err
	}
}

func (d *Dispatcher) redeemKey(ctx context.Context, inv Invocation) (*Result, error) {
	if len(inv.Args) < 1 {
		return reply(OutcomeRejected, "Usage: redeemkey <key>"), nil
	}
	code := inv.Args[0]

	err := d.registry.RedeemUnconfirmed(ctx, code, inv.Caller.ID)
	switch {
	case err == nil:
		d.refreshKeyGauge(ctx)
		return reply(OutcomeOK, "Key %s successfully redeemed! Awaiting HWID confirmation.", code), nil
	case errors.Is(err, ierr.ErrKeyNotFound):
		return reply(OutcomeRejected, "Key %s does not exist.", code), nil
	case errors.Is(err, ierr.ErrAlreadyRedeemed):
		return reply(OutcomeRejected, "Failed to redeem key %s. It may be invalid or already used.", code), nil
	default:
		return nil, err
	}
}

func (d *Dispatcher) keyInfo(ctx context.Context, inv Invocation) (*Result, error) {
	if len(inv.Args) < 1 {
		return reply(OutcomeRejected, "Usage: keyinfo <key>"), nil
	}
	code := inv.Args[0]

	k, err := d.registry.Describe(ctx, code)
	if err != nil {
		if errors.Is(err, ierr.ErrKeyNotFound) {
			return reply(OutcomeRejected, "Key %s does not exist.", code), nil
		}
		return nil, err
	}
	return reply(OutcomeOK, "%s", DescribeKey(k)), nil
}

// DescribeKey renders a key the way keyinfo reports it.
func DescribeKey(k *key.Key) string {
	if k.State() == key.StateUnredeemed {
		return fmt.Sprintf("Key: %s has not been redeemed yet.", k.Code)
	}
	hwid := k.BoundHWID()
	if hwid == "" {
		hwid = "Not yet confirmed"
	}
	return fmt.Sprintf("Key: %s\nRedeemed by: %s\nHWID: %s", k.Code, Mention(k.RedeemedBy), hwid)
}

func (d *Dispatcher) genKey(ctx context.Context, inv Invocation) (*Result, error) {
	n, err := intArg(inv.Args)
	if err != nil || n < 1 {
		return reply(OutcomeRejected, "Please specify a positive number of keys to generate."), nil
	}

	codes, err := d.registry.Generate(ctx, n)
	if err != nil {
		return nil, err
	}
	d.refreshKeyGauge(ctx)
	return reply(OutcomeOK, "Successfully generated %d keys.", len(codes)), nil
}

func (d *Dispatcher) viewUsedKeys(ctx context.Context, inv Invocation) (*Result, error) {
	used, err := d.registry.UsedKeys(ctx)
	if err != nil {
		return nil, err
	}
	if len(used) == 0 {
		return reply(OutcomeOK, "No keys have been used yet."), nil
	}
	return reply(OutcomeOK, "Used keys:\n%s", strings.Join(used, "\n")), nil
}

func intArg(args []string) (int, error) {
	if len(args) < 1 {
		return 0, ierr.ErrInvalidArgument
	}
	n, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ierr.ErrInvalidArgument, err)
	}
	return n, nil
}

// ParseUserRef accepts a raw user ID or a chat mention (<@id>, <@!id>, @id).
func ParseUserRef(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "<@") && strings.HasSuffix(ref, ">") {
		ref = strings.TrimSuffix(strings.TrimPrefix(ref, "<@"), ">")
		ref = strings.TrimPrefix(ref, "!")
	} else {
		ref = strings.TrimPrefix(ref, "@")
	}
	if ref == "" || strings.ContainsAny(ref, " <>@") {
		return "", false
	}
	return ref, true
}
