package settings

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"snipe-console/internal/domain"
	"snipe-console/internal/notify"
)

// AdminRemote is the admin-list part of the backend API.
type AdminRemote interface {
	Admins(ctx context.Context, list domain.AdminList) ([]domain.AdminEntry, error)
	AddAdmin(ctx context.Context, list domain.AdminList, entry domain.AdminEntry) (domain.AdminEntry, error)
	RemoveAdmin(ctx context.Context, list domain.AdminList, id string) error
	UpdateAdmin(ctx context.Context, list domain.AdminList, id string, cfg domain.TokenConfig) error
}

// Lists holds the primary and secondary admin lists as last loaded from,
// or confirmed by, the backend.
type Lists struct {
	mu       sync.RWMutex
	entries  map[domain.AdminList][]domain.AdminEntry
	remote   AdminRemote
	notifier notify.Notifier
	global   func() domain.GlobalSnipeSettings
	logger   zerolog.Logger
}

func newLists(remote AdminRemote, notifier notify.Notifier, global func() domain.GlobalSnipeSettings, logger zerolog.Logger) *Lists {
	return &Lists{
		entries:  make(map[domain.AdminList][]domain.AdminEntry),
		remote:   remote,
		notifier: notifier,
		global:   global,
		logger:   logger,
	}
}

// Load replaces a list with the backend's copy.
func (l *Lists) Load(ctx context.Context, list domain.AdminList) error {
	if !list.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownList, list)
	}

	entries, err := l.remote.Admins(ctx, list)
	if err != nil {
		return l.failed("load "+string(list)+" admins", err)
	}

	l.mu.Lock()
	l.entries[list] = entries
	l.mu.Unlock()

	l.logger.Debug().Str("list", string(list)).Int("entries", len(entries)).Msg("admin list loaded")
	return nil
}

// LoadAll loads both lists.
func (l *Lists) LoadAll(ctx context.Context) error {
	if err := l.Load(ctx, domain.ListPrimary); err != nil {
		return err
	}
	return l.Load(ctx, domain.ListSecondary)
}

// Add creates an entry. An entry without a config inherits the confirmed
// global snipe settings as of now.
func (l *Lists) Add(ctx context.Context, list domain.AdminList, entry domain.AdminEntry) (domain.AdminEntry, error) {
	if !list.IsValid() {
		return domain.AdminEntry{}, fmt.Errorf("%w: %q", domain.ErrUnknownList, list)
	}
	if entry.Value == "" {
		l.notifier.Push(domain.NotifyWarning, "Enter a wallet address or Twitter handle")
		return domain.AdminEntry{}, domain.ErrMissingField
	}
	if entry.Config == nil {
		cfg := l.global().TokenConfig()
		entry.Config = &cfg
	}
	entry.List = list

	stored, err := l.remote.AddAdmin(ctx, list, entry)
	if err != nil {
		return domain.AdminEntry{}, l.failed("add admin", err)
	}
	if stored.Config == nil {
		stored.Config = entry.Config
	}

	l.mu.Lock()
	l.entries[list] = append(l.entries[list], stored)
	l.mu.Unlock()

	l.notifier.Push(domain.NotifySuccess, fmt.Sprintf("Added %s to %s list", stored.Value, list))
	return stored, nil
}

// Remove deletes an entry.
func (l *Lists) Remove(ctx context.Context, list domain.AdminList, id string) error {
	if !list.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownList, list)
	}
	if err := l.remote.RemoveAdmin(ctx, list, id); err != nil {
		return l.failed("remove admin", err)
	}

	l.mu.Lock()
	entries := l.entries[list]
	for i, e := range entries {
		if e.ID == id {
			l.entries[list] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	l.mu.Unlock()
	return nil
}

// UpdateConfig replaces the per-entity config of an entry.
func (l *Lists) UpdateConfig(ctx context.Context, list domain.AdminList, id string, cfg domain.TokenConfig) error {
	if !list.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownList, list)
	}
	if !cfg.Amount.IsPositive() {
		l.notifier.Push(domain.NotifyWarning, "Amount must be greater than 0")
		return domain.ErrInvalidAmount
	}
	if err := l.remote.UpdateAdmin(ctx, list, id, cfg); err != nil {
		return l.failed("update admin", err)
	}

	l.mu.Lock()
	for i := range l.entries[list] {
		if l.entries[list][i].ID == id {
			c := cfg
			l.entries[list][i].Config = &c
		}
	}
	l.mu.Unlock()
	return nil
}

// Entries returns a copy of a list.
func (l *Lists) Entries(list domain.AdminList) []domain.AdminEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	src := l.entries[list]
	out := make([]domain.AdminEntry, len(src))
	for i, e := range src {
		out[i] = e
		if e.Config != nil {
			c := *e.Config
			out[i].Config = &c
		}
	}
	return out
}

// applyGlobal overwrites amount, fees and priority fee on every entry of
// both lists and returns how many entries were touched.
func (l *Lists) applyGlobal(g domain.GlobalSnipeSettings) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for list, entries := range l.entries {
		for i := range entries {
			cfg := g.TokenConfig()
			if old := entries[i].Config; old != nil {
				cfg.MEVProtection = old.MEVProtection
				cfg.Sound = old.Sound
			}
			entries[i].Config = &cfg
			n++
		}
		l.entries[list] = entries
	}
	return n
}

func (l *Lists) failed(action string, err error) error {
	l.logger.Error().Err(err).Msg(action + " failed")
	l.notifier.Push(domain.NotifyError, fmt.Sprintf("Failed to %s: %v", action, err))
	return fmt.Errorf("%s: %w", action, err)
}
