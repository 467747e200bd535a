package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Lister lists the display names of every sound in an audio store.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// Holder publishes the current catalog snapshot to concurrent readers.
// Readers call Load once per request and keep using that snapshot even if a
// reload happens meanwhile.
type Holder struct {
	current atomic.Pointer[Catalog]

	// OnReload, if set, is called with the new snapshot after each successful reload.
	OnReload func(*Catalog)
}

// Load returns the current snapshot, or nil before the first reload.
func (h *Holder) Load() *Catalog {
	return h.current.Load()
}

// Swap replaces the current snapshot and returns the previous one.
func (h *Holder) Swap(c *Catalog) *Catalog {
	return h.current.Swap(c)
}

// Reload lists the store, builds a fresh snapshot and swaps it in.
// On error the current snapshot is left untouched.
func (h *Holder) Reload(ctx context.Context, lister Lister) error {
	names, err := lister.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sounds: %w", err)
	}

	next, collisions := New(names)
	for _, c := range collisions {
		slog.Warn(
			"sound name collides with an existing entry, keeping the first",
			"key", c.Key,
			"kept", c.Kept,
			"dropped", c.Dropped,
		)
	}

	previous := h.Swap(next)
	slog.Info("Catalog loaded", "sounds", next.Len(), "previous", previous.Len())

	if h.OnReload != nil {
		h.OnReload(next)
	}
	return nil
}
