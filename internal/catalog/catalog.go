// Package catalog holds the set of sounds the bot knows how to play.
//
// A Catalog is an immutable snapshot keyed by the normalized form of each
// sound's display name. Reloading builds a new snapshot and swaps it into a
// Holder; snapshots are never mutated after construction.
package catalog

import (
	"slices"
	"strings"
	"unicode"
)

// Normalize returns the lookup key for s: every rune that is not a letter
// or digit is dropped and the remainder is lowercased.
// The same function is applied to display names and to queries.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Entry is a single playable sound.
type Entry struct {
	Key         string
	DisplayName string
}

// Collision records a display name that was dropped because an earlier
// name normalized to the same key.
type Collision struct {
	Key     string
	Kept    string
	Dropped string
}

// Catalog maps normalized keys to entries.
type Catalog struct {
	entries map[string]Entry
	keys    []string
}

// New builds a catalog from display names. When two names normalize to the
// same key the first one wins and the rest are reported as collisions.
// Names that normalize to the empty string are skipped.
func New(names []string) (*Catalog, []Collision) {
	c := &Catalog{entries: make(map[string]Entry, len(names))}

	var collisions []Collision
	for _, name := range names {
		key := Normalize(name)
		if key == "" {
			continue
		}
		if existing, ok := c.entries[key]; ok {
			collisions = append(collisions, Collision{
				Key:     key,
				Kept:    existing.DisplayName,
				Dropped: name,
			})
			continue
		}
		c.entries[key] = Entry{Key: key, DisplayName: name}
		c.keys = append(c.keys, key)
	}
	slices.Sort(c.keys)

	return c, collisions
}

// Len returns the number of entries. A nil catalog is empty.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Lookup returns the entry stored under key.
func (c *Catalog) Lookup(key string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	e, ok := c.entries[key]
	return e, ok
}

// LookupDisplayName returns the entry whose display name is exactly name.
func (c *Catalog) LookupDisplayName(name string) (Entry, bool) {
	e, ok := c.Lookup(Normalize(name))
	if !ok || e.DisplayName != name {
		return Entry{}, false
	}
	return e, true
}

// Keys returns every key in ascending order. The slice is a copy.
func (c *Catalog) Keys() []string {
	if c == nil {
		return nil
	}
	return slices.Clone(c.keys)
}

// Entries returns every entry sorted by display name.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	entries := make([]Entry, 0, len(c.keys))
	for _, k := range c.keys {
		entries = append(entries, c.entries[k])
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.DisplayName, b.DisplayName)
	})
	return entries
}
