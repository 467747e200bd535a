package datalayer

import (
	"context"
	"errors"
	"strings"
)

var ErrSoundNotFound = errors.New("sound not found in audio store")

// AudioStore is where the raw clips live. Sounds are addressed by display
// name; the file or object backing a sound is its name plus a fixed extension.
type AudioStore interface {
	// List returns the display name of every sound in the store.
	List(ctx context.Context) ([]string, error)
	// Fetch copies a sound into scratchDir and returns the path of the copy.
	// It returns ErrSoundNotFound if the store has no such sound.
	Fetch(ctx context.Context, name, scratchDir string) (string, error)
}

// soundName strips ext from a file or object base name.
// ok is false when the name does not carry the extension.
func soundName(base, ext string) (string, bool) {
	name, ok := strings.CutSuffix(base, ext)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// validName rejects names that could escape the store's directory or prefix.
func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
