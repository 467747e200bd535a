package generator

import (
	"github.com/google/uuid"
)

// Generator produces a new value on each call to Next.
type Generator[T any] interface {
	Next() (T, error)
}

// UUIDV4Generator produces random UUIDv4 strings. Flow instance IDs use it.
type UUIDV4Generator struct{}

func (g *UUIDV4Generator) Next() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var _ Generator[string] = &UUIDV4Generator{}

// UUIDV7Generator produces time-ordered UUIDv7 strings, so rows keyed by
// them are inserted in roughly ascending key order.
type UUIDV7Generator struct{}

func (g *UUIDV7Generator) Next() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var _ Generator[string] = &UUIDV7Generator{}
