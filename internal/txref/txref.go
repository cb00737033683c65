// Package txref generates the transaction references that correlate a Chapa
// checkout with the chat that started it.
package txref

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/google/uuid"
)

const (
	// StrategyRandom appends a 4-digit number in [1000, 9999] to the prefix.
	StrategyRandom = "random"
	// StrategyUUID appends a random UUID to the prefix.
	StrategyUUID = "uuid"

	randomMin = 1000
	randomMax = 9999
)

// Generator produces transaction references.
type Generator interface {
	Generate() string
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func() string

// Generate calls f.
func (f GeneratorFunc) Generate() string {
	return f()
}

// Random yields prefix + a 4-digit number. Only 9000 distinct values exist per
// prefix, so collisions between concurrent checkouts are likely over time.
type Random struct {
	prefix string
	intN   func(n int) int
}

// NewRandom constructs a Random generator.
func NewRandom(prefix string) *Random {
	return &Random{prefix: prefix, intN: rand.Intn}
}

// Generate returns the next reference.
func (r *Random) Generate() string {
	return r.prefix + strconv.Itoa(randomMin+r.intN(randomMax-randomMin+1))
}

// UUID yields prefix + a version 4 UUID.
type UUID struct {
	prefix string
}

// NewUUID constructs a UUID generator.
func NewUUID(prefix string) *UUID {
	return &UUID{prefix: prefix}
}

// Generate returns the next reference.
func (u *UUID) Generate() string {
	return u.prefix + uuid.NewString()
}

// New selects a generator by strategy name.
func New(strategy, prefix string) (Generator, error) {
	switch strategy {
	case StrategyRandom, "":
		return NewRandom(prefix), nil
	case StrategyUUID:
		return NewUUID(prefix), nil
	default:
		return nil, fmt.Errorf("unknown tx_ref strategy %q", strategy)
	}
}
