// Package shortcode generates the random short codes that identify links.
package shortcode

import (
	"context"
	"errors"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the 62-character set short codes are drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const (
	// MinLength is the shortest code length the generator accepts.
	MinLength = 5
	// DefaultLength is used when the configured length is below MinLength.
	DefaultLength = 6

	maxAttempts     = 10
	escalationExtra = 2
)

// ErrExhausted is returned when every attempt, including the final one at an
// escalated length, collided with an existing code.
var ErrExhausted = errors.New("short code space exhausted")

// ExistenceChecker reports whether a short code is already taken.
type ExistenceChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// Generator produces short codes that are unused at generation time,
// retrying with fresh random draws on collision.
type Generator struct {
	checker ExistenceChecker
	length  int
}

// New creates a new Generator producing codes of the given length.
func New(checker ExistenceChecker, length int) *Generator {
	if length < MinLength {
		length = DefaultLength
	}

	return &Generator{
		checker: checker,
		length:  length,
	}
}

// Length returns the code length the generator is configured with.
func (g *Generator) Length() int {
	return g.length
}

// Generate draws random codes of the configured length until one is unused.
// After maxAttempts collisions it makes a single attempt with two extra
// characters; if that also collides it fails with ErrExhausted.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	const op = "shortcode.Generator.Generate"

	for i := 0; i < maxAttempts; i++ {
		code, taken, err := g.attempt(ctx, g.length)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if !taken {
			return code, nil
		}
	}

	code, taken, err := g.attempt(ctx, g.length+escalationExtra)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !taken {
		return code, nil
	}

	return "", fmt.Errorf("%s: %w", op, ErrExhausted)
}

func (g *Generator) attempt(ctx context.Context, length int) (string, bool, error) {
	code, err := gonanoid.Generate(Alphabet, length)
	if err != nil {
		return "", false, fmt.Errorf("failed to generate short code: %w", err)
	}

	taken, err := g.checker.CodeExists(ctx, code)
	if err != nil {
		return "", false, fmt.Errorf("failed to check short code existence: %w", err)
	}

	return code, taken, nil
}
