// Package password implements the standalone password generation endpoint.
package password

import (
	"errors"
	"fmt"

	"github.com/sethvargo/go-password/password"
)

const (
	// DefaultLength is used when the request doesn't specify a length.
	DefaultLength = 16
	// MinLength is the shortest password that can be requested.
	MinLength = 4
	// MaxLength bounds a single request.
	MaxLength = 128
)

// ErrInvalidLength is returned when the requested length is out of range.
var ErrInvalidLength = errors.New("password length out of range")

// Options control the character classes a password is drawn from.
type Options struct {
	Length    int
	Digits    bool
	Symbols   bool
	Uppercase bool
}

// DefaultOptions returns the options used when a request specifies nothing.
func DefaultOptions() Options {
	return Options{
		Length:    DefaultLength,
		Digits:    true,
		Symbols:   false,
		Uppercase: true,
	}
}

// Generator produces random passwords.
type Generator struct{}

// Generate draws a random password according to the given options.
func (Generator) Generate(opts Options) (string, error) {
	const op = "password.Generator.Generate"

	if opts.Length < MinLength || opts.Length > MaxLength {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidLength)
	}

	var numDigits, numSymbols int
	if opts.Digits {
		numDigits = opts.Length / 4
	}
	if opts.Symbols {
		numSymbols = opts.Length / 4
	}

	pass, err := password.Generate(opts.Length, numDigits, numSymbols, !opts.Uppercase, true)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate password: %w", op, err)
	}

	return pass, nil
}
