package util

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

const (
	Digits                = "0123456789"
	UppercaseAlphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// CodeGenerator produces random identifiers such as key codes and HWID
// suffixes.
type CodeGenerator interface {
	Generate() (string, error)
}

// AlphabetGenerator draws Length characters independently and uniformly from
// Alphabet.
type AlphabetGenerator struct {
	Alphabet string
	Length   int
}

func DigitCodes(length int) *AlphabetGenerator {
	return &AlphabetGenerator{Alphabet: Digits, Length: length}
}

func HWIDSuffix(length int) *AlphabetGenerator {
	return &AlphabetGenerator{Alphabet: UppercaseAlphanumeric, Length: length}
}

func (g *AlphabetGenerator) Generate() (string, error) {
	if g.Length <= 0 || g.Alphabet == "" {
		return "", fmt.Errorf("invalid generator: alphabet %q, length %d", g.Alphabet, g.Length)
	}

	max := big.NewInt(int64(len(g.Alphabet)))
	out := make([]byte, g.Length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random index: %w", err)
		}
		out[i] = g.Alphabet[n.Int64()]
	}
	return string(out), nil
}

const maxUniqueAttempts = 16

var ErrNoUniqueCode = errors.New("could not generate a unique code")

// UniqueGenerator retries the wrapped generator until Exists reports the
// candidate as unused.
type UniqueGenerator struct {
	Next   CodeGenerator
	Exists func(code string) bool
}

func (g *UniqueGenerator) Generate() (string, error) {
	for i := 0; i < maxUniqueAttempts; i++ {
		code, err := g.Next.Generate()
		if err != nil {
			return "", err
		}
		if !g.Exists(code) {
			return code, nil
		}
	}
	return "", ErrNoUniqueCode
}

// GeneratorFunc adapts a plain function to CodeGenerator.
type GeneratorFunc func() (string, error)

func (f GeneratorFunc) Generate() (string, error) { return f() }
