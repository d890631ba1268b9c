// Package idgen генерирует случайные короткие коды.
package idgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// Alphabet 62 символа: латиница в обоих регистрах и цифры
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// DefaultLength длина кода по умолчанию
	DefaultLength = 6
)

var alphabetSize = big.NewInt(int64(len(Alphabet)))

// Generator выдаёт кандидатов в короткие коды
type Generator interface {
	Generate(length int) (string, error)
}

// RandomGenerator генератор на crypto/rand: коды нельзя предсказать по уже выданным
type RandomGenerator struct{}

func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{}
}

// Generate возвращает строку длины length с равномерно распределёнными символами алфавита
func (g *RandomGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid code length: %d", length)
	}

	result := make([]byte, length)
	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		result[i] = Alphabet[num.Int64()]
	}
	return string(result), nil
}
