package links

import (
	"crypto/rand"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Bytes at or above this bound are discarded so every symbol is equally likely.
const base36Bound = 256 - 256%len(base36Alphabet)

type CryptoSlugger struct{}

func NewCryptoSlugger() *CryptoSlugger { return &CryptoSlugger{} }

func (s *CryptoSlugger) Generate(length int) (string, error) {
	if length <= 0 {
		length = defaultSlugLength
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= base36Bound {
				continue
			}
			out = append(out, base36Alphabet[int(b)%len(base36Alphabet)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}
