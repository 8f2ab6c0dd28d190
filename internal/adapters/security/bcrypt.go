package security

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// bcryptMaxInput is the number of password bytes bcrypt actually reads.
const bcryptMaxInput = 72

// BcryptHasher hashes account passwords with bcrypt at a configurable cost.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(bcryptInput(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (h *BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(password))
}

// bcryptInput condenses passwords longer than bcrypt accepts into a SHA-256 digest so
// every byte still counts. Shorter passwords are used as is.
func bcryptInput(password string) []byte {
	raw := []byte(password)
	if len(raw) <= bcryptMaxInput {
		return raw
	}
	sum := sha256.Sum256(raw)
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
