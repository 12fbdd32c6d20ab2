package services

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and verifies secrets.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(digest, secret string) bool
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a bcrypt hasher. A cost of zero selects bcrypt.DefaultCost.
func NewBcryptHasher(cost int) PasswordHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (h *bcryptHasher) Hash(secret string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

func (h *bcryptHasher) Verify(digest, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}

var (
	decoyOnce   sync.Once
	decoyDigest string
)

// burnVerify spends roughly the time of a real verification so that unknown
// emails answer as slowly as wrong passwords.
func burnVerify(h PasswordHasher, secret string) {
	decoyOnce.Do(func() {
		d, err := h.Hash("decoy-password-for-timing")
		if err == nil {
			decoyDigest = d
		}
	})
	if decoyDigest != "" {
		_ = h.Verify(decoyDigest, secret)
	}
}
