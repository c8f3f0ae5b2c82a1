// Package secret hashes PINs and passwords with bcrypt. Hashes are salted and
// comparisons run in constant time; plaintext is never stored.
package secret

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const DefaultCost = bcrypt.DefaultCost

// ClampCost keeps cost inside the range bcrypt accepts
func ClampCost(cost int) int {
	if cost < bcrypt.MinCost {
		return bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		return bcrypt.MaxCost
	}
	return cost
}

// Hash returns a salted bcrypt hash of plain
func Hash(plain string, cost int) (string, error) {
	if plain == "" {
		return "", errors.New("secret must not be empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plain), ClampCost(cost))
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(h), nil
}

// Verify reports whether plain matches hash
func Verify(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Valid reports whether hash looks like a bcrypt hash
func Valid(hash string) bool {
	_, err := bcrypt.Cost([]byte(hash))
	return err == nil
}

var (
	decoyOnce sync.Once
	decoyHash []byte
)

// Reject runs a full comparison against a fixed decoy hash and reports false.
// Lookups that miss call it so they take as long as a wrong secret.
func Reject(plain string) bool {
	decoyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("decoy"), DefaultCost)
		if err == nil {
			decoyHash = h
		}
	})
	if decoyHash != nil {
		_ = bcrypt.CompareHashAndPassword(decoyHash, []byte(plain))
	}
	return false
}
