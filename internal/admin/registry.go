// Package admin holds administrator credentials behind a small interface so
// the ledger never hard-codes them.
package admin

import (
	"errors"
	"fmt"

	"github.com/Moon9t/C-Mini-Bank-System/internal/secret"
)

// Authenticator is the only capability the ledger needs from an admin store
type Authenticator interface {
	Authenticate(username, password string) bool
}

// Credential is a username with a bcrypt password hash
type Credential struct {
	Username     string
	PasswordHash string
}

// NewCredential hashes a plaintext password
func NewCredential(username, password string, cost int) (Credential, error) {
	h, err := secret.Hash(password, cost)
	if err != nil {
		return Credential{}, fmt.Errorf("admin %q: %w", username, err)
	}
	return Credential{Username: username, PasswordHash: h}, nil
}

// Registry is a fixed in-memory set of administrators
type Registry struct {
	creds map[string]string
}

func NewRegistry(creds ...Credential) (*Registry, error) {
	r := &Registry{creds: make(map[string]string, len(creds))}
	for _, c := range creds {
		if err := r.add(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(c Credential) error {
	if c.Username == "" {
		return errors.New("admin username must not be empty")
	}
	if !secret.Valid(c.PasswordHash) {
		return fmt.Errorf("admin %q: password hash is not a bcrypt hash", c.Username)
	}
	if _, ok := r.creds[c.Username]; ok {
		return fmt.Errorf("admin %q registered twice", c.Username)
	}
	r.creds[c.Username] = c.PasswordHash
	return nil
}

// Authenticate reports whether username exists and password matches its hash
func (r *Registry) Authenticate(username, password string) bool {
	h, ok := r.creds[username]
	if !ok {
		return secret.Reject(password)
	}
	return secret.Verify(h, password)
}

// Len returns the number of registered administrators
func (r *Registry) Len() int { return len(r.creds) }
