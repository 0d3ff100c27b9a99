package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// TTL is how long an issued code stays valid.
const TTL = 10 * time.Minute

// codeDigits is the length of generated codes. Leading zeros are allowed.
const codeDigits = 6

// Sentinel errors returned by Consume.
var (
	ErrNotFound = errors.New("otp: no code issued for this email")
	ErrExpired  = errors.New("otp: code expired")
	ErrMismatch = errors.New("otp: code does not match")
)

type entry struct {
	code      string
	expiresAt time.Time
}

// Registry is an in-process, single-use code store keyed by email. Entries
// live only as long as the process and only on this instance; a multi-instance
// or restart-tolerant deployment needs an external expiring key-value store
// instead.
type Registry struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Issue generates a fresh 6-digit code for email, replacing any prior entry,
// and returns the code for delivery.
func (r *Registry) Issue(email string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	r.mu.Lock()
	r.entries[email] = entry{code: code, expiresAt: r.now().Add(TTL)}
	r.mu.Unlock()

	return code, nil
}

// Consume validates suppliedCode against the entry for email. A matching code
// is accepted at most once: the entry is deleted on success. Expired entries
// are deleted on lookup.
func (r *Registry) Consume(email, suppliedCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[email]
	if !ok {
		return ErrNotFound
	}
	if r.now().After(e.expiresAt) {
		delete(r.entries, email)
		return ErrExpired
	}
	if subtle.ConstantTimeCompare([]byte(e.code), []byte(suppliedCode)) != 1 {
		return ErrMismatch
	}

	delete(r.entries, email)
	return nil
}

// PruneExpired removes entries past their expiry and reports how many were
// dropped. Expired entries are also dropped lazily by Consume, so this only
// bounds memory between lookups.
func (r *Registry) PruneExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	pruned := 0
	for email, e := range r.entries {
		if now.After(e.expiresAt) {
			delete(r.entries, email)
			pruned++
		}
	}
	return pruned
}

// generateCode draws a uniform random number in [0, 10^6) and zero-pads it.
func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n), nil
}
