// Package tokenstore persists OAuth refresh tokens across broker restarts.
// The on-disk implementation never stores a token in cleartext (spec.md
// §4.5/§6): AES-256-CBC, key derived from a caller-supplied passphrase file
// via SHA-256, wire format "<ivHex>:<ciphertextHex>".
package tokenstore

// Store is the minimal persistence surface the broker needs for cached
// OAuth refresh tokens, keyed by provider (spec.md §4.5 rung 2, "cached
// OAuth").
type Store interface {
	Get(provider string) (token string, ok bool, err error)
	Put(provider, token string) error
	Delete(provider string) error
}
