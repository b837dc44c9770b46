// Package auth holds API-key identity for the back-office endpoints.
package auth

import "context"

// APIKeyInfo is the identity behind a validated back-office key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
