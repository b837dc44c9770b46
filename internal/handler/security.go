package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/quipushop/checkout/internal/domain/auth"
)

// SecurityHandler authenticates back-office requests via HMAC-SHA256 hashed
// API keys carried in the api_key header.
type SecurityHandler struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Authenticate computes the HMAC-SHA256 of the presented key, looks it up,
// and compares the stored hash in constant time.
func (s *SecurityHandler) Authenticate(r *http.Request) error {
	key := r.Header.Get("api_key")
	if key == "" {
		return errors.New("missing api key")
	}

	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(key))
	hash := mac.Sum(nil)

	info, err := s.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
	if err != nil {
		return errors.New("unauthorized")
	}

	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return errors.New("unauthorized")
	}
	if subtle.ConstantTimeCompare(hash, stored) != 1 {
		return errors.New("unauthorized")
	}
	return nil
}
