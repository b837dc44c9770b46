package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature recomputes the HMAC-SHA256 of raw with key and compares
// the hex digest against suppliedHash in constant time.
//
// raw must be the exact byte sequence the gateway signed. When the answer
// arrived base64-encoded, that is the base64 text itself; decoding it before
// hashing would break verification, since re-encoding JSON does not
// reproduce the original bytes.
func VerifySignature(raw []byte, suppliedHash string, key []byte) bool {
	mac := hmac.New(sha256.New, key)
	mac.Write(raw)
	digest := mac.Sum(nil)

	supplied, err := hex.DecodeString(suppliedHash)
	if err != nil {
		return false
	}
	return hmac.Equal(digest, supplied)
}
