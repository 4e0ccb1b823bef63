package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// HashToken returns a bcrypt hash of the supplied API token.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyToken compares the hashed token with the plaintext candidate.
func VerifyToken(hashedToken, token string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedToken), []byte(token)) == nil
}

// Sign computes an HMAC-SHA256 signature over the payload using the supplied
// secret, hex encoded and truncated to truncate characters. A non-positive
// truncate returns the full signature.
func Sign(payload, secret []byte, truncate int) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	sig := hex.EncodeToString(mac.Sum(nil))
	if truncate > 0 && truncate < len(sig) {
		sig = sig[:truncate]
	}
	return sig
}

// VerifySignature recomputes the payload signature and compares it against the
// candidate in constant time.
func VerifySignature(payload, secret []byte, candidate string, truncate int) bool {
	expected := Sign(payload, secret, truncate)
	return hmac.Equal([]byte(expected), []byte(candidate))
}

// GenerateToken returns a random URL-safe token of the requested byte length.
func GenerateToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}
