package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// SecretKey signs bearer tokens. Override with CIPHERCHAT_SECRET.
var SecretKey = []byte("super-secret-key-change-me-in-production")

func init() {
	if secret := os.Getenv("CIPHERCHAT_SECRET"); secret != "" {
		SecretKey = []byte(secret)
	}
}

// NewToken issues an opaque bearer token: a random body plus an HMAC
// signature, in the format "body|signature". The signature lets the
// middleware reject forged tokens before touching the store.
func NewToken() string {
	return sign(uuid.NewString())
}

func sign(value string) string {
	mac := hmac.New(sha256.New, SecretKey)
	mac.Write([]byte(value))
	signature := mac.Sum(nil)
	return fmt.Sprintf("%s|%s", base64.URLEncoding.EncodeToString([]byte(value)), base64.URLEncoding.EncodeToString(signature))
}

// VerifyToken checks the token's signature and returns an error if it
// was not issued by this server. It does not check that the token is
// still current; that is the store's token lookup.
func VerifyToken(token string) error {
	parts := strings.Split(token, "|")
	if len(parts) != 2 {
		return errors.New("invalid token format")
	}

	valueBytes, err := base64.URLEncoding.DecodeString(parts[0])
	if err != nil {
		return errors.New("invalid value encoding")
	}

	signature, err := base64.URLEncoding.DecodeString(parts[1])
	if err != nil {
		return errors.New("invalid signature encoding")
	}

	mac := hmac.New(sha256.New, SecretKey)
	mac.Write(valueBytes)
	expectedSignature := mac.Sum(nil)

	if !hmac.Equal(signature, expectedSignature) {
		return errors.New("invalid signature")
	}

	return nil
}
