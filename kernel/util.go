package kernel

import (
	"crypto/sha512"
	"fmt"

	"github.com/google/uuid"
)

func UuidV7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func Sha512(data string) string {
	return fmt.Sprintf("%032x", sha512.Sum512([]byte(data)))
}

// NewSessionToken returns a cookie token and the key it is stored under.
func NewSessionToken() (token string, key string, err error) {
	token, err = UuidV7()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return token, Sha512(token), nil
}
