package daemon

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// GenerateToken returns a random 32-byte hex token
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// SaveToken writes the token readable only by the owner
func SaveToken(dir, token string) error {
	if err := EnsureStateDir(dir); err != nil {
		return err
	}
	if err := os.WriteFile(TokenPath(dir), []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

// LoadToken reads the token saved by the running master
func LoadToken(dir string) (string, error) {
	data, err := os.ReadFile(TokenPath(dir))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
