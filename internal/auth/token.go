// Package auth keeps the API bearer token in the OS keyring, with a JSON
// file fallback for hosts that have no keyring service.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

// DefaultService is the keyring service name tokens are filed under.
const DefaultService = "walksim"

const tokenUser = "api-token"

// ErrNoToken is returned when no token has been stored.
var ErrNoToken = errors.New("no api token stored")

// TokenStore reads and writes the API token.
type TokenStore struct {
	service      string
	fallbackPath string
	mu           sync.Mutex
}

// NewTokenStore returns a store for service. fallbackPath may be empty, in
// which case a missing keyring is an error.
func NewTokenStore(service, fallbackPath string) *TokenStore {
	if strings.TrimSpace(service) == "" {
		service = DefaultService
	}
	return &TokenStore{service: service, fallbackPath: fallbackPath}
}

// Set stores token.
func (s *TokenStore) Set(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("auth: token must not be empty")
	}

	err := keyring.Set(s.service, tokenUser, token)
	if err == nil {
		return nil
	}
	if !isKeyringUnavailable(err) {
		return fmt.Errorf("auth: keyring set: %w", err)
	}
	return s.writeFallback(token)
}

// Get returns the stored token, or ErrNoToken.
func (s *TokenStore) Get() (string, error) {
	token, err := keyring.Get(s.service, tokenUser)
	if err == nil {
		return token, nil
	}
	if !isKeyringUnavailable(err) && !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("auth: keyring get: %w", err)
	}

	token, ferr := s.readFallback()
	if ferr != nil {
		return "", ferr
	}
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Clear removes the token from the keyring and the fallback file.
func (s *TokenStore) Clear() error {
	err := keyring.Delete(s.service, tokenUser)
	if err != nil && (errors.Is(err, keyring.ErrNotFound) || isKeyringUnavailable(err)) {
		err = nil
	}
	if ferr := s.writeFallback(""); ferr != nil && err == nil {
		err = ferr
	}
	if err != nil {
		return fmt.Errorf("auth: clear token: %w", err)
	}
	return nil
}

// Generate creates a random 32-byte hex token and stores it.
func (s *TokenStore) Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	token := hex.EncodeToString(buf)
	if err := s.Set(token); err != nil {
		return "", err
	}
	return token, nil
}

// Equal compares a presented token with the expected one in constant time.
func Equal(presented, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

// Mask hides all but the last four characters of a token.
func Mask(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}

func isKeyringUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "secret service") ||
		strings.Contains(msg, "dbus") ||
		strings.Contains(msg, "no keychain") ||
		strings.Contains(msg, "keyring backend not available")
}

type fallbackFile struct {
	Tokens map[string]string `json:"tokens"`
}

func (s *TokenStore) readFallback() (string, error) {
	if strings.TrimSpace(s.fallbackPath) == "" {
		return "", ErrNoToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadUnlocked()
	if err != nil {
		return "", err
	}
	return data.Tokens[s.service], nil
}

func (s *TokenStore) writeFallback(token string) error {
	if strings.TrimSpace(s.fallbackPath) == "" {
		if token == "" {
			return nil
		}
		return errors.New("auth: keyring unavailable and no fallback path configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadUnlocked()
	if err != nil {
		return err
	}
	if token == "" {
		delete(data.Tokens, s.service)
	} else {
		data.Tokens[s.service] = token
	}

	if err := os.MkdirAll(filepath.Dir(s.fallbackPath), 0o700); err != nil {
		return fmt.Errorf("auth: mkdir fallback dir: %w", err)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("auth: encode fallback: %w", err)
	}
	if err := os.WriteFile(s.fallbackPath, raw, 0o600); err != nil {
		return fmt.Errorf("auth: write fallback: %w", err)
	}
	return nil
}

func (s *TokenStore) loadUnlocked() (fallbackFile, error) {
	out := fallbackFile{Tokens: map[string]string{}}
	raw, err := os.ReadFile(s.fallbackPath)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return out, fmt.Errorf("auth: read fallback: %w", err)
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("auth: decode fallback: %w", err)
	}
	if out.Tokens == nil {
		out.Tokens = map[string]string{}
	}
	return out, nil
}
