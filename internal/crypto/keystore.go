package crypto

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoKey is returned when a KeyStore holds no key for an account.
var ErrNoKey = errors.New("no private key for account")

// A KeyStore maps an account handle to its private signing key.
type KeyStore interface {
	PrivateKey(handle string) (*rsa.PrivateKey, error)
}

// StaticKeys is a KeyStore backed by PEM encoded keys held in memory.
type StaticKeys map[string][]byte

func (s StaticKeys) PrivateKey(handle string) (*rsa.PrivateKey, error) {
	pemBytes, ok := s[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoKey, handle)
	}
	return ParseRSAPrivateKey(pemBytes)
}

// KeysFromEnviron collects every variable in environ of the form
// prefix+handle=PEM. Pass os.Environ() to read the process environment.
func KeysFromEnviron(environ []string, prefix string) StaticKeys {
	keys := make(StaticKeys)
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, prefix) || v == "" {
			continue
		}
		handle := strings.TrimPrefix(k, prefix)
		if handle == "" {
			continue
		}
		// some secret stores flatten newlines
		keys[handle] = []byte(strings.ReplaceAll(v, `\n`, "\n"))
	}
	return keys
}

// DirKeys is a KeyStore which reads {handle}.pem from a directory.
type DirKeys string

func (d DirKeys) PrivateKey(handle string) (*rsa.PrivateKey, error) {
	if handle == "" || strings.ContainsAny(handle, `/\`) || strings.HasPrefix(handle, ".") {
		return nil, fmt.Errorf("%w: invalid handle %q", ErrNoKey, handle)
	}
	pemBytes, err := os.ReadFile(filepath.Join(string(d), handle+".pem"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoKey, handle)
		}
		return nil, err
	}
	return ParseRSAPrivateKey(pemBytes)
}

// Keys tries each KeyStore in order, returning the first key found.
type Keys []KeyStore

func (k Keys) PrivateKey(handle string) (*rsa.PrivateKey, error) {
	for _, ks := range k {
		key, err := ks.PrivateKey(handle)
		if errors.Is(err, ErrNoKey) {
			continue
		}
		return key, err
	}
	return nil, fmt.Errorf("%w: %s", ErrNoKey, handle)
}
