package httpsig

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MaxSkew bounds how far a signed Date header may be from the current time.
const MaxSkew = 12 * time.Hour

var now = time.Now

var (
	// ErrInvalidFormat is returned when the Signature header is absent or
	// lacks one of keyId, headers or signature.
	ErrInvalidFormat = errors.New("httpsig: invalid signature format")

	// ErrKeyNotFound is returned when no public key could be found for the keyId.
	ErrKeyNotFound = errors.New("httpsig: key not found")

	// ErrMissingHeader is returned when a header named in the signature is not
	// present on the request.
	ErrMissingHeader = errors.New("httpsig: missing signed header")

	// ErrInvalidSignature is returned when the signature does not match.
	ErrInvalidSignature = errors.New("httpsig: invalid signature")

	// ErrExpired is returned when the signed Date header is more than
	// MaxSkew from the current time.
	ErrExpired = errors.New("httpsig: signature date out of range")
)

// KeyFunc returns the public key for the given keyId.
type KeyFunc func(keyID string) (crypto.PublicKey, error)

// Verify verifies the signature of the request and returns the keyId
// which signed it. If the signature covers the digest header, the body
// is read, checked against the digest, and replaced so later readers
// still see it.
func Verify(req *http.Request, keyFn KeyFunc) (string, error) {
	sigHeader := req.Header.Get("Signature")
	if sigHeader == "" {
		return "", fmt.Errorf("%w: Signature header is missing", ErrInvalidFormat)
	}
	params := parseSignature(sigHeader)
	keyID, headers, signature := params["keyId"], params["headers"], params["signature"]
	if keyID == "" || headers == "" || signature == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, sigHeader)
	}
	switch algo := params["algorithm"]; algo {
	case "", "rsa-sha256", "hs2019":
		// ok
	default:
		return "", fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidFormat, algo)
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	pubKey, err := keyFn(keyID)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrKeyNotFound, keyID, err)
	}
	rsaKey, ok := pubKey.(*rsa.PublicKey)
	if !ok || rsaKey == nil {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
	}

	names := strings.Fields(headers)
	s, err := signingString(req, names)
	if err != nil {
		return "", err
	}

	digest := sha256.Sum256([]byte(s))
	if err := rsa.VerifyPKCS1v15(rsaKey, crypto.SHA256, digest[:], sig); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if contains(names, "date") {
		if err := verifyDate(req); err != nil {
			return "", err
		}
	}
	if contains(names, "digest") {
		if err := verifyDigest(req); err != nil {
			return "", err
		}
	}
	return keyID, nil
}

func verifyDate(req *http.Request) error {
	date, err := http.ParseTime(req.Header.Get("Date"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if skew := now().Sub(date); skew > MaxSkew || skew < -MaxSkew {
		return fmt.Errorf("%w: %s", ErrExpired, date.Format(DateFormat))
	}
	return nil
}

func verifyDigest(req *http.Request) error {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return err
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	for _, d := range strings.Split(req.Header.Get("Digest"), ",") {
		alg, value, ok := strings.Cut(strings.TrimSpace(d), "=")
		if ok && strings.EqualFold(alg, "SHA-256") {
			if value == bodyDigest(body) {
				return nil
			}
			return fmt.Errorf("%w: digest does not match body", ErrInvalidSignature)
		}
	}
	return fmt.Errorf("%w: no SHA-256 digest", ErrInvalidSignature)
}

// parseSignature splits the Signature header into its parameters.
// Each parameter is split on its first '=' and the value unquoted.
func parseSignature(header string) map[string]string {
	params := make(map[string]string)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		params[k] = strings.Trim(v, `"`)
	}
	return params
}

func contains(s []string, v string) bool {
	for _, e := range s {
		if strings.EqualFold(e, v) {
			return true
		}
	}
	return false
}
