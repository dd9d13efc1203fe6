// Package httpsig implements the HTTP Signature scheme as defined in draft-cavage-http-signatures-10.
package httpsig

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// RequestTarget is the pseudo-header used to sign the request target.
	RequestTarget = "(request-target)"

	// DateFormat is the layout of the Date header.
	DateFormat = "Mon, 02 Jan 2006 15:04:05 GMT" // Date must be in GMT, not UTC 🤯
)

// Sign signs the request using the given keyID and privateKey.
// GET and HEAD requests sign (request-target), host, date and accept.
// All other methods also sign the digest of body and the content-type.
func Sign(req *http.Request, keyID string, privateKey crypto.PrivateKey, body []byte) error {
	key, ok := privateKey.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("httpsig: unsupported private key type %T", privateKey)
	}
	if req.Host == "" {
		req.Host = req.URL.Host
	}
	req.Header.Set("Date", time.Now().UTC().Format(DateFormat))

	var headers []string
	switch req.Method {
	case http.MethodGet, http.MethodHead:
		headers = []string{RequestTarget, "host", "date", "accept"}
	default:
		addDigest(req, body)
		if req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/activity+json")
		}
		headers = []string{RequestTarget, "host", "date", "digest", "content-type"}
	}

	s, err := signingString(req, headers)
	if err != nil {
		return err
	}
	digest := sha256.Sum256([]byte(s))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return err
	}
	enc := base64.StdEncoding.EncodeToString(sig)
	req.Header.Set("Signature", fmt.Sprintf(`keyId="%s",algorithm="rsa-sha256",headers="%s",signature="%s"`, keyID, strings.Join(headers, " "), enc))
	return nil
}

func addDigest(req *http.Request, body []byte) {
	req.Header.Set("Digest", "SHA-256="+bodyDigest(body))
}

func bodyDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// signingString builds the canonical string for the named headers.
func signingString(req *http.Request, headers []string) (string, error) {
	var sb strings.Builder
	for i, header := range headers {
		if i > 0 {
			sb.WriteString("\n")
		}
		header = strings.ToLower(header)
		switch header {
		case RequestTarget:
			sb.WriteString(RequestTarget)
			sb.WriteString(": ")
			sb.WriteString(strings.ToLower(req.Method))
			sb.WriteString(" ")
			sb.WriteString(req.URL.RequestURI())
		case "host":
			host := req.Host
			if host == "" {
				host = req.Header.Get("Host")
			}
			if host == "" {
				return "", fmt.Errorf("%w: host", ErrMissingHeader)
			}
			sb.WriteString("host: ")
			sb.WriteString(host)
		default:
			values := req.Header.Values(header)
			if len(values) == 0 {
				return "", fmt.Errorf("%w: %s", ErrMissingHeader, header)
			}
			sb.WriteString(header)
			sb.WriteString(": ")
			sb.WriteString(strings.Join(values, ", "))
		}
	}
	return sb.String(), nil
}
