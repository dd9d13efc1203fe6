// package crypto provides a simple interface to common cryptographic primitives.
package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// KeyPair represents a public/private keypair in PEM format.
type Keypair struct {
	PublicKey  []byte
	PrivateKey []byte
}

// GenerateRSAKeypair returns a 2048 bit RSA keypair. The private key is
// PKCS#8 encoded, the public key is SPKI encoded.
func GenerateRSAKeypair() (*Keypair, error) {
	privatekey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	privateKeyBytes, err := x509.MarshalPKCS8PrivateKey(privatekey)
	if err != nil {
		return nil, err
	}
	publicKeyBytes, err := x509.MarshalPKIXPublicKey(&privatekey.PublicKey)
	if err != nil {
		return nil, err
	}
	return &Keypair{
		PublicKey:  pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicKeyBytes}),
		PrivateKey: pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privateKeyBytes}),
	}, nil
}

// ParseRSAPrivateKey parses a PEM encoded private key, PKCS#8 or PKCS#1.
// Keys which have lost their PEM armour, for example when pasted into an
// environment variable on a single line, are accepted as bare base64.
func ParseRSAPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	der, err := decode(pemBytes, "PRIVATE KEY", "RSA PRIVATE KEY")
	if err != nil {
		return nil, err
	}
	parsedKey, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		if parsedKey, err = x509.ParsePKCS1PrivateKey(der); err != nil {
			return nil, fmt.Errorf("ParseRSAPrivateKey: %w", err)
		}
	}
	switch privateKey := parsedKey.(type) {
	case *rsa.PrivateKey:
		return privateKey, nil
	default:
		return nil, errors.New("ParseRSAPrivateKey: expected *rsa.PrivateKey")
	}
}

// ParseRSAPublicKey parses a PEM encoded SPKI, or PKCS#1, public key.
func ParseRSAPublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	der, err := decode(pemBytes, "PUBLIC KEY", "RSA PUBLIC KEY")
	if err != nil {
		return nil, err
	}
	parsedKey, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		if parsedKey, err = x509.ParsePKCS1PublicKey(der); err != nil {
			return nil, fmt.Errorf("ParseRSAPublicKey: %w", err)
		}
	}
	switch publicKey := parsedKey.(type) {
	case *rsa.PublicKey:
		return publicKey, nil
	default:
		return nil, errors.New("ParseRSAPublicKey: expected *rsa.PublicKey")
	}
}

func decode(b []byte, types ...string) ([]byte, error) {
	if block, _ := pem.Decode(b); block != nil {
		for _, t := range types {
			if block.Type == t {
				return block.Bytes, nil
			}
		}
		return nil, fmt.Errorf("unexpected PEM block type %q", block.Type)
	}
	var sb strings.Builder
	for _, line := range strings.Split(string(b), "\n") {
		if strings.HasPrefix(line, "-----") {
			continue
		}
		sb.WriteString(strings.Join(strings.Fields(line), ""))
	}
	if sb.Len() == 0 {
		return nil, errors.New("empty key")
	}
	return base64.StdEncoding.DecodeString(sb.String())
}
