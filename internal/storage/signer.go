package storage

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"

	"google.golang.org/api/iamcredentials/v1"
)

// Signer produces RSA-SHA256 signatures on behalf of a service account.
type Signer interface {
	Email() string
	Sign(ctx context.Context, payload []byte) ([]byte, error)
}

// KeySigner signs locally with a service account private key.
type KeySigner struct {
	email string
	key   *rsa.PrivateKey
}

// NewKeySigner parses a PEM encoded PKCS#8 or PKCS#1 RSA key.
func NewKeySigner(email, privateKeyPEM string) (*KeySigner, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, errors.New("private key is not PEM encoded")
	}

	var key *rsa.PrivateKey
	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("private key is not an RSA key")
		}
		key = rsaKey
	} else {
		rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		key = rsaKey
	}

	return &KeySigner{email: email, key: key}, nil
}

func (s *KeySigner) Email() string { return s.email }

func (s *KeySigner) Sign(_ context.Context, payload []byte) ([]byte, error) {
	digest := sha256.Sum256(payload)
	return rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
}

// IAMSigner signs through the IAM credentials API, for credentials without a
// private key (workload identity, user ADC impersonating a service account).
type IAMSigner struct {
	svc   *iamcredentials.Service
	email string
}

// NewIAMSigner signs as the service account email through svc.
func NewIAMSigner(svc *iamcredentials.Service, email string) *IAMSigner {
	return &IAMSigner{svc: svc, email: email}
}

func (s *IAMSigner) Email() string { return s.email }

func (s *IAMSigner) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	name := "projects/-/serviceAccounts/" + s.email
	resp, err := s.svc.Projects.ServiceAccounts.SignBlob(name, &iamcredentials.SignBlobRequest{
		Payload: base64.StdEncoding.EncodeToString(payload),
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to sign blob: %w", err)
	}
	sig, err := base64.StdEncoding.DecodeString(resp.SignedBlob)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signed blob: %w", err)
	}
	return sig, nil
}

// signBytes adapts signer to SignedURLOptions.SignBytes, which receives the
// V4 string to sign and expects its RSA-SHA256 signature.
func signBytes(ctx context.Context, signer Signer) func([]byte) ([]byte, error) {
	return func(b []byte) ([]byte, error) {
		return signer.Sign(ctx, b)
	}
}
