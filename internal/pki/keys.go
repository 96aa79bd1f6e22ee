package pki

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/privsep/appsign/util"
)

const (
	pemTypeRSAPrivateKey      = "RSA PRIVATE KEY"
	pemTypePrivateKey         = "PRIVATE KEY"
	pemTypeECPrivateKey       = "EC PRIVATE KEY"
	pemTypeCertificate        = "CERTIFICATE"
	pemTypeCertificateRequest = "CERTIFICATE REQUEST"

	privateKeyFileMode = 0o600
)

// GenerateKey creates a fresh RSA-3072 key with public exponent 65537.
func GenerateKey() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	if key.E != PublicExponent {
		return nil, fmt.Errorf("generated key has exponent %d, want %d", key.E, PublicExponent)
	}
	return key, nil
}

// MarshalPrivateKey encodes key as an unencrypted PKCS#1 PEM block.
func MarshalPrivateKey(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  pemTypeRSAPrivateKey,
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

// ParsePrivateKey decodes a PKCS#1 or PKCS#8 PEM private key and validates
// that it is RSA-3072.
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	b, _ := pem.Decode(data)
	if b == nil {
		return nil, errors.New("failed to decode PEM data")
	}

	var (
		key crypto.PrivateKey
		err error
	)
	switch b.Type {
	case pemTypeRSAPrivateKey:
		key, err = x509.ParsePKCS1PrivateKey(b.Bytes)
	case pemTypePrivateKey:
		key, err = x509.ParsePKCS8PrivateKey(b.Bytes)
	case pemTypeECPrivateKey:
		return nil, fmt.Errorf("%w: key provided is not RSA private key", ErrInvalidKeyType)
	default:
		return nil, fmt.Errorf("unsupported PEM type %q", b.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return ValidatePrivateKey(key)
}

// ReadPrivateKey loads and validates an existing key file.
func ReadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read key file: %w", ErrIOFailure, err)
	}

	key, err := ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	return key, nil
}

// LoadOrCreateKey returns the key stored at path, generating and persisting a
// new RSA-3072 key when the file does not exist. The boolean result reports
// whether a new key was generated.
//
// An existing key that is not RSA-3072 is rejected; it is never reused.
func LoadOrCreateKey(ctx context.Context, path string) (*rsa.PrivateKey, bool, error) {
	if _, err := os.Stat(path); err == nil {
		log.Warnf("key file %s already exists, using it for further operation", path)
		key, err := ReadPrivateKey(path)
		if err != nil {
			return nil, false, err
		}
		return key, false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("%w: stat key file: %w", ErrIOFailure, err)
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, false, err
	}

	if err := util.WriteBytesAtomic(ctx, path, MarshalPrivateKey(key), privateKeyFileMode); err != nil {
		return nil, false, fmt.Errorf("%w: write key file: %w", ErrIOFailure, err)
	}

	log.Infof("RSA %d private key in PEM format written to %s", KeyBits, path)
	return key, true, nil
}
