package pki

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	keysOnce sync.Once
	testKeys [2]*rsa.PrivateKey
	keysErr  error
)

// testKeyPair returns two RSA-3072 keys shared by the package tests, since
// generating them is slow.
func testKeyPair(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	keysOnce.Do(func() {
		for i := range testKeys {
			testKeys[i], keysErr = rsa.GenerateKey(rand.Reader, KeyBits)
			if keysErr != nil {
				return
			}
		}
	})
	require.NoError(t, keysErr)
	return testKeys[0], testKeys[1]
}

func testSubject() Subject {
	return Subject{
		Country:            "IN",
		State:              "Maharashtra",
		Locality:           "Pune",
		Organization:       "Espressif",
		OrganizationalUnit: "Firmware",
		CommonName:         "Protected App CA",
		Email:              "ca@example.com",
	}
}

// selfSignedCert creates a certificate outside of the package's issuance
// rules, used to exercise validation failures.
func selfSignedCert(t *testing.T, pub crypto.PublicKey, priv crypto.Signer, alg x509.SignatureAlgorithm) []byte {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		BasicConstraintsValid: true,
		IsCA:                  true,
		SignatureAlgorithm:    alg,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, pub, priv)
	require.NoError(t, err)
	return encodeCertificatePEM(der)
}
