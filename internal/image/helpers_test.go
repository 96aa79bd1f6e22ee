package image

import (
	"crypto/rsa"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/privsep/appsign/internal/pki"
)

// chain is a protected CA plus one user app identity issued by it.
type chain struct {
	caKey    *rsa.PrivateKey
	caPEM    []byte
	userKey  *rsa.PrivateKey
	userPEM  []byte
	otherKey *rsa.PrivateKey
}

var (
	chainOnce sync.Once
	testChain chain
	chainErr  error
)

func testTrustChain(t *testing.T) chain {
	t.Helper()
	chainOnce.Do(func() {
		testChain, chainErr = buildChain()
	})
	require.NoError(t, chainErr)
	return testChain
}

func buildChain() (chain, error) {
	var c chain
	var err error

	if c.caKey, err = pki.GenerateKey(); err != nil {
		return c, err
	}
	if c.userKey, err = pki.GenerateKey(); err != nil {
		return c, err
	}
	if c.otherKey, err = pki.GenerateKey(); err != nil {
		return c, err
	}

	_, c.caPEM, err = pki.IssueRootCertificate(c.caKey, pki.Subject{
		Country:    "IN",
		CommonName: "Protected App CA",
	})
	if err != nil {
		return c, err
	}

	_, csrPEM, err := pki.BuildCSR(c.userKey, pki.Subject{
		Country:      "IN",
		Organization: "Example",
		CommonName:   "User App",
		Email:        "user@example.com",
	})
	if err != nil {
		return c, err
	}

	_, c.userPEM, err = pki.IssueLeafCertificate(c.caPEM, c.caKey, csrPEM)
	return c, err
}
