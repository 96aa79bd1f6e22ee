package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"math/big"
	"time"
)

// ValidityPeriod is the lifetime of every issued certificate, starting at
// issuance time.
const ValidityPeriod = 3650 * 24 * time.Hour

// serialLimit bounds serial numbers to 159 bits so that the DER encoding
// never exceeds 20 octets.
var serialLimit = new(big.Int).Lsh(big.NewInt(1), 159)

func randomSerial() (*big.Int, error) {
	for {
		serial, err := rand.Int(rand.Reader, serialLimit)
		if err != nil {
			return nil, fmt.Errorf("generate serial number: %w", err)
		}
		if serial.Sign() > 0 {
			return serial, nil
		}
	}
}

// IssueRootCertificate creates the self-signed protected app CA certificate.
// It returns the parsed certificate and its PEM encoding.
func IssueRootCertificate(key *rsa.PrivateKey, subject Subject) (*x509.Certificate, []byte, error) {
	if _, err := ValidatePrivateKey(key); err != nil {
		return nil, nil, err
	}
	if err := subject.Validate(); err != nil {
		return nil, nil, err
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               subject.Name(),
		NotBefore:             now,
		NotAfter:              now.Add(ValidityPeriod),
		BasicConstraintsValid: true,
		IsCA:                  true,
		SignatureAlgorithm:    x509.SHA256WithRSA,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("create root certificate: %w", err)
	}

	return parseIssued(der)
}

// IssueLeafCertificate signs the user app CSR with the protected app CA.
//
// The CA certificate is validated first. The CA key must match it, and the
// CSR must carry a valid self-signature over an RSA-3072 key. The issued
// certificate copies the CSR subject verbatim, names the CA subject as its
// issuer and is restricted to digital signatures.
func IssueLeafCertificate(rootCertPEM []byte, rootKey *rsa.PrivateKey, csrPEM []byte) (*x509.Certificate, []byte, error) {
	root, err := ParseCertificatePEM(rootCertPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("protected CA certificate: %w", err)
	}
	if !root.BasicConstraintsValid || !root.IsCA {
		return nil, nil, fmt.Errorf("protected CA certificate: %w: not a CA certificate", ErrInvalidCertificate)
	}

	if _, err := ValidatePrivateKey(rootKey); err != nil {
		return nil, nil, fmt.Errorf("protected CA key: %w", err)
	}
	if err := CheckKeyPair(root, rootKey); err != nil {
		return nil, nil, fmt.Errorf("protected CA key: %w", err)
	}

	csr, err := ParseCSR(csrPEM)
	if err != nil {
		return nil, nil, err
	}
	if _, err := ValidatePublicKey(csr.PublicKey); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidCSR, err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	template := &x509.Certificate{
		SerialNumber:       serial,
		RawSubject:         csr.RawSubject,
		NotBefore:          now,
		NotAfter:           now.Add(ValidityPeriod),
		KeyUsage:           x509.KeyUsageDigitalSignature,
		SignatureAlgorithm: x509.SHA256WithRSA,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, root, csr.PublicKey, rootKey)
	if err != nil {
		return nil, nil, fmt.Errorf("create user app certificate: %w", err)
	}

	return parseIssued(der)
}

func parseIssued(der []byte) (*x509.Certificate, []byte, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, fmt.Errorf("parse issued certificate: %w", err)
	}
	return cert, encodeCertificatePEM(der), nil
}
