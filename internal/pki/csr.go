package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// BuildCSR creates a certificate signing request for subject, self-signed
// with key to prove possession of the private key.
func BuildCSR(key *rsa.PrivateKey, subject Subject) (*x509.CertificateRequest, []byte, error) {
	if _, err := ValidatePrivateKey(key); err != nil {
		return nil, nil, err
	}
	if err := subject.Validate(); err != nil {
		return nil, nil, err
	}

	template := &x509.CertificateRequest{
		Subject:            subject.Name(),
		SignatureAlgorithm: x509.SHA256WithRSA,
	}

	der, err := x509.CreateCertificateRequest(rand.Reader, template, key)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate request: %w", err)
	}

	csr, err := x509.ParseCertificateRequest(der)
	if err != nil {
		return nil, nil, fmt.Errorf("parse created certificate request: %w", err)
	}

	csrPEM := pem.EncodeToMemory(&pem.Block{Type: pemTypeCertificateRequest, Bytes: der})
	return csr, csrPEM, nil
}

// ParseCSR decodes a PEM certificate signing request and checks its
// self-signature.
func ParseCSR(data []byte) (*x509.CertificateRequest, error) {
	b, _ := pem.Decode(data)
	if b == nil {
		return nil, fmt.Errorf("%w: failed to decode PEM data", ErrInvalidCSR)
	}
	if b.Type != pemTypeCertificateRequest {
		return nil, fmt.Errorf("%w: PEM type is %q, want %q", ErrInvalidCSR, b.Type, pemTypeCertificateRequest)
	}

	csr, err := x509.ParseCertificateRequest(b.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCSR, err)
	}
	if err := csr.CheckSignature(); err != nil {
		return nil, fmt.Errorf("%w: signature check: %w", ErrInvalidCSR, err)
	}
	return csr, nil
}
