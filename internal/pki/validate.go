package pki

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

const (
	// KeyBits is the only RSA modulus size accepted by the user app secure boot.
	KeyBits = 3072
	// PublicExponent is the exponent used for every generated key.
	PublicExponent = 65537
)

// ValidatePrivateKey checks that key is an RSA-3072 private key and returns it
// as *rsa.PrivateKey.
func ValidatePrivateKey(key crypto.PrivateKey) (*rsa.PrivateKey, error) {
	rk, ok := key.(*rsa.PrivateKey)
	if !ok || rk == nil {
		return nil, fmt.Errorf("%w: key is %T, only RSA-%d is supported", ErrInvalidKeyType, key, KeyBits)
	}
	if bits := rk.N.BitLen(); bits != KeyBits {
		return nil, fmt.Errorf("%w: key size is %d bits, only RSA-%d is supported", ErrInvalidKeySize, bits, KeyBits)
	}
	return rk, nil
}

// ValidatePublicKey checks that key is an RSA-3072 public key.
func ValidatePublicKey(key crypto.PublicKey) (*rsa.PublicKey, error) {
	rk, ok := key.(*rsa.PublicKey)
	if !ok || rk == nil {
		return nil, fmt.Errorf("%w: public key is %T, only RSA-%d is supported", ErrInvalidKeyType, key, KeyBits)
	}
	if bits := rk.N.BitLen(); bits != KeyBits {
		return nil, fmt.Errorf("%w: public key size is %d bits, only RSA-%d is supported", ErrInvalidKeySize, bits, KeyBits)
	}
	return rk, nil
}

// ValidateCertificate enforces the constraints every certificate in the
// trust chain must satisfy: an RSA-3072 public key and a SHA-256 based
// signature algorithm.
func ValidateCertificate(cert *x509.Certificate) (*rsa.PublicKey, error) {
	if cert == nil {
		return nil, fmt.Errorf("%w: no certificate", ErrInvalidCertificate)
	}

	pub, err := ValidatePublicKey(cert.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}

	switch cert.SignatureAlgorithm {
	case x509.SHA256WithRSA, x509.SHA256WithRSAPSS:
	default:
		return nil, fmt.Errorf("%w: signature algorithm is %s, certificate needs to use SHA256", ErrInvalidCertificate, cert.SignatureAlgorithm)
	}

	return pub, nil
}

// ParseCertificatePEM decodes the first PEM certificate in data and runs
// ValidateCertificate on it. Data after the PEM block (such as the NUL
// terminator stored in a signature block) is ignored.
func ParseCertificatePEM(data []byte) (*x509.Certificate, error) {
	b, _ := pem.Decode(data)
	if b == nil {
		return nil, fmt.Errorf("%w: failed to decode PEM data", ErrInvalidCertificate)
	}
	if b.Type != pemTypeCertificate {
		return nil, fmt.Errorf("%w: PEM type is %q, want %q", ErrInvalidCertificate, b.Type, pemTypeCertificate)
	}

	cert, err := x509.ParseCertificate(b.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}

	if _, err := ValidateCertificate(cert); err != nil {
		return nil, err
	}
	return cert, nil
}

// CheckKeyPair verifies that key is the private half of the public key bound
// in cert by comparing the moduli.
func CheckKeyPair(cert *x509.Certificate, key *rsa.PrivateKey) error {
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok || key == nil || pub.N.Cmp(key.N) != 0 || pub.E != key.E {
		return fmt.Errorf("%w: this certificate does not belong to this private key", ErrKeyCertificateMismatch)
	}
	return nil
}

func encodeCertificatePEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: pemTypeCertificate, Bytes: der})
}
