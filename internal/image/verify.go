package image

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/privsep/appsign/internal/pki"
)

// ErrVerificationFailed is returned when a signed image does not verify
// against the protected CA certificate.
var ErrVerificationFailed = errors.New("signed image verification failed")

// SplitSignedImage separates a signed image into the padded binary and its
// decoded signature block.
func SplitSignedImage(signed []byte) ([]byte, *SignatureBlock, error) {
	if len(signed) == 0 || len(signed)%SectorSize != 0 {
		return nil, nil, fmt.Errorf("%w: image size %d is not a positive multiple of %d", ErrInvalidSignatureBlock, len(signed), SectorSize)
	}

	split := len(signed) - SectorSize
	block := &SignatureBlock{}
	if err := block.UnmarshalBinary(signed[split:]); err != nil {
		return nil, nil, err
	}
	return signed[:split], block, nil
}

// VerifyResult describes a successfully verified image.
type VerifyResult struct {
	Certificate *x509.Certificate
	Block       *SignatureBlock
	// DataLen is the length of the padded binary preceding the block.
	DataLen int
}

// Verify authenticates a signed image against the protected CA certificate
// caCertPEM, following the steps of the on-device loader: block format,
// digest, user certificate issued by the CA, then the PSS signature.
func Verify(signed []byte, caCertPEM []byte) (*VerifyResult, error) {
	ca, err := pki.ParseCertificatePEM(caCertPEM)
	if err != nil {
		return nil, fmt.Errorf("protected CA certificate: %w", err)
	}

	data, block, err := SplitSignedImage(signed)
	if err != nil {
		return nil, err
	}

	var result *multierror.Error
	if err := block.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if digest := sha256.Sum256(data); !bytes.Equal(digest[:], block.Digest[:]) {
		result = multierror.Append(result, fmt.Errorf("%w: digest mismatch", ErrVerificationFailed))
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	cert, err := pki.ParseCertificatePEM(block.CertificatePEM())
	if err != nil {
		return nil, fmt.Errorf("user app certificate: %w", err)
	}
	if err := checkIssuedBy(cert, ca, time.Now()); err != nil {
		return nil, err
	}

	pub := cert.PublicKey.(*rsa.PublicKey)
	if err := rsa.VerifyPSS(pub, crypto.SHA256, block.Digest[:], block.Signature[:], pssOptions); err != nil {
		return nil, fmt.Errorf("%w: signature: %w", ErrVerificationFailed, err)
	}

	return &VerifyResult{
		Certificate: cert,
		Block:       block,
		DataLen:     len(data),
	}, nil
}

func checkIssuedBy(cert, ca *x509.Certificate, now time.Time) error {
	if !bytes.Equal(cert.RawIssuer, ca.RawSubject) {
		return fmt.Errorf("%w: user app certificate issuer %q is not the protected CA %q", ErrVerificationFailed, cert.Issuer, ca.Subject)
	}
	if err := cert.CheckSignatureFrom(ca); err != nil {
		return fmt.Errorf("%w: user app certificate not signed by protected CA: %w", ErrVerificationFailed, err)
	}
	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return fmt.Errorf("%w: user app certificate is outside its validity period", ErrVerificationFailed)
	}
	if cert.KeyUsage != 0 && cert.KeyUsage&x509.KeyUsageDigitalSignature == 0 {
		return fmt.Errorf("%w: user app certificate is not valid for digital signatures", ErrVerificationFailed)
	}
	return nil
}
