package image

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/privsep/appsign/internal/pki"
	"github.com/privsep/appsign/util"
)

const signedImageFileMode = 0o644

// pssOptions are shared by signer and verifier: MGF1 with SHA-256 and a
// salt as long as the digest.
var pssOptions = &rsa.PSSOptions{
	SaltLength: DigestSize,
	Hash:       crypto.SHA256,
}

// PaddedLen rounds n up to the next multiple of SectorSize.
func PaddedLen(n int) int {
	return (n + SectorSize - 1) / SectorSize * SectorSize
}

// PadToSector returns a copy of data padded with 0xFF up to a sector
// boundary. data itself is never modified.
func PadToSector(data []byte) []byte {
	padded := make([]byte, PaddedLen(len(data)))
	n := copy(padded, data)
	for i := n; i < len(padded); i++ {
		padded[i] = fillByte
	}
	return padded
}

// Sign pads binary to a sector boundary and appends a signature block
// holding the SHA-256 digest of the padded data, its RSA-PSS signature made
// with key and the PEM certificate certPEM.
//
// The certificate is validated and checked against key before anything is
// signed. The result is len(PadToSector(binary)) + SectorSize bytes long.
func Sign(binary []byte, key *rsa.PrivateKey, certPEM []byte) ([]byte, error) {
	cert, err := pki.ParseCertificatePEM(certPEM)
	if err != nil {
		return nil, err
	}
	if _, err := pki.ValidatePrivateKey(key); err != nil {
		return nil, err
	}
	if err := pki.CheckKeyPair(cert, key); err != nil {
		return nil, err
	}

	certPEM = bytes.TrimRight(certPEM, "\x00")
	if len(certPEM)+1 > MaxCertificateSize {
		return nil, fmt.Errorf("%w: %d bytes including terminator, maximum is %d", pki.ErrCertificateTooLarge, len(certPEM)+1, MaxCertificateSize)
	}

	if pad := PaddedLen(len(binary)) - len(binary); pad > 0 {
		log.Infof("Padding data contents by %d bytes so signature sector aligns at sector boundary", pad)
	}
	padded := PadToSector(binary)
	digest := sha256.Sum256(padded)

	signature, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest[:], pssOptions)
	if err != nil {
		return nil, fmt.Errorf("sign digest: %w", err)
	}

	block, err := NewSignatureBlock(digest, signature, certPEM)
	if err != nil {
		return nil, err
	}
	sector, err := block.MarshalBinary()
	if err != nil {
		return nil, err
	}

	return append(padded, sector...), nil
}

// SignFile signs the binary at in with the key and certificate files and
// writes the signed image to out. out must not name the input file.
func SignFile(ctx context.Context, in, keyPath, certPath, out string) error {
	if in == out || util.SameFile(in, out) {
		return fmt.Errorf("output file %s must differ from input file", out)
	}

	binary, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("%w: read binary: %w", pki.ErrIOFailure, err)
	}

	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return fmt.Errorf("%w: read certificate: %w", pki.ErrIOFailure, err)
	}

	key, err := pki.ReadPrivateKey(keyPath)
	if err != nil {
		return err
	}

	signed, err := Sign(binary, key, certPEM)
	if err != nil {
		return err
	}

	if err := util.WriteBytesAtomic(ctx, out, signed, signedImageFileMode); err != nil {
		return fmt.Errorf("%w: write signed image: %w", pki.ErrIOFailure, err)
	}

	log.Infof("Signed binary written to %s", out)
	return nil
}
