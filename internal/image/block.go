package image

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/hashicorp/go-multierror"

	"github.com/privsep/appsign/internal/pki"
)

const (
	// SectorSize is the flash sector size. Signed images are padded to it and
	// the signature block occupies exactly one sector.
	SectorSize = 4096

	// BlockMagic is the first byte of every signature block.
	BlockMagic byte = 0xB7
	// BlockVersionRSA identifies the RSA-3072 PSS block layout.
	BlockVersionRSA byte = 0x01

	DigestSize    = sha256.Size
	SignatureSize = 384

	// headerSize covers magic, version, reserved bytes, digest, signature
	// and the certificate length field.
	headerSize = 4 + DigestSize + SignatureSize + 4
	// trailerSize covers the reserved word and the CRC.
	trailerSize = 8

	// MaxCertificateSize is the longest NUL-terminated certificate that fits
	// in the block.
	MaxCertificateSize = SectorSize - headerSize - trailerSize

	crcOffset = SectorSize - 4

	fillByte byte = 0xFF
)

// ErrInvalidSignatureBlock is returned for a malformed signature block.
var ErrInvalidSignatureBlock = errors.New("invalid signature block")

// SignatureBlock is the trailing sector appended to a signed user app image.
//
// Layout, little endian:
//
//	0     magic (0xB7)
//	1     version (0x01)
//	2     reserved, 2 bytes
//	4     SHA-256 digest of the padded image
//	36    RSA-PSS signature over the digest
//	420   certificate length including the NUL terminator
//	424   PEM certificate, NUL terminated, 0xFF filled
//	4088  reserved, 4 zero bytes
//	4092  CRC32 of bytes [0, 4092)
type SignatureBlock struct {
	Magic       byte
	Version     byte
	Reserved    [2]byte
	Digest      [DigestSize]byte
	Signature   [SignatureSize]byte
	Certificate []byte
	CRC         uint32

	computedCRC uint32
}

// NewSignatureBlock builds a block for digest and signature carrying the PEM
// certificate cert. cert must not include the NUL terminator; trailing NUL
// bytes are stripped before the terminator is added.
func NewSignatureBlock(digest [DigestSize]byte, signature []byte, cert []byte) (*SignatureBlock, error) {
	if len(signature) != SignatureSize {
		return nil, fmt.Errorf("signature is %d bytes, want %d", len(signature), SignatureSize)
	}

	for len(cert) > 0 && cert[len(cert)-1] == 0 {
		cert = cert[:len(cert)-1]
	}
	if len(cert)+1 > MaxCertificateSize {
		return nil, fmt.Errorf("%w: %d bytes including terminator, maximum is %d", pki.ErrCertificateTooLarge, len(cert)+1, MaxCertificateSize)
	}

	terminated := make([]byte, len(cert)+1)
	copy(terminated, cert)

	b := &SignatureBlock{
		Magic:       BlockMagic,
		Version:     BlockVersionRSA,
		Digest:      digest,
		Certificate: terminated,
	}
	copy(b.Signature[:], signature)
	return b, nil
}

// MarshalBinary encodes the block into exactly SectorSize bytes and sets
// its CRC.
func (b *SignatureBlock) MarshalBinary() ([]byte, error) {
	if len(b.Certificate) > MaxCertificateSize {
		return nil, fmt.Errorf("%w: %d bytes, maximum is %d", pki.ErrCertificateTooLarge, len(b.Certificate), MaxCertificateSize)
	}

	buf := make([]byte, 0, SectorSize)
	buf = append(buf, b.Magic, b.Version)
	buf = append(buf, b.Reserved[:]...)
	buf = append(buf, b.Digest[:]...)
	buf = append(buf, b.Signature[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b.Certificate)))
	buf = append(buf, b.Certificate...)
	for len(buf) < SectorSize-trailerSize {
		buf = append(buf, fillByte)
	}
	buf = binary.LittleEndian.AppendUint32(buf, 0)

	b.CRC = crc32.ChecksumIEEE(buf)
	b.computedCRC = b.CRC
	buf = binary.LittleEndian.AppendUint32(buf, b.CRC)
	return buf, nil
}

// UnmarshalBinary decodes a block. Structural problems such as a wrong size
// or an out of range certificate length are errors; magic, version and CRC
// are checked separately by Validate.
func (b *SignatureBlock) UnmarshalBinary(data []byte) error {
	if len(data) != SectorSize {
		return fmt.Errorf("%w: block is %d bytes, want %d", ErrInvalidSignatureBlock, len(data), SectorSize)
	}

	certLen := binary.LittleEndian.Uint32(data[headerSize-4 : headerSize])
	if certLen > MaxCertificateSize {
		return fmt.Errorf("%w: certificate length %d exceeds %d", ErrInvalidSignatureBlock, certLen, MaxCertificateSize)
	}

	b.Magic = data[0]
	b.Version = data[1]
	copy(b.Reserved[:], data[2:4])
	copy(b.Digest[:], data[4:4+DigestSize])
	copy(b.Signature[:], data[4+DigestSize:4+DigestSize+SignatureSize])
	b.Certificate = make([]byte, certLen)
	copy(b.Certificate, data[headerSize:headerSize+int(certLen)])
	b.CRC = binary.LittleEndian.Uint32(data[crcOffset:])
	b.computedCRC = crc32.ChecksumIEEE(data[:crcOffset])
	return nil
}

// CertificatePEM returns the certificate without its NUL terminator.
func (b *SignatureBlock) CertificatePEM() []byte {
	cert := b.Certificate
	if n := len(cert); n > 0 && cert[n-1] == 0 {
		cert = cert[:n-1]
	}
	return cert
}

// Validate checks magic, version and CRC and reports every mismatch.
func (b *SignatureBlock) Validate() error {
	var result *multierror.Error

	if b.Magic != BlockMagic {
		result = multierror.Append(result, fmt.Errorf("magic byte is 0x%02X, want 0x%02X", b.Magic, BlockMagic))
	}
	if b.Version != BlockVersionRSA {
		result = multierror.Append(result, fmt.Errorf("version is %d, want %d", b.Version, BlockVersionRSA))
	}
	if b.CRC != b.computedCRC {
		result = multierror.Append(result, fmt.Errorf("crc is 0x%08X, computed 0x%08X", b.CRC, b.computedCRC))
	}
	if n := len(b.Certificate); n == 0 || b.Certificate[n-1] != 0 {
		result = multierror.Append(result, errors.New("certificate is not NUL terminated"))
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignatureBlock, err)
	}
	return nil
}
