package image

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"encoding/pem"
	"fmt"
	"hash/crc32"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privsep/appsign/internal/pki"
)

func testBinary(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return data
}

// Test PadToSector

func TestPadToSector(t *testing.T) {
	testCases := []struct {
		in   int
		want int
	}{
		{in: 0, want: 0},
		{in: 1, want: 4096},
		{in: 4096, want: 4096},
		{in: 4097, want: 8192},
		{in: 12000, want: 16384},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprint(tc.in), func(t *testing.T) {
			data := bytes.Repeat([]byte{0x11}, tc.in)
			padded := PadToSector(data)
			require.Len(t, padded, tc.want)
			assert.Equal(t, tc.want, PaddedLen(tc.in))
			assert.Equal(t, data, padded[:tc.in])
			for _, b := range padded[tc.in:] {
				require.Equal(t, byte(0xFF), b)
			}
		})
	}
}

// Test Sign

func TestSign_Layout(t *testing.T) {
	c := testTrustChain(t)
	bin := testBinary(12000)
	orig := bytes.Clone(bin)

	signed, err := Sign(bin, c.userKey, c.userPEM)
	require.NoError(t, err)
	require.Len(t, signed, 20480)
	assert.Equal(t, orig, bin, "input must not be modified")

	padded := signed[:16384]
	assert.Equal(t, bin, padded[:12000])
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 16384-12000), padded[12000:])

	block := signed[16384:]
	assert.Equal(t, byte(0xB7), block[0])
	assert.Equal(t, byte(0x01), block[1])

	digest := sha256.Sum256(padded)
	assert.Equal(t, digest[:], block[4:36])

	certLen := binary.LittleEndian.Uint32(block[420:424])
	assert.Equal(t, uint32(len(c.userPEM)+1), certLen)
	assert.Equal(t, c.userPEM, block[424:424+len(c.userPEM)])
	assert.Equal(t, byte(0), block[424+len(c.userPEM)])

	assert.Equal(t, []byte{0, 0, 0, 0}, block[4088:4092])
	assert.Equal(t, crc32.ChecksumIEEE(block[:4092]), binary.LittleEndian.Uint32(block[4092:]))

	err = rsa.VerifyPSS(&c.userKey.PublicKey, crypto.SHA256, block[4:36], block[36:420], &rsa.PSSOptions{
		SaltLength: 32,
		Hash:       crypto.SHA256,
	})
	assert.NoError(t, err)
}

func TestSign_OutputLength(t *testing.T) {
	c := testTrustChain(t)

	for _, n := range []int{0, 1, 4095, 4096, 8193} {
		signed, err := Sign(testBinary(n), c.userKey, c.userPEM)
		require.NoError(t, err)
		assert.Equal(t, PaddedLen(n)+SectorSize, len(signed), "binary of %d bytes", n)
	}
}

func TestSign_NULTerminatedCertificate(t *testing.T) {
	c := testTrustChain(t)

	signed, err := Sign(testBinary(100), c.userKey, append(bytes.Clone(c.userPEM), 0))
	require.NoError(t, err)

	_, block, err := SplitSignedImage(signed)
	require.NoError(t, err)
	assert.Equal(t, len(c.userPEM)+1, len(block.Certificate))
}

func TestSign_KeyCertificateMismatch(t *testing.T) {
	c := testTrustChain(t)

	_, err := Sign(testBinary(100), c.otherKey, c.userPEM)
	assert.ErrorIs(t, err, pki.ErrKeyCertificateMismatch)
}

func TestSign_InvalidCertificate(t *testing.T) {
	c := testTrustChain(t)

	_, err := Sign(testBinary(100), c.userKey, []byte("garbage"))
	assert.ErrorIs(t, err, pki.ErrInvalidCertificate)

	small, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	_, err = Sign(testBinary(100), small, c.userPEM)
	assert.ErrorIs(t, err, pki.ErrInvalidKeySize)
}

func TestSign_CertificateTooLarge(t *testing.T) {
	c := testTrustChain(t)

	names := make([]string, 200)
	for i := range names {
		names[i] = fmt.Sprintf("user-app-host-%03d.example.com", i)
	}
	tmpl := &x509.Certificate{
		SerialNumber:       big.NewInt(42),
		Subject:            pkix.Name{CommonName: "oversized"},
		NotBefore:          time.Now(),
		NotAfter:           time.Now().Add(time.Hour),
		DNSNames:           names,
		SignatureAlgorithm: x509.SHA256WithRSA,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &c.userKey.PublicKey, c.userKey)
	require.NoError(t, err)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	require.Greater(t, len(certPEM), MaxCertificateSize)

	_, err = Sign(testBinary(100), c.userKey, certPEM)
	assert.ErrorIs(t, err, pki.ErrCertificateTooLarge)
}

// Test SignFile

func TestSignFile(t *testing.T) {
	c := testTrustChain(t)
	dir := t.TempDir()

	in := filepath.Join(dir, "app.bin")
	keyPath := filepath.Join(dir, "user_key.pem")
	certPath := filepath.Join(dir, "user_cert.pem")
	out := filepath.Join(dir, "app_signed.bin")

	require.NoError(t, os.WriteFile(in, testBinary(12000), 0o644))
	require.NoError(t, os.WriteFile(keyPath, pki.MarshalPrivateKey(c.userKey), 0o600))
	require.NoError(t, os.WriteFile(certPath, c.userPEM, 0o644))

	require.NoError(t, SignFile(context.Background(), in, keyPath, certPath, out))

	signed, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, signed, 20480)

	_, err = Verify(signed, c.caPEM)
	assert.NoError(t, err)
}

func TestSignFile_RefusesInPlace(t *testing.T) {
	c := testTrustChain(t)
	dir := t.TempDir()

	in := filepath.Join(dir, "app.bin")
	keyPath := filepath.Join(dir, "user_key.pem")
	certPath := filepath.Join(dir, "user_cert.pem")
	require.NoError(t, os.WriteFile(in, testBinary(10), 0o644))
	require.NoError(t, os.WriteFile(keyPath, pki.MarshalPrivateKey(c.userKey), 0o600))
	require.NoError(t, os.WriteFile(certPath, c.userPEM, 0o644))

	err := SignFile(context.Background(), in, keyPath, certPath, filepath.Join(dir, ".", "app.bin"))
	assert.Error(t, err)

	data, err := os.ReadFile(in)
	require.NoError(t, err)
	assert.Equal(t, testBinary(10), data)
}

func TestSignFile_MissingInput(t *testing.T) {
	dir := t.TempDir()
	err := SignFile(context.Background(), filepath.Join(dir, "missing.bin"), "key.pem", "cert.pem", filepath.Join(dir, "out.bin"))
	assert.ErrorIs(t, err, pki.ErrIOFailure)

	_, err = os.Stat(filepath.Join(dir, "out.bin"))
	assert.True(t, os.IsNotExist(err))
}
