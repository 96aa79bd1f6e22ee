package pki

import "errors"

var (
	ErrInvalidKeySize         = errors.New("invalid key size")
	ErrInvalidKeyType         = errors.New("invalid key type")
	ErrInvalidCertificate     = errors.New("invalid certificate")
	ErrKeyCertificateMismatch = errors.New("certificate and private key do not match")
	ErrCertificateTooLarge    = errors.New("certificate too large")
	ErrIOFailure              = errors.New("i/o failure")
	ErrInvalidCSR             = errors.New("invalid certificate signing request")
	ErrInvalidSubject         = errors.New("invalid subject")
)
