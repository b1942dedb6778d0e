// Package crypto seals small secrets with a passphrase.
//
// Sealed format: magic(4) + version(4) + salt(32) + nonce(12) + ciphertext.
// The key is derived with Argon2id and the payload is encrypted with
// AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	// MagicBytes identifies a sealed vidgrab secret.
	MagicBytes = "VGSC"

	FormatVersion = 1

	SaltSize  = 32
	NonceSize = 12 // GCM standard nonce size
	KeyLen    = 32 // AES-256

	HeaderSize = 4 + 4 + SaltSize + NonceSize
)

var (
	ErrInvalidMagic   = errors.New("invalid format: not a sealed vidgrab secret")
	ErrInvalidVersion = errors.New("unsupported sealed format version")
	ErrOpenFailed     = errors.New("unseal failed: wrong passphrase or corrupted data")
	ErrEmptyPassword  = errors.New("passphrase is required")
)

// KDFParams are the Argon2id cost parameters.
type KDFParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultKDF follows the OWASP Argon2id recommendation.
var DefaultKDF = KDFParams{Time: 3, Memory: 64 * 1024, Threads: 4}

// Sealer encrypts and decrypts secrets with a passphrase.
type Sealer struct {
	kdf KDFParams
}

// NewSealer creates a Sealer. A zero KDFParams selects DefaultKDF.
func NewSealer(kdf KDFParams) *Sealer {
	if kdf == (KDFParams{}) {
		kdf = DefaultKDF
	}
	return &Sealer{kdf: kdf}
}

func (s *Sealer) deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, s.kdf.Time, s.kdf.Memory, s.kdf.Threads, KeyLen)
}

func (s *Sealer) gcm(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext. The header is bound as additional data so it
// cannot be altered without failing Open.
func (s *Sealer) Seal(plaintext []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassword
	}

	header := make([]byte, HeaderSize)
	copy(header[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	if _, err := io.ReadFull(rand.Reader, header[8:HeaderSize]); err != nil {
		return nil, fmt.Errorf("generate salt and nonce: %w", err)
	}
	salt := header[8 : 8+SaltSize]
	nonce := header[8+SaltSize : HeaderSize]

	gcm, err := s.gcm(passphrase, salt)
	if err != nil {
		return nil, err
	}

	out := make([]byte, HeaderSize, HeaderSize+len(plaintext)+gcm.Overhead())
	copy(out, header)
	return gcm.Seal(out, nonce, plaintext, header), nil
}

// Open decrypts data produced by Seal.
func (s *Sealer) Open(data []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassword
	}
	if !IsSealed(data) || len(data) < HeaderSize {
		return nil, ErrInvalidMagic
	}
	if binary.LittleEndian.Uint32(data[4:8]) != FormatVersion {
		return nil, ErrInvalidVersion
	}

	header := data[:HeaderSize]
	salt := header[8 : 8+SaltSize]
	nonce := header[8+SaltSize:]

	gcm, err := s.gcm(passphrase, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, data[HeaderSize:], header)
	if err != nil {
		return nil, ErrOpenFailed
	}
	return plaintext, nil
}

// IsSealed reports whether data starts with the sealed-secret magic bytes.
func IsSealed(data []byte) bool {
	return len(data) >= 4 && string(data[0:4]) == MagicBytes
}
