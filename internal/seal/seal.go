// Package seal encrypts and decrypts private die records under a
// caller-supplied passphrase.
//
// The wire form is base64(salt || nonce || AES-256-GCM ciphertext), with the
// key derived from the passphrase by scrypt. The format carries no key id:
// a wrong passphrase and a corrupted blob are indistinguishable except that
// a corrupted blob may also fail to decode.
package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const (
	saltSize = 16
	keySize  = 32

	// DefaultN is the scrypt cost parameter used when none is configured.
	DefaultN = 1 << 15
)

var (
	// ErrMalformed reports ciphertext that is not valid base64 or is too short.
	ErrMalformed = errors.New("malformed ciphertext")
	// ErrAuth reports a GCM authentication failure: wrong passphrase or tampered data.
	ErrAuth = errors.New("message authentication failed")
)

// Opener decrypts a sealed blob with a passphrase.
type Opener interface {
	Open(ciphertext, passphrase string) ([]byte, error)
}

// Sealer encrypts plaintext under a passphrase.
type Sealer interface {
	Seal(plaintext []byte, passphrase string) (string, error)
}

// AESGCM implements Opener and Sealer with scrypt-derived AES-256-GCM keys.
type AESGCM struct {
	// N, R and P are the scrypt cost parameters.
	N, R, P int
}

// New returns an AESGCM with the given scrypt cost (DefaultN when n <= 1).
func New(n int) *AESGCM {
	if n <= 1 {
		n = DefaultN
	}
	return &AESGCM{N: n, R: 8, P: 1}
}

func (c *AESGCM) aead(passphrase string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, c.N, c.R, c.P, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}

// Seal encrypts plaintext with a fresh salt and nonce.
func (c *AESGCM) Seal(plaintext []byte, passphrase string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	aead, err := c.aead(passphrase, salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. It returns ErrMalformed or ErrAuth on failure.
func (c *AESGCM) Open(ciphertext, passphrase string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) < saltSize {
		return nil, ErrMalformed
	}
	aead, err := c.aead(passphrase, raw[:saltSize])
	if err != nil {
		return nil, err
	}
	rest := raw[saltSize:]
	if len(rest) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrMalformed
	}
	nonce, data := rest[:aead.NonceSize()], rest[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, data, nil)
	if err != nil {
		return nil, ErrAuth
	}
	return plain, nil
}
