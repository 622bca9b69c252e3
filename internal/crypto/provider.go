// Package crypto is the cryptography provider consumed by identity, credential
// and wallet services: key generation and signatures for Ed25519 and secp256k1,
// Argon2id passphrase derivation, XChaCha20-Poly1305 sealing, hashing, random
// bytes, and the base64url/multibase encodings.
//
// Callers never handle raw cipher primitives; they go through Provider so the
// algorithms can be swapped (or stubbed in tests) in one place.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
)

// Scheme identifies a signature scheme.
type Scheme string

const (
	SchemeEd25519   Scheme = "Ed25519"
	SchemeSecp256k1 Scheme = "secp256k1"
)

// IsValid reports whether the scheme is supported.
func (s Scheme) IsValid() bool {
	return s == SchemeEd25519 || s == SchemeSecp256k1
}

const (
	// CipherXChaCha20Poly1305 is recorded on every sealed blob.
	CipherXChaCha20Poly1305 = "xchacha20-poly1305"
	// KDFArgon2id is recorded on every sealed blob.
	KDFArgon2id = "argon2id"

	saltSize = 16
)

var (
	// ErrDecrypt is returned for any authenticated-decryption failure. It does
	// not distinguish a wrong key from tampered ciphertext.
	ErrDecrypt = errors.New("decryption failed")
	// ErrUnsupportedScheme is returned for unknown signature schemes.
	ErrUnsupportedScheme = errors.New("unsupported key scheme")
	// ErrMalformedKey is returned when key bytes cannot be parsed.
	ErrMalformedKey = errors.New("malformed key")
)

// Provider is the capability surface consumed by the services.
type Provider interface {
	GenerateKeyPair(scheme Scheme) (*KeyPair, error)
	Sign(scheme Scheme, privateKey, data []byte) ([]byte, error)
	Verify(scheme Scheme, publicKey, data, signature []byte) (bool, error)

	KDFParams() KDFParams
	DeriveKey(passphrase string, salt []byte, params KDFParams) []byte
	Encrypt(key, plaintext []byte) (*Sealed, error)
	Decrypt(key []byte, sealed *Sealed) ([]byte, error)
	SealWithPassphrase(passphrase string, plaintext []byte) (*EncryptedBlob, error)
	OpenWithPassphrase(passphrase string, blob *EncryptedBlob) ([]byte, error)

	RandomBytes(n int) ([]byte, error)
	SHA256(data []byte) []byte
}

// DefaultProvider implements Provider with the standard algorithms.
type DefaultProvider struct {
	kdf KDFParams
}

// Option configures the provider.
type Option func(*DefaultProvider)

// WithKDFParams overrides the Argon2id cost used for new blobs. Existing blobs
// always decrypt with the parameters recorded alongside them.
func WithKDFParams(params KDFParams) Option {
	return func(p *DefaultProvider) {
		if params.Time > 0 && params.MemoryKiB > 0 && params.Threads > 0 {
			p.kdf = params
		}
	}
}

// New creates the default provider.
func New(opts ...Option) *DefaultProvider {
	p := &DefaultProvider{kdf: DefaultKDFParams()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// KDFParams returns the parameters used for new blobs.
func (p *DefaultProvider) KDFParams() KDFParams {
	return p.kdf
}

// RandomBytes returns n bytes from the OS CSPRNG.
func (p *DefaultProvider) RandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return buf, nil
}

// SHA256 returns the SHA-256 digest of data.
func (p *DefaultProvider) SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

var _ Provider = (*DefaultProvider)(nil)
