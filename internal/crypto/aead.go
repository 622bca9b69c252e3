package crypto

import (
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// KDFParams are the Argon2id cost parameters.
type KDFParams struct {
	Time      uint32 `json:"time"`
	MemoryKiB uint32 `json:"memoryKiB"`
	Threads   uint8  `json:"threads"`
}

// DefaultKDFParams returns the production Argon2id cost.
func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 3, MemoryKiB: 64 * 1024, Threads: 2}
}

// Sealed is the output of authenticated encryption with the tag split out.
type Sealed struct {
	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
}

// EncryptedBlob is the persisted form of passphrase-sealed data. Every binary
// field is independently base64url-encoded.
type EncryptedBlob struct {
	Ciphertext string    `json:"ciphertext"`
	IV         string    `json:"iv"`
	Tag        string    `json:"tag"`
	Salt       string    `json:"salt"`
	Cipher     string    `json:"cipher"`
	KDF        string    `json:"kdf"`
	KDFParams  KDFParams `json:"kdfParams"`
}

// DeriveKey runs Argon2id over the passphrase and salt.
func (p *DefaultProvider) DeriveKey(passphrase string, salt []byte, params KDFParams) []byte {
	return argon2.IDKey([]byte(passphrase), salt, params.Time, params.MemoryKiB, params.Threads, chacha20poly1305.KeySize)
}

// Encrypt seals plaintext under key with a fresh random nonce.
func (p *DefaultProvider) Encrypt(key, plaintext []byte) (*Sealed, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	nonce, err := p.RandomBytes(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, err
	}
	out := aead.Seal(nil, nonce, plaintext, nil)
	split := len(out) - aead.Overhead()
	return &Sealed{
		Ciphertext: out[:split],
		Nonce:      nonce,
		Tag:        out[split:],
	}, nil
}

// Decrypt opens a sealed payload. All authentication failures collapse to ErrDecrypt.
func (p *DefaultProvider) Decrypt(key []byte, sealed *Sealed) ([]byte, error) {
	if sealed == nil {
		return nil, ErrDecrypt
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, ErrDecrypt
	}
	if len(sealed.Nonce) != aead.NonceSize() || len(sealed.Tag) != aead.Overhead() {
		return nil, ErrDecrypt
	}
	combined := make([]byte, 0, len(sealed.Ciphertext)+len(sealed.Tag))
	combined = append(combined, sealed.Ciphertext...)
	combined = append(combined, sealed.Tag...)
	plaintext, err := aead.Open(nil, sealed.Nonce, combined, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// SealWithPassphrase derives a key from passphrase with a fresh salt and seals plaintext.
func (p *DefaultProvider) SealWithPassphrase(passphrase string, plaintext []byte) (*EncryptedBlob, error) {
	salt, err := p.RandomBytes(saltSize)
	if err != nil {
		return nil, err
	}
	key := p.DeriveKey(passphrase, salt, p.kdf)
	defer Zero(key)

	sealed, err := p.Encrypt(key, plaintext)
	if err != nil {
		return nil, err
	}
	return &EncryptedBlob{
		Ciphertext: EncodeBase64URL(sealed.Ciphertext),
		IV:         EncodeBase64URL(sealed.Nonce),
		Tag:        EncodeBase64URL(sealed.Tag),
		Salt:       EncodeBase64URL(salt),
		Cipher:     CipherXChaCha20Poly1305,
		KDF:        KDFArgon2id,
		KDFParams:  p.kdf,
	}, nil
}

// OpenWithPassphrase re-derives the key from the blob's salt and parameters and
// decrypts. Malformed encodings are reported as ErrDecrypt.
func (p *DefaultProvider) OpenWithPassphrase(passphrase string, blob *EncryptedBlob) ([]byte, error) {
	if blob == nil || blob.Cipher != CipherXChaCha20Poly1305 || blob.KDF != KDFArgon2id {
		return nil, ErrDecrypt
	}
	salt, err := DecodeBase64URL(blob.Salt)
	if err != nil {
		return nil, ErrDecrypt
	}
	sealed, err := blob.sealed()
	if err != nil {
		return nil, ErrDecrypt
	}
	key := p.DeriveKey(passphrase, salt, blob.KDFParams)
	defer Zero(key)
	return p.Decrypt(key, sealed)
}

func (b *EncryptedBlob) sealed() (*Sealed, error) {
	ciphertext, err := DecodeBase64URL(b.Ciphertext)
	if err != nil {
		return nil, err
	}
	nonce, err := DecodeBase64URL(b.IV)
	if err != nil {
		return nil, err
	}
	tag, err := DecodeBase64URL(b.Tag)
	if err != nil {
		return nil, err
	}
	return &Sealed{Ciphertext: ciphertext, Nonce: nonce, Tag: tag}, nil
}
