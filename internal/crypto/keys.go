package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// KeyPair holds raw key material. PrivateKey is the 32-byte seed (Ed25519) or
// scalar (secp256k1) and must be sealed before it leaves the process.
type KeyPair struct {
	Scheme     Scheme
	PublicKey  []byte
	PrivateKey []byte
}

// Zero wipes the private key bytes.
func (k *KeyPair) Zero() {
	if k == nil {
		return
	}
	Zero(k.PrivateKey)
}

// GenerateKeyPair creates a fresh key pair for the scheme.
func (p *DefaultProvider) GenerateKeyPair(scheme Scheme) (*KeyPair, error) {
	switch scheme {
	case SchemeEd25519:
		pub, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, fmt.Errorf("generate ed25519 key: %w", err)
		}
		seed := make([]byte, ed25519.SeedSize)
		copy(seed, priv.Seed())
		Zero(priv)
		return &KeyPair{Scheme: scheme, PublicKey: pub, PrivateKey: seed}, nil
	case SchemeSecp256k1:
		priv, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, fmt.Errorf("generate secp256k1 key: %w", err)
		}
		defer priv.Zero()
		return &KeyPair{
			Scheme:     scheme,
			PublicKey:  priv.PubKey().SerializeCompressed(),
			PrivateKey: priv.Serialize(),
		}, nil
	default:
		return nil, ErrUnsupportedScheme
	}
}

// Sign signs data. secp256k1 signatures are DER-encoded ECDSA over SHA-256(data).
func (p *DefaultProvider) Sign(scheme Scheme, privateKey, data []byte) ([]byte, error) {
	switch scheme {
	case SchemeEd25519:
		if len(privateKey) != ed25519.SeedSize {
			return nil, ErrMalformedKey
		}
		key := ed25519.NewKeyFromSeed(privateKey)
		defer Zero(key)
		return ed25519.Sign(key, data), nil
	case SchemeSecp256k1:
		if len(privateKey) != secp256k1.PrivKeyBytesLen {
			return nil, ErrMalformedKey
		}
		priv := secp256k1.PrivKeyFromBytes(privateKey)
		defer priv.Zero()
		digest := sha256.Sum256(data)
		return ecdsa.Sign(priv, digest[:]).Serialize(), nil
	default:
		return nil, ErrUnsupportedScheme
	}
}

// Verify checks a signature. An invalid signature yields (false, nil); only
// malformed keys or unknown schemes produce an error.
func (p *DefaultProvider) Verify(scheme Scheme, publicKey, data, signature []byte) (bool, error) {
	switch scheme {
	case SchemeEd25519:
		if len(publicKey) != ed25519.PublicKeySize {
			return false, ErrMalformedKey
		}
		return ed25519.Verify(ed25519.PublicKey(publicKey), data, signature), nil
	case SchemeSecp256k1:
		pub, err := secp256k1.ParsePubKey(publicKey)
		if err != nil {
			return false, ErrMalformedKey
		}
		sig, err := ecdsa.ParseDERSignature(signature)
		if err != nil {
			return false, nil
		}
		digest := sha256.Sum256(data)
		return sig.Verify(digest[:], pub), nil
	default:
		return false, ErrUnsupportedScheme
	}
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
