package crypto

import (
	"encoding/base64"
	"fmt"

	"github.com/multiformats/go-multibase"
)

// EncodeBase64URL encodes without padding.
func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeBase64URL decodes unpadded base64url.
func DecodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// EncodeMultibase encodes as base58btc multibase ('z' prefix).
func EncodeMultibase(b []byte) (string, error) {
	return multibase.Encode(multibase.Base58BTC, b)
}

// DecodeMultibase decodes any multibase string but only accepts base58btc,
// which is what did:key identifiers use.
func DecodeMultibase(s string) ([]byte, error) {
	enc, data, err := multibase.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode multibase: %w", err)
	}
	if enc != multibase.Base58BTC {
		return nil, fmt.Errorf("unsupported multibase encoding %q", string(rune(enc)))
	}
	return data, nil
}
