// Package statuslist implements the revocation bitstring. Bit i is the
// i-th most significant bit of the byte string; the published form is
// GZIP-compressed and base64url encoded.
package statuslist

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/bits-and-blooms/bitset"
	"github.com/klauspost/compress/gzip"

	"attesto/internal/crypto"
)

// DefaultLength gives 16KiB lists, the minimum that keeps holders
// indistinguishable within a list.
const DefaultLength uint = 131072

// ErrOutOfRange is returned for indices at or beyond the list length.
var ErrOutOfRange = errors.New("status list index out of range")

// List is a fixed-length bitstring.
type List struct {
	bits   *bitset.BitSet
	length uint
}

// New returns an all-clear list.
func New(length uint) *List {
	if length == 0 {
		length = DefaultLength
	}
	return &List{bits: bitset.New(length), length: length}
}

// FromBytes rebuilds a list from its raw bitstring.
func FromBytes(raw []byte, length uint) (*List, error) {
	if length == 0 {
		length = uint(len(raw)) * 8
	}
	if uint(len(raw))*8 < length {
		return nil, fmt.Errorf("status list: %d bytes cannot hold %d bits", len(raw), length)
	}
	l := New(length)
	for i := uint(0); i < length; i++ {
		if raw[i/8]&(0x80>>(i%8)) != 0 {
			l.bits.Set(i)
		}
	}
	return l, nil
}

// Len is the number of addressable bits.
func (l *List) Len() uint { return l.length }

// Set flips bit i on.
func (l *List) Set(i uint) error {
	if i >= l.length {
		return ErrOutOfRange
	}
	l.bits.Set(i)
	return nil
}

// Test reports bit i; out-of-range indices read as clear.
func (l *List) Test(i uint) bool {
	return i < l.length && l.bits.Test(i)
}

// Count is the number of set bits.
func (l *List) Count() uint {
	return l.bits.Count()
}

// Bytes returns the raw bitstring.
func (l *List) Bytes() []byte {
	out := make([]byte, (l.length+7)/8)
	for i, ok := l.bits.NextSet(0); ok && i < l.length; i, ok = l.bits.NextSet(i + 1) {
		out[i/8] |= 0x80 >> (i % 8)
	}
	return out
}

// Encode returns the published encodedList value.
func (l *List) Encode() (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(l.Bytes()); err != nil {
		return "", fmt.Errorf("compress status list: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress status list: %w", err)
	}
	return crypto.EncodeBase64URL(buf.Bytes()), nil
}

// Decode parses an encodedList value.
func Decode(encoded string, length uint) (*List, error) {
	compressed, err := crypto.DecodeBase64URL(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode status list: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decompress status list: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress status list: %w", err)
	}
	return FromBytes(raw, length)
}
