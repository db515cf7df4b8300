// Package hexbytes converts between hex text and byte slices and flips byte order.
package hexbytes

import (
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrOddLength = errors.New("hex string has odd length")
	ErrLength    = errors.New("unexpected decoded length")
)

// Decode parses a hex string, accepting either case.
func Decode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, ErrOddLength
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Decode32 parses exactly 64 hex characters into a 32-byte array, keeping
// the textual byte order.
func Decode32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := Decode(s)
	if err != nil {
		return out, err
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("%w: got %d bytes, want %d", ErrLength, len(b), len(out))
	}
	copy(out[:], b)
	return out, nil
}

// Encode returns lowercase hex.
func Encode(b []byte) string {
	return hex.EncodeToString(b)
}

// Reverse flips b in place.
func Reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// Reversed returns a reversed copy of b.
func Reversed(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	Reverse(out)
	return out
}
