package field

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// HexString is the wire form of byte strings: lower-case hex with a 0x prefix.
// Decoding accepts the prefix as optional.
type HexString string

func NewHexString(b []byte) HexString {
	return HexString("0x" + hex.EncodeToString(b))
}

// Bytes decodes the string.
func (h HexString) Bytes() ([]byte, error) {
	s := strings.TrimPrefix(string(h), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidEncoding, err.Error())
	}
	return b, nil
}

// Word decodes the string as a word.
func (h HexString) Word() (Word, error) {
	b, err := h.Bytes()
	if err != nil {
		return Word{}, err
	}
	return WordFromBytes(b)
}

// Felt decodes the string as a single element.
func (h HexString) Felt() (Felt, error) {
	b, err := h.Bytes()
	if err != nil {
		return Felt{}, err
	}
	return FeltFromBytes(b)
}

// FeltHex encodes a single element.
func FeltHex(f Felt) HexString {
	return NewHexString(FeltToBytes(f))
}

// WordFromHex parses a hex word, with or without 0x.
func WordFromHex(s string) (Word, error) {
	return HexString(s).Word()
}

// MarshalText lets words appear directly in JSON documents as hex strings.
func (w Word) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

func (w *Word) UnmarshalText(text []byte) error {
	v, err := HexString(text).Word()
	if err != nil {
		return err
	}
	*w = v
	return nil
}
