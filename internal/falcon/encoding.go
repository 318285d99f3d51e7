package falcon

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Binary layouts. Header bytes carry log2(N) in the low nibble.
//
//	key pair:  0x50|logN, f, g, F, G (int16 BE each), h (uint16 BE)
//	signature: 0x30|logN, nonce, h (uint16 BE), s2 (uint16 BE)
const (
	keyPairHeader   = 0x50 | logN
	signatureHeader = 0x30 | logN

	KeyPairSize   = 1 + 4*2*N + 2*N
	SignatureSize = 1 + NonceBytes + 2*2*N
)

func putPoly(dst []byte, p *Polynomial) []byte {
	for _, c := range p {
		dst = binary.BigEndian.AppendUint16(dst, c)
	}
	return dst
}

func readPoly(src []byte) (Polynomial, []byte, error) {
	var p Polynomial
	for i := range p {
		c := binary.BigEndian.Uint16(src[2*i:])
		if c >= Q {
			return p, nil, errors.Wrapf(ErrInvalidEncoding, "coefficient %d out of range", i)
		}
		p[i] = c
	}
	return p, src[2*N:], nil
}

// Bytes encodes the key pair, secret basis included.
func (kp *KeyPair) Bytes() []byte {
	out := make([]byte, 0, KeyPairSize)
	out = append(out, keyPairHeader)
	for _, v := range [][]int64{kp.sk.f, kp.sk.g, kp.sk.F, kp.sk.G} {
		for _, c := range v {
			out = binary.BigEndian.AppendUint16(out, uint16(int16(c)))
		}
	}
	return putPoly(out, &kp.pk.h)
}

// KeyPairFromBytes decodes and validates a key pair.
func KeyPairFromBytes(b []byte) (*KeyPair, error) {
	if len(b) != KeyPairSize || b[0] != keyPairHeader {
		return nil, errors.Wrapf(ErrInvalidEncoding, "key pair of %d bytes", len(b))
	}
	b = b[1:]
	var basis [4][]int64
	for k := range basis {
		basis[k] = make([]int64, N)
		for i := range basis[k] {
			basis[k][i] = int64(int16(binary.BigEndian.Uint16(b[2*i:])))
		}
		b = b[2*N:]
	}
	h, _, err := readPoly(b)
	if err != nil {
		return nil, err
	}
	f, g, F, G := basis[0], basis[1], basis[2], basis[3]
	if !checkBasis(f, g, F, G, &h) {
		return nil, errors.Wrap(ErrInvalidEncoding, "key pair basis does not match public key")
	}
	return &KeyPair{sk: newSecretKey(f, g, F, G), pk: &PublicKey{h: h}}, nil
}

// Bytes encodes the signature.
func (s *Signature) Bytes() []byte {
	out := make([]byte, 0, SignatureSize)
	out = append(out, signatureHeader)
	out = append(out, s.nonce[:]...)
	out = putPoly(out, &s.h)
	return putPoly(out, &s.s2)
}

// SignatureFromBytes decodes a signature. It does not verify it.
func SignatureFromBytes(b []byte) (*Signature, error) {
	if len(b) != SignatureSize || b[0] != signatureHeader {
		return nil, errors.Wrapf(ErrInvalidEncoding, "signature of %d bytes", len(b))
	}
	sig := &Signature{}
	copy(sig.nonce[:], b[1:1+NonceBytes])
	rest := b[1+NonceBytes:]
	var err error
	if sig.h, rest, err = readPoly(rest); err != nil {
		return nil, err
	}
	if sig.s2, _, err = readPoly(rest); err != nil {
		return nil, err
	}
	return sig, nil
}

// Bytes encodes the coefficients as uint16 big-endian.
func (p *Polynomial) Bytes() []byte {
	return putPoly(make([]byte, 0, 2*N), p)
}

// PolynomialFromBytes is the inverse of Polynomial.Bytes.
func PolynomialFromBytes(b []byte) (Polynomial, error) {
	if len(b) != 2*N {
		return Polynomial{}, errors.Wrapf(ErrInvalidEncoding, "polynomial is %d bytes", len(b))
	}
	p, _, err := readPoly(b)
	return p, err
}
