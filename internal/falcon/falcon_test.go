package falcon

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkutxo/internal/field"
)

var (
	testKeyOnce sync.Once
	testKey     *KeyPair
	testKeyErr  error
)

func loadTestKey(t *testing.T) *KeyPair {
	t.Helper()
	testKeyOnce.Do(func() {
		testKey, testKeyErr = GenerateKey(NewSeededReader([]byte("falcon test key")))
	})
	require.NoError(t, testKeyErr)
	return testKey
}

func TestRootsOfUnity(t *testing.T) {
	// psi has order exactly 2N
	assert.Equal(t, uint64(1), psiPow[0])
	assert.Equal(t, uint64(Q-1), psiPow[N])

	var a [N]uint64
	for i := range a {
		a[i] = uint64(i*31) % Q
	}
	ev := evalModQ(&a)
	assert.Equal(t, a, interpModQ(&ev))
}

func TestFFTRoundTrip(t *testing.T) {
	in := []float64{3, -1, 4, 1, -5, 9, 2, -6}
	out := ifft(fft(in))
	for i := range in {
		assert.InDelta(t, in[i], out[i], 1e-9)
	}
}

func TestMulModuloPFoldsToRingProduct(t *testing.T) {
	var a, b Polynomial
	for i := range a {
		a[i] = uint16((i*7 + 3) % Q)
		b[i] = uint16((i*i + 11) % Q)
	}
	full := MulModuloP(&a, &b)
	assert.Equal(t, uint64(0), full[ProductLen-1])
	assert.Equal(t, a.Mul(&b), ReduceNegacyclic(&full))
}

func TestGenerateKeyBasis(t *testing.T) {
	kp := loadTestKey(t)
	h := kp.pk.Poly()
	assert.True(t, checkBasis(kp.sk.f, kp.sk.g, kp.sk.F, kp.sk.G, &h))
	assert.LessOrEqual(t, gramSchmidtNorm(kp.sk.f, kp.sk.g), gsBound)

	// same seed, same key
	again, err := GenerateKey(NewSeededReader([]byte("falcon test key")))
	require.NoError(t, err)
	assert.True(t, again.Owner().Equal(kp.Owner()))
}

func TestSignVerify(t *testing.T) {
	kp := loadTestKey(t)
	msg := field.NewWord(1, 2, 3, 4)

	sig, err := kp.Sign(msg, NewSeededReader([]byte("nonce")))
	require.NoError(t, err)
	assert.True(t, sig.Verify(msg, kp.Owner()))

	t.Run("wrong message", func(t *testing.T) {
		assert.False(t, sig.Verify(field.NewWord(1, 2, 3, 5), kp.Owner()))
	})
	t.Run("wrong key", func(t *testing.T) {
		assert.False(t, sig.Verify(msg, field.NewWord(9, 9, 9, 9)))
	})
	t.Run("tampered s2", func(t *testing.T) {
		bad := *sig
		bad.s2[0] = uint16((int(bad.s2[0]) + Q/2) % Q)
		assert.False(t, bad.Verify(msg, kp.Owner()))
	})
	t.Run("tampered nonce", func(t *testing.T) {
		bad := *sig
		bad.nonce[0] ^= 1
		assert.False(t, bad.Verify(msg, kp.Owner()))
	})
}

func TestSignatureRelation(t *testing.T) {
	kp := loadTestKey(t)
	msg := field.NewWord(7, 7, 7, 7)
	sig, err := kp.Sign(msg, nil)
	require.NoError(t, err)

	// s1 + s2*h = c mod q
	h, s2 := sig.PubKeyPoly(), sig.SigPoly()
	s2h := s2.Mul(&h)
	c := HashToPoint(msg, sig.NonceElements())
	s1 := sig.S1(msg)
	for i := 0; i < N; i++ {
		assert.Equal(t, int64(c[i]), modQ(s1[i]+int64(s2h[i])))
	}
}

func TestEncodingRoundTrip(t *testing.T) {
	kp := loadTestKey(t)

	decoded, err := KeyPairFromBytes(kp.Bytes())
	require.NoError(t, err)
	assert.True(t, decoded.Owner().Equal(kp.Owner()))

	msg := field.NewWord(5, 6, 7, 8)
	sig, err := decoded.Sign(msg, nil)
	require.NoError(t, err)

	raw := sig.Bytes()
	require.Len(t, raw, SignatureSize)
	back, err := SignatureFromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, sig, back)
	assert.True(t, back.Verify(msg, kp.Owner()))

	corrupt := kp.Bytes()
	corrupt[1] ^= 0x01
	_, err = KeyPairFromBytes(corrupt)
	require.ErrorIs(t, err, ErrInvalidEncoding)

	_, err = SignatureFromBytes(raw[:10])
	require.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestNonceElements(t *testing.T) {
	var nonce [NonceBytes]byte
	for i := range nonce {
		nonce[i] = 0xff
	}
	for _, e := range NonceToElements(nonce) {
		assert.Equal(t, uint64(1<<40-1), e.Uint64())
	}
}
