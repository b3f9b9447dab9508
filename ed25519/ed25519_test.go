package ed25519

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"testing"

	"filippo.io/edwards25519"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/group"
)

var _ group.Group = (*Curve)(nil)

func TestScalarArithmetic(t *testing.T) {
	g := New()

	a, err := g.RandomScalar(rand.Reader)
	require.NoError(t, err)
	b, err := g.RandomScalar(rand.Reader)
	require.NoError(t, err)

	t.Run("AddSub", func(t *testing.T) {
		sum := g.NewScalar().Add(a, b)
		back := g.NewScalar().Sub(sum, b)
		assert.True(t, back.Equal(a))
	})

	t.Run("Invert", func(t *testing.T) {
		inv, err := g.NewScalar().Invert(a)
		require.NoError(t, err)
		one := g.NewScalar().Mul(a, inv)
		assert.True(t, one.Equal(ScalarFromUint64(1)))

		_, err = g.NewScalar().Invert(g.NewScalar())
		assert.Error(t, err)
	})

	t.Run("SetUint64", func(t *testing.T) {
		s := ScalarFromUint64(0x0102)
		enc := s.Bytes()
		assert.Equal(t, byte(0x02), enc[0])
		assert.Equal(t, byte(0x01), enc[1])
		sum := g.NewScalar().Add(ScalarFromUint64(40), ScalarFromUint64(2))
		assert.True(t, sum.Equal(ScalarFromUint64(42)))
	})

	t.Run("Negate", func(t *testing.T) {
		neg := g.NewScalar().Negate(a)
		assert.True(t, g.NewScalar().Add(a, neg).IsZero())
	})
}

func TestScalarDecoding(t *testing.T) {
	g := New()

	t.Run("RoundTrip", func(t *testing.T) {
		s, err := g.RandomScalar(rand.Reader)
		require.NoError(t, err)
		decoded, err := DecodeScalar(s.Bytes())
		require.NoError(t, err)
		assert.True(t, decoded.Equal(s))
	})

	t.Run("RejectsOrder", func(t *testing.T) {
		// l itself, little-endian, is the smallest non-canonical value.
		l := g.Order()
		le := make([]byte, len(l))
		for i := range l {
			le[i] = l[len(l)-1-i]
		}
		existing := ScalarFromUint64(7)
		_, err := existing.SetBytes(le)
		require.ErrorIs(t, err, errs.InvalidEncoding)
		assert.True(t, existing.Equal(ScalarFromUint64(7)), "receiver must be unchanged")
	})

	t.Run("RejectsShort", func(t *testing.T) {
		_, err := DecodeScalar([]byte{1, 2, 3})
		require.ErrorIs(t, err, errs.InvalidEncoding)
	})
}

func TestPointDecoding(t *testing.T) {
	g := New()

	t.Run("RoundTrip", func(t *testing.T) {
		s, err := g.RandomScalar(rand.Reader)
		require.NoError(t, err)
		p := group.BaseMult(g, s)
		decoded, err := DecodePoint(p.Bytes())
		require.NoError(t, err)
		assert.True(t, decoded.Equal(p))
	})

	t.Run("RejectsOffCurve", func(t *testing.T) {
		// Roughly half of all y coordinates have no matching x.
		var enc [PointSize]byte
		found := false
		for i := 2; i < 256; i++ {
			enc[0] = byte(i)
			if _, err := new(edwards25519.Point).SetBytes(enc[:]); err != nil {
				found = true
				break
			}
		}
		require.True(t, found)
		_, err := DecodePoint(enc[:])
		require.ErrorIs(t, err, errs.InvalidEncoding)
	})
}

func TestHashToScalar(t *testing.T) {
	digest := Keccak256([]byte("hello"), []byte(" world"))
	whole := Keccak256([]byte("hello world"))
	assert.Equal(t, whole, digest, "input is concatenated")

	s := HashToScalar([]byte("hello world"))
	// Hs output is always canonical.
	_, err := DecodeScalar(s.Bytes())
	require.NoError(t, err)
}

func TestPedersenGenerator(t *testing.T) {
	// H = 8 * decompress(keccak(G)).
	g := edwards25519.NewGeneratorPoint()
	digest := Keccak256(g.Bytes())
	p, err := new(edwards25519.Point).SetBytes(digest[:])
	require.NoError(t, err)
	p.MultByCofactor(p)
	assert.Equal(t, H.Bytes(), p.Bytes())
}

func unhex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

// Vectors computed from crypto-ops.c's ge_fromfe_frombytes_vartime,
// ge_mul8 and sc_reduce32.
func TestHashKnownAnswers(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"", "d6d7d783ab18e1be65586adb7902a4175b737ef0b902875e1d1d5c5cf0478c0b"},
		{"786d72736967", "5ab00727e642f7c9650f26c6f84832c040e2ac18495210834a0553d344763f77"},
		{"5866666666666666666666666666666666666666666666666666666666666666", "6db5959b81f18f6cde673fc870005e26f6084f80d5c3f59f5f20adeb2db4eec5"},
	} {
		assert.Equal(t, tc.want, hex.EncodeToString(HashToPoint(unhex(t, tc.in)).Bytes()), "hash_to_ec(%s)", tc.in)
	}

	assert.Equal(t, "b10381d1cf948bc307d8d2cfe60c23f3346f6576ab44ebe28b7d3ce747148007",
		hex.EncodeToString(HashToScalar([]byte("xmrsig")).Bytes()))

	// generate_key_image: I = x*Hp(x*G).
	x, err := DecodeScalar(unhex(t, "18e85bb2013c0c6fa7efc97e2635b8825cd44bc57b8737405a7eb81a502a0905"))
	require.NoError(t, err)
	pub := BaseMult(x)
	assert.Equal(t, "581ba2f8770933d8959db7185b674ee710bdb0a81cd0b436f3fa2c645415470b", hex.EncodeToString(pub.Bytes()))
	image := NewIdentity().ScalarMult(x, HashPointToPoint(pub))
	assert.Equal(t, "53ba6dcad65b75a300761eedf834d0d5a2faea30923599201703c817517e231b", hex.EncodeToString(image.Bytes()))
}

func TestHashToPoint(t *testing.T) {
	g := New()

	var seen [][]byte
	for i := 0; i < 32; i++ {
		s, err := g.RandomScalar(rand.Reader)
		require.NoError(t, err)
		pub := BaseMult(s.(*Scalar))
		hp := HashPointToPoint(pub)

		assert.False(t, hp.IsIdentity())
		assert.True(t, TorsionFree(hp), "Hp output must be in the prime subgroup")
		assert.Equal(t, hp.Bytes(), HashToPoint(pub.Bytes()).Bytes(), "Hp is deterministic")
		for _, prev := range seen {
			assert.False(t, bytes.Equal(prev, hp.Bytes()))
		}
		seen = append(seen, hp.Bytes())
	}
}

func TestTorsionFree(t *testing.T) {
	assert.True(t, TorsionFree(WrapPoint(edwards25519.NewGeneratorPoint())))
	assert.True(t, TorsionFree(NewIdentity()))

	// (0, -1) has order 2.
	var enc [PointSize]byte
	enc[0] = 0xec
	for i := 1; i < 31; i++ {
		enc[i] = 0xff
	}
	enc[31] = 0x7f
	low, err := DecodePoint(enc[:])
	require.NoError(t, err)
	mixed := NewIdentity()
	mixed.Add(WrapPoint(edwards25519.NewGeneratorPoint()), low)
	assert.False(t, TorsionFree(mixed))
}
