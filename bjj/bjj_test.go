package bjj

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/group"
)

var _ group.Group = (*BJJ)(nil)

func TestScalar(t *testing.T) {
	g := &BJJ{}

	t.Run("AddSub", func(t *testing.T) {
		a, _ := g.RandomScalar(rand.Reader)
		b, _ := g.RandomScalar(rand.Reader)

		sum := g.NewScalar().Add(a, b)
		diff := g.NewScalar().Sub(sum, b)
		assert.True(t, diff.Equal(a), "(a+b)-b != a")
	})

	t.Run("MulInvert", func(t *testing.T) {
		a, _ := g.RandomScalar(rand.Reader)
		aInv, err := g.NewScalar().Invert(a)
		require.NoError(t, err)

		product := g.NewScalar().Mul(a, aInv)
		assert.True(t, product.Equal(g.NewScalar().SetUint64(1)), "a*a^-1 != 1")
	})

	t.Run("InvertZeroFails", func(t *testing.T) {
		_, err := g.NewScalar().Invert(g.NewScalar())
		assert.Error(t, err)
	})

	t.Run("Negate", func(t *testing.T) {
		a, _ := g.RandomScalar(rand.Reader)
		negA := g.NewScalar().Negate(a)
		assert.True(t, g.NewScalar().Add(a, negA).IsZero())
	})

	t.Run("BytesRoundtrip", func(t *testing.T) {
		a, _ := g.RandomScalar(rand.Reader)
		raw := a.Bytes()
		require.Len(t, raw, g.ScalarLen())

		restored, err := g.NewScalar().SetBytes(raw)
		require.NoError(t, err)
		assert.True(t, restored.Equal(a))
	})

	t.Run("SetBytesRejectsOrder", func(t *testing.T) {
		order := make([]byte, scalarLen)
		new(big.Int).SetBytes(g.Order()).FillBytes(order)

		s := g.NewScalar().SetUint64(9)
		_, err := s.SetBytes(order)
		require.ErrorIs(t, err, errs.InvalidEncoding)
		assert.True(t, s.Equal(g.NewScalar().SetUint64(9)))

		_, err = g.NewScalar().SetBytes([]byte{1})
		require.ErrorIs(t, err, errs.InvalidEncoding)
	})

	t.Run("Equal", func(t *testing.T) {
		var a group.Scalar
		for {
			// a == -a only for zero
			a, _ = g.RandomScalar(rand.Reader)
			if !a.IsZero() {
				break
			}
		}
		assert.True(t, a.Equal(g.NewScalar().Set(a)))
		assert.False(t, a.Equal(g.NewScalar().Negate(a)))
	})

	t.Run("ScalarFromWide", func(t *testing.T) {
		_, err := g.ScalarFromWide(make([]byte, 32))
		require.ErrorIs(t, err, errs.InvalidEncoding)

		wide := make([]byte, 64)
		wide[63] = 5
		s, err := g.ScalarFromWide(wide)
		require.NoError(t, err)
		assert.True(t, s.Equal(g.NewScalar().SetUint64(5)))
	})
}

func TestPoint(t *testing.T) {
	g := &BJJ{}

	t.Run("AddSub", func(t *testing.T) {
		s1, _ := g.RandomScalar(rand.Reader)
		s2, _ := g.RandomScalar(rand.Reader)
		P := group.BaseMult(g, s1)
		Q := group.BaseMult(g, s2)

		sum := g.NewPoint().Add(P, Q)
		assert.True(t, g.NewPoint().Sub(sum, Q).Equal(P))
	})

	t.Run("Negate", func(t *testing.T) {
		s, _ := g.RandomScalar(rand.Reader)
		P := group.BaseMult(g, s)
		negP := g.NewPoint().Negate(P)
		assert.True(t, g.NewPoint().Add(P, negP).IsIdentity())
	})

	t.Run("BytesRoundtrip", func(t *testing.T) {
		s, _ := g.RandomScalar(rand.Reader)
		P := group.BaseMult(g, s)

		restored, err := g.NewPoint().SetBytes(P.Bytes())
		require.NoError(t, err)
		assert.True(t, restored.Equal(P))
	})

	t.Run("SetBytesRejectsShort", func(t *testing.T) {
		_, err := g.NewPoint().SetBytes([]byte{0, 1})
		require.ErrorIs(t, err, errs.InvalidEncoding)
	})

	t.Run("IsIdentity", func(t *testing.T) {
		assert.True(t, g.NewPoint().IsIdentity())
		assert.False(t, g.Generator().IsIdentity())
	})

	t.Run("TorsionFree", func(t *testing.T) {
		assert.True(t, g.Generator().TorsionFree())
		assert.True(t, g.NewPoint().TorsionFree())

		// (0, -1) has order 2.
		low := &Point{}
		low.inner.Y.SetOne()
		low.inner.Y.Neg(&low.inner.Y)
		require.True(t, low.inner.IsOnCurve())
		assert.False(t, g.NewPoint().Add(g.Generator(), low).TorsionFree())
	})
}
