package monero

import (
	"crypto/rand"
	"math"
	"testing"

	"filippo.io/edwards25519"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f3rmion/xmrsig/clsag"
	"github.com/f3rmion/xmrsig/ed25519"
	"github.com/f3rmion/xmrsig/errs"
)

func randScalar(t *testing.T) *edwards25519.Scalar {
	t.Helper()
	var wide [64]byte
	_, err := rand.Read(wide[:])
	require.NoError(t, err)
	s, err := edwards25519.NewScalar().SetUniformBytes(wide[:])
	require.NoError(t, err)
	return s
}

func randPoint(t *testing.T) [32]byte {
	return [32]byte(new(edwards25519.Point).ScalarBaseMult(randScalar(t)).Bytes())
}

func offCurve(t *testing.T) [32]byte {
	t.Helper()
	var enc [32]byte
	for i := 2; i < 256; i++ {
		enc[0] = byte(i)
		if _, err := new(edwards25519.Point).SetBytes(enc[:]); err != nil {
			return enc
		}
	}
	t.Fatal("no off-curve encoding found")
	return enc
}

type fixture struct {
	skeleton *Skeleton
	// secrets[i] is the one-time secret of input i.
	secrets []*edwards25519.Scalar
}

// newFixture builds a skeleton spending amounts to two outputs with the
// remainder as fee.
func newFixture(t *testing.T, amounts []uint64, ringSize int) *fixture {
	t.Helper()
	fx := &fixture{skeleton: &Skeleton{Extra: []byte{0x01, 0x02}}}
	fx.skeleton.RangeProof = RangeProof{Serialized: []byte{0x01, 0xaa, 0xbb}, HashData: []byte("range proof keys")}

	var total uint64
	for i, amount := range amounts {
		x, offset, mask := randScalar(t), randScalar(t), randScalar(t)
		groupKey := new(edwards25519.Point).ScalarBaseMult(x)
		spend := new(edwards25519.Point).Add(groupKey, new(edwards25519.Point).ScalarBaseMult(offset))
		fx.secrets = append(fx.secrets, edwards25519.NewScalar().Add(x, offset))

		in := SkeletonInput{
			GroupKey:  [32]byte(groupKey.Bytes()),
			Amount:    amount,
			Mask:      [32]byte(mask.Bytes()),
			Offset:    [32]byte(offset.Bytes()),
			RealIndex: (i * 3) % ringSize,
		}
		for j := range ringSize {
			m := RingMember{GlobalIndex: uint64(1000*i + 7*j + 1)}
			if j == in.RealIndex {
				m.Key = [32]byte(spend.Bytes())
				m.Commitment = [32]byte(Commit(mask, amount).Bytes())
			} else {
				m.Key = randPoint(t)
				m.Commitment = randPoint(t)
			}
			in.Ring = append(in.Ring, m)
		}
		fx.skeleton.Inputs = append(fx.skeleton.Inputs, in)
		total += amount
	}

	fee := uint64(30)
	first := (total - fee) / 3
	for i, amount := range []uint64{first, total - fee - first} {
		fx.skeleton.Outputs = append(fx.skeleton.Outputs, SkeletonOutput{
			Key:             randPoint(t),
			ViewTag:         byte(0x10 + i),
			Amount:          amount,
			Mask:            [32]byte(randScalar(t).Bytes()),
			EncryptedAmount: [8]byte{byte(i), 1, 2, 3, 4, 5, 6, 7},
		})
	}
	fx.skeleton.Fee = fee
	return fx
}

// sign completes the plan with single-key CLSAGs.
func (fx *fixture) sign(t *testing.T) (*Plan, *Transaction) {
	t.Helper()
	plan, err := fx.skeleton.Decode()
	require.NoError(t, err)

	masks, err := plan.PseudoOutMasks(rand.Reader)
	require.NoError(t, err)
	images := make([]*edwards25519.Point, len(plan.Inputs))
	pseudo := make([]*edwards25519.Point, len(plan.Inputs))
	for i, in := range plan.Inputs {
		images[i] = clsag.KeyImage(fx.secrets[i], in.SpendKey())
		pseudo[i] = Commit(masks[i], in.Amount)
	}
	tx, err := plan.Transaction(images, pseudo)
	require.NoError(t, err)

	msg := tx.SigningHash()
	for i, in := range plan.Inputs {
		z := edwards25519.NewScalar().Subtract(in.Mask, masks[i])
		sig, _, err := clsag.Sign(rand.Reader, msg[:], in.Ring, pseudo[i], in.RealIndex, fx.secrets[i], z)
		require.NoError(t, err)
		tx.Inputs[i].Signature = sig
	}
	return plan, tx
}

func TestCompleteTransaction(t *testing.T) {
	fx := newFixture(t, []uint64{700, 330}, 16)
	plan, tx := fx.sign(t)

	done, err := tx.Complete()
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), done.Hash)
	require.Len(t, done.KeyImages, 2)

	prefix, n, err := ParsePrefix(done.Blob)
	require.NoError(t, err)
	assert.Equal(t, tx.Prefix(), done.Blob[:n])
	assert.EqualValues(t, 2, prefix.Version)
	require.Len(t, prefix.Inputs, 2)
	for i, in := range prefix.Inputs {
		assert.Equal(t, plan.Inputs[i].Indices, in.Indices)
		assert.Equal(t, 1, in.KeyImage.Equal(done.KeyImages[i]))
	}
	require.Len(t, prefix.Outputs, 2)
	assert.Equal(t, byte(0x11), prefix.Outputs[1].ViewTag)
	assert.Equal(t, fx.skeleton.Extra, prefix.Extra)

	// type byte, then the fee varint.
	assert.Equal(t, byte(rctTypeBulletproof), done.Blob[n])
	assert.Equal(t, byte(30), done.Blob[n+1])
}

func TestCompleteRejects(t *testing.T) {
	fx := newFixture(t, []uint64{500, 500}, 11)

	t.Run("unsigned", func(t *testing.T) {
		_, tx := fx.sign(t)
		tx.Inputs[1].Signature = nil
		_, err := tx.Complete()
		require.ErrorIs(t, err, errs.ProtocolViolation)
	})

	t.Run("signature over other message", func(t *testing.T) {
		_, tx := fx.sign(t)
		tx.Fee++
		_, err := tx.Complete()
		require.ErrorIs(t, err, errs.ChallengeMismatch)
		var e *errs.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, 0, e.Input)
	})

	t.Run("balance", func(t *testing.T) {
		plan, err := fx.skeleton.Decode()
		require.NoError(t, err)
		pseudo := make([]*edwards25519.Point, len(plan.Inputs))
		images := make([]*edwards25519.Point, len(plan.Inputs))
		for i, in := range plan.Inputs {
			// Random masks that do not sum to the output masks.
			pseudo[i] = Commit(randScalar(t), in.Amount)
			images[i] = clsag.KeyImage(fx.secrets[i], in.SpendKey())
		}
		tx, err := plan.Transaction(images, pseudo)
		require.NoError(t, err)
		msg := tx.SigningHash()
		for i, in := range plan.Inputs {
			// Sign with whatever z opens C_l - pseudo; use a throwaway ring
			// where that holds so only the balance check fails.
			z := randScalar(t)
			ring := clsag.Ring{
				Keys:        []*edwards25519.Point{in.SpendKey()},
				Commitments: []*edwards25519.Point{new(edwards25519.Point).Add(pseudo[i], new(edwards25519.Point).ScalarBaseMult(z))},
			}
			sig, _, err := clsag.Sign(rand.Reader, msg[:], ring, pseudo[i], 0, fx.secrets[i], z)
			require.NoError(t, err)
			tx.Inputs[i].Ring = ring
			tx.Inputs[i].Signature = sig
		}
		_, err = tx.Complete()
		require.ErrorIs(t, err, errs.BalanceMismatch)
	})
}

func TestDecodeRejects(t *testing.T) {
	t.Run("amounts", func(t *testing.T) {
		fx := newFixture(t, []uint64{100}, 4)
		fx.skeleton.Fee++
		_, err := fx.skeleton.Decode()
		require.ErrorIs(t, err, errs.BalanceMismatch)
	})
	t.Run("output overflow", func(t *testing.T) {
		fx := newFixture(t, []uint64{100}, 4)
		extra := fx.skeleton.Outputs[0]
		extra.Key = randPoint(t)
		fx.skeleton.Outputs = append(fx.skeleton.Outputs, extra)
		// A carry folded into the next addition would sum these to 100.
		fx.skeleton.Outputs[0].Amount = math.MaxUint64
		fx.skeleton.Outputs[1].Amount = 1
		fx.skeleton.Outputs[2].Amount = 99
		fx.skeleton.Fee = 0
		_, err := fx.skeleton.Decode()
		require.ErrorIs(t, err, errs.BalanceMismatch)
	})
	t.Run("input overflow", func(t *testing.T) {
		fx := newFixture(t, []uint64{math.MaxUint64, 2, 40}, 4)
		_, err := fx.skeleton.Decode()
		require.ErrorIs(t, err, errs.BalanceMismatch)
		var e *errs.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, 1, e.Input)
	})
	t.Run("commitment opening", func(t *testing.T) {
		fx := newFixture(t, []uint64{100, 200}, 4)
		fx.skeleton.Inputs[1].Amount++
		fx.skeleton.Outputs[0].Amount++
		_, err := fx.skeleton.Decode()
		require.ErrorIs(t, err, errs.BalanceMismatch)
		var e *errs.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, 1, e.Input)
	})
	t.Run("point", func(t *testing.T) {
		fx := newFixture(t, []uint64{100}, 4)
		fx.skeleton.Inputs[0].Ring[1].Key = offCurve(t)
		_, err := fx.skeleton.Decode()
		require.ErrorIs(t, err, errs.InvalidEncoding)
	})
	t.Run("scalar", func(t *testing.T) {
		fx := newFixture(t, []uint64{100}, 4)
		for i := range fx.skeleton.Outputs[0].Mask {
			fx.skeleton.Outputs[0].Mask[i] = 0xff
		}
		_, err := fx.skeleton.Decode()
		require.ErrorIs(t, err, errs.InvalidEncoding)
	})
	t.Run("ring order", func(t *testing.T) {
		fx := newFixture(t, []uint64{100}, 4)
		fx.skeleton.Inputs[0].Ring[2].GlobalIndex = fx.skeleton.Inputs[0].Ring[1].GlobalIndex
		_, err := fx.skeleton.Decode()
		require.ErrorIs(t, err, errs.ProtocolViolation)
	})
	t.Run("empty", func(t *testing.T) {
		_, err := (&Skeleton{}).Decode()
		require.ErrorIs(t, err, errs.ProtocolViolation)
	})
}

func TestPseudoOutMasksBalance(t *testing.T) {
	fx := newFixture(t, []uint64{10, 20, 30, 40}, 2)
	plan, err := fx.skeleton.Decode()
	require.NoError(t, err)
	assert.NotEmpty(t, plan.ID)

	masks, err := plan.PseudoOutMasks(rand.Reader)
	require.NoError(t, err)
	pseudo := make([]*edwards25519.Point, len(masks))
	for i, m := range masks {
		pseudo[i] = Commit(m, plan.Inputs[i].Amount)
	}
	require.NoError(t, CheckBalance(pseudo, plan.OutputCommitments(), plan.Fee))
	require.ErrorIs(t, CheckBalance(pseudo, plan.OutputCommitments(), plan.Fee+1), errs.BalanceMismatch)
}

func TestEncoding(t *testing.T) {
	assert.Equal(t, []uint64{5, 3, 12}, relativeOffsets([]uint64{5, 8, 20}))

	// Commit(0, 1) is H.
	assert.Equal(t, 1, Commit(edwards25519.NewScalar(), 1).Equal(ed25519.H.Inner()))

	_, _, err := ParsePrefix([]byte{0x02, 0x00, 0x01, 0x07})
	require.ErrorIs(t, err, errs.InvalidEncoding)

	_, _, err = ParsePrefix([]byte{0x80})
	require.ErrorIs(t, err, errs.InvalidEncoding)
}
