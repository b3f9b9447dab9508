package monero

import (
	"io"

	"filippo.io/edwards25519"

	"github.com/f3rmion/xmrsig/ed25519"
	"github.com/f3rmion/xmrsig/errs"
)

// Commit returns the Pedersen commitment mask*G + amount*H.
func Commit(mask *edwards25519.Scalar, amount uint64) *edwards25519.Point {
	a := ed25519.ScalarFromUint64(amount).Inner()
	return new(edwards25519.Point).VarTimeDoubleScalarBaseMult(a, ed25519.H.Inner(), mask)
}

// FeeCommitment returns fee*H, the unblinded commitment to the fee.
func FeeCommitment(fee uint64) *edwards25519.Point {
	return new(edwards25519.Point).ScalarMult(ed25519.ScalarFromUint64(fee).Inner(), ed25519.H.Inner())
}

// PseudoOutMasks draws the pseudo-output masks for p's inputs. All but the
// last are random; the last makes the masks sum to the output masks, so
// the pseudo-outputs balance the outputs plus the fee.
func (p *Plan) PseudoOutMasks(rng io.Reader) ([]*edwards25519.Scalar, error) {
	n := len(p.Inputs)
	masks := make([]*edwards25519.Scalar, n)
	last := edwards25519.NewScalar()
	for _, o := range p.Outputs {
		last.Add(last, o.Mask)
	}
	for i := range n - 1 {
		var wide [64]byte
		if _, err := io.ReadFull(rng, wide[:]); err != nil {
			return nil, errs.Wrap(errs.ProtocolViolation, "monero.pseudo-out", err)
		}
		m, err := edwards25519.NewScalar().SetUniformBytes(wide[:])
		if err != nil {
			return nil, err
		}
		masks[i] = m
		last.Subtract(last, m)
	}
	masks[n-1] = last
	return masks, nil
}

// CheckBalance verifies sum(pseudoOuts) == sum(outputs) + fee*H.
func CheckBalance(pseudoOuts, outputs []*edwards25519.Point, fee uint64) error {
	in := edwards25519.NewIdentityPoint()
	for _, c := range pseudoOuts {
		in.Add(in, c)
	}
	out := FeeCommitment(fee)
	for _, c := range outputs {
		out.Add(out, c)
	}
	if in.Equal(out) != 1 {
		return errs.New(errs.BalanceMismatch, "monero.balance", "pseudo-outputs do not balance outputs plus fee").WithCheck("commitments")
	}
	return nil
}
