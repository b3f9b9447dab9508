package clsag

import (
	"io"

	"filippo.io/edwards25519"

	"github.com/f3rmion/xmrsig/ed25519"
	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/transcript"
)

// DLEqProof shows log_G1(A) = log_G2(B) without revealing the logarithm.
type DLEqProof struct {
	C *edwards25519.Scalar
	S *edwards25519.Scalar
}

const dleqProofLen = 64

// ProveDLEq proves knowledge of x with A = x*G1 and B = x*G2.
func ProveDLEq(rng io.Reader, label string, x *edwards25519.Scalar, G1, G2 *edwards25519.Point) (*DLEqProof, error) {
	r, err := randomScalar(rng)
	if err != nil {
		return nil, err
	}
	A := new(edwards25519.Point).ScalarMult(x, G1)
	B := new(edwards25519.Point).ScalarMult(x, G2)
	R1 := new(edwards25519.Point).ScalarMult(r, G1)
	R2 := new(edwards25519.Point).ScalarMult(r, G2)

	c, err := dleqChallenge(label, G1, G2, A, B, R1, R2)
	if err != nil {
		return nil, err
	}
	s := edwards25519.NewScalar().MultiplyAdd(c, x, r)
	return &DLEqProof{C: c, S: s}, nil
}

// Verify checks the proof for A = x*G1 and B = x*G2.
func (p *DLEqProof) Verify(label string, G1, G2, A, B *edwards25519.Point) bool {
	if p == nil || p.C == nil || p.S == nil {
		return false
	}
	negC := edwards25519.NewScalar().Negate(p.C)
	// R = s*G - c*A
	R1 := new(edwards25519.Point).VarTimeMultiScalarMult(
		[]*edwards25519.Scalar{p.S, negC}, []*edwards25519.Point{G1, A})
	R2 := new(edwards25519.Point).VarTimeMultiScalarMult(
		[]*edwards25519.Scalar{p.S, negC}, []*edwards25519.Point{G2, B})
	c, err := dleqChallenge(label, G1, G2, A, B, R1, R2)
	return err == nil && c.Equal(p.C) == 1
}

// Bytes returns C || S.
func (p *DLEqProof) Bytes() []byte {
	return append(p.C.Bytes(), p.S.Bytes()...)
}

// DecodeDLEqProof parses the output of Bytes.
func DecodeDLEqProof(data []byte) (*DLEqProof, error) {
	if len(data) != dleqProofLen {
		return nil, errs.New(errs.InvalidEncoding, "clsag.dleq", "proof is %d bytes", len(data))
	}
	c, err := ed25519.DecodeScalar(data[:32])
	if err != nil {
		return nil, err
	}
	s, err := ed25519.DecodeScalar(data[32:])
	if err != nil {
		return nil, err
	}
	return &DLEqProof{C: c.Inner(), S: s.Inner()}, nil
}

func dleqChallenge(label string, points ...*edwards25519.Point) (*edwards25519.Scalar, error) {
	t := transcript.New("xmrsig/dleq")
	t.Append("label", []byte(label))
	for _, p := range points {
		t.Append("point", p.Bytes())
	}
	c, err := t.ChallengeScalar(ed25519.New(), "challenge")
	if err != nil {
		return nil, err
	}
	return c.(*ed25519.Scalar).Inner(), nil
}
