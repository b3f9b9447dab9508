package frost

import (
	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/group"
	"github.com/f3rmion/xmrsig/party"
)

// FROST binds the threshold primitives to a group and a challenge hasher.
// It holds no per-session state and is safe for concurrent use.
type FROST struct {
	group  group.Group
	hasher Hasher
}

// Signature is a Schnorr signature.
type Signature struct {
	R group.Point
	Z group.Scalar
}

// New returns a FROST instance over g using [SHA256Hasher] for Schnorr
// challenges.
func New(g group.Group) *FROST {
	return NewWithHasher(g, &SHA256Hasher{})
}

// NewWithHasher returns a FROST instance over g with a custom Hasher.
func NewWithHasher(g group.Group, h Hasher) *FROST {
	return &FROST{group: g, hasher: h}
}

// Group returns the underlying group.
func (f *FROST) Group() group.Group {
	return f.group
}

// Hasher returns the challenge hasher.
func (f *FROST) Hasher() Hasher {
	return f.hasher
}

// ScalarFromID maps a participant ID to its polynomial evaluation point.
func (f *FROST) ScalarFromID(id party.ID) group.Scalar {
	return f.group.NewScalar().SetUint64(uint64(id))
}

func (f *FROST) evalPolynomial(coeffs []group.Scalar, x group.Scalar) group.Scalar {
	result := f.group.NewScalar().Set(coeffs[len(coeffs)-1])
	for i := len(coeffs) - 2; i >= 0; i-- {
		result = f.group.NewScalar().Mul(result, x)
		result = f.group.NewScalar().Add(result, coeffs[i])
	}
	return result
}

// EvalCommitments returns sum(C_k * id^k), the public image of the
// committed polynomial at id.
func (f *FROST) EvalCommitments(commitments []group.Point, id party.ID) group.Point {
	x := f.ScalarFromID(id)
	xPower := f.group.NewScalar().SetUint64(1)
	result := f.group.NewPoint()
	for _, c := range commitments {
		term := f.group.NewPoint().ScalarMult(xPower, c)
		result = f.group.NewPoint().Add(result, term)
		xPower = f.group.NewScalar().Mul(xPower, x)
	}
	return result
}

// Lagrange returns the coefficient of id for interpolation at zero over
// signers: prod(j / (j - id)) for j != id.
func (f *FROST) Lagrange(id party.ID, signers party.Set) (group.Scalar, error) {
	if !signers.Contains(id) {
		return nil, errs.New(errs.ProtocolViolation, "frost.lagrange", "participant %d not in %s", id, signers)
	}
	x := f.ScalarFromID(id)
	num := f.group.NewScalar().SetUint64(1)
	den := f.group.NewScalar().SetUint64(1)
	for _, j := range signers {
		if j == id {
			continue
		}
		xj := f.ScalarFromID(j)
		num = f.group.NewScalar().Mul(num, xj)
		den = f.group.NewScalar().Mul(den, f.group.NewScalar().Sub(xj, x))
	}
	denInv, err := f.group.NewScalar().Invert(den)
	if err != nil {
		return nil, err
	}
	return f.group.NewScalar().Mul(num, denInv), nil
}

// Interpolate combines per-participant points into sum(lambda_i * P_i),
// recovering the image of the shared secret at zero.
func (f *FROST) Interpolate(points map[party.ID]group.Point) (group.Point, error) {
	ids := make([]party.ID, 0, len(points))
	for id := range points {
		ids = append(ids, id)
	}
	signers, err := party.NewSet(ids...)
	if err != nil {
		return nil, errs.Wrap(errs.ProtocolViolation, "frost.interpolate", err)
	}
	result := f.group.NewPoint()
	for _, id := range signers {
		lambda, err := f.Lagrange(id, signers)
		if err != nil {
			return nil, err
		}
		result = f.group.NewPoint().Add(result, f.group.NewPoint().ScalarMult(lambda, points[id]))
	}
	return result, nil
}
