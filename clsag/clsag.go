package clsag

import (
	"fmt"
	"io"

	"filippo.io/edwards25519"

	"github.com/f3rmion/xmrsig/ed25519"
	"github.com/f3rmion/xmrsig/errs"
)

// Domain tags, each zero-padded to 32 bytes before hashing.
const (
	tagAgg0  = "CLSAG_agg_0"
	tagAgg1  = "CLSAG_agg_1"
	tagRound = "CLSAG_round"
)

// Ring is the member set of one input: one-time keys and their amount
// commitments, in chain order.
type Ring struct {
	Keys        []*edwards25519.Point
	Commitments []*edwards25519.Point
}

// Len returns the ring size.
func (r Ring) Len() int { return len(r.Keys) }

// Validate checks the ring is non-empty and well formed.
func (r Ring) Validate() error {
	const op = "clsag.ring"
	if len(r.Keys) == 0 {
		return errs.New(errs.ProtocolViolation, op, "empty ring")
	}
	if len(r.Keys) != len(r.Commitments) {
		return errs.New(errs.ProtocolViolation, op, "%d keys, %d commitments", len(r.Keys), len(r.Commitments))
	}
	for i := range r.Keys {
		if r.Keys[i] == nil || r.Commitments[i] == nil {
			return errs.New(errs.InvalidEncoding, op, "ring member %d missing", i)
		}
	}
	return nil
}

// Signature is a CLSAG as serialized on chain. D holds D/8.
type Signature struct {
	S  []*edwards25519.Scalar
	C1 *edwards25519.Scalar
	D  *edwards25519.Point
}

var (
	eight    = scalarFromUint64(8)
	invEight = edwards25519.NewScalar().Invert(eight)
)

// KeyImage returns x*Hp(P).
func KeyImage(x *edwards25519.Scalar, P *edwards25519.Point) *edwards25519.Point {
	return new(edwards25519.Point).ScalarMult(x, hashToPoint(P))
}

// params holds the values shared by signing and verification of one ring.
type params struct {
	ring      Ring
	hp        []*edwards25519.Point // Hp(P_i)
	adjusted  []*edwards25519.Point // C_i - pseudoOut
	image     *edwards25519.Point
	d         *edwards25519.Point // full D, not divided by 8
	muP, muC  *edwards25519.Scalar
	roundBase []byte
}

func newParams(msg []byte, ring Ring, image, d, pseudoOut *edwards25519.Point) *params {
	n := ring.Len()
	p := &params{
		ring:     ring,
		hp:       make([]*edwards25519.Point, n),
		adjusted: make([]*edwards25519.Point, n),
		image:    image,
		d:        d,
	}
	var members []byte
	for _, k := range ring.Keys {
		members = append(members, k.Bytes()...)
	}
	for _, c := range ring.Commitments {
		members = append(members, c.Bytes()...)
	}
	for i := range n {
		p.hp[i] = hashToPoint(ring.Keys[i])
		p.adjusted[i] = new(edwards25519.Point).Subtract(ring.Commitments[i], pseudoOut)
	}

	dOver8 := new(edwards25519.Point).ScalarMult(invEight, d)
	agg := append(append([]byte{}, members...), image.Bytes()...)
	agg = append(agg, dOver8.Bytes()...)
	agg = append(agg, pseudoOut.Bytes()...)
	p.muP = hs(padTag(tagAgg0), agg)
	p.muC = hs(padTag(tagAgg1), agg)

	p.roundBase = append(padTag(tagRound), members...)
	p.roundBase = append(p.roundBase, pseudoOut.Bytes()...)
	p.roundBase = append(p.roundBase, msg...)
	return p
}

func (p *params) challenge(L, R *edwards25519.Point) *edwards25519.Scalar {
	return hs(p.roundBase, L.Bytes(), R.Bytes())
}

// step computes the challenge following member i given the challenge c
// entering it and its response s.
func (p *params) step(i int, c, s *edwards25519.Scalar) *edwards25519.Scalar {
	cP := edwards25519.NewScalar().Multiply(p.muP, c)
	cC := edwards25519.NewScalar().Multiply(p.muC, c)
	L := new(edwards25519.Point).VarTimeMultiScalarMult(
		[]*edwards25519.Scalar{s, cP, cC},
		[]*edwards25519.Point{edwards25519.NewGeneratorPoint(), p.ring.Keys[i], p.adjusted[i]})
	R := new(edwards25519.Point).VarTimeMultiScalarMult(
		[]*edwards25519.Scalar{s, cP, cC},
		[]*edwards25519.Point{p.hp[i], p.image, p.d})
	return p.challenge(L, R)
}

// loop starts the ring at the real index l with nonce commitments aG, aH
// and walks the decoys using s. It returns the challenge at l and c1.
func (p *params) loop(l int, s []*edwards25519.Scalar, aG, aH *edwards25519.Point) (cl, c1 *edwards25519.Scalar) {
	n := p.ring.Len()
	c := p.challenge(aG, aH)
	i := (l + 1) % n
	if i == 0 {
		c1 = c
	}
	for i != l {
		c = p.step(i, c, s[i])
		i = (i + 1) % n
		if i == 0 {
			c1 = c
		}
	}
	return c, c1
}

// Sign produces a CLSAG over msg with the secret key x of ring member l
// and the commitment mask difference z, where C_l - pseudoOut = z*G.
func Sign(rng io.Reader, msg []byte, ring Ring, pseudoOut *edwards25519.Point, l int, x, z *edwards25519.Scalar) (*Signature, *edwards25519.Point, error) {
	const op = "clsag.sign"
	if err := ring.Validate(); err != nil {
		return nil, nil, err
	}
	if l < 0 || l >= ring.Len() {
		return nil, nil, errs.New(errs.ProtocolViolation, op, "real index %d outside ring of %d", l, ring.Len())
	}
	if new(edwards25519.Point).ScalarBaseMult(x).Equal(ring.Keys[l]) != 1 {
		return nil, nil, errs.New(errs.ProtocolViolation, op, "secret does not match ring member %d", l)
	}

	image := KeyImage(x, ring.Keys[l])
	hpl := hashToPoint(ring.Keys[l])
	d := new(edwards25519.Point).ScalarMult(z, hpl)
	p := newParams(msg, ring, image, d, pseudoOut)

	a, err := randomScalar(rng)
	if err != nil {
		return nil, nil, err
	}
	s, err := decoyResponses(rng, ring.Len(), l)
	if err != nil {
		return nil, nil, err
	}
	aG := new(edwards25519.Point).ScalarBaseMult(a)
	aH := new(edwards25519.Point).ScalarMult(a, hpl)
	cl, c1 := p.loop(l, s, aG, aH)

	// s_l = a - c*(mu_P*x + mu_C*z)
	k := edwards25519.NewScalar().Multiply(p.muP, x)
	k.MultiplyAdd(p.muC, z, k)
	s[l] = edwards25519.NewScalar().Subtract(a, edwards25519.NewScalar().Multiply(cl, k))

	return &Signature{S: s, C1: c1, D: new(edwards25519.Point).ScalarMult(invEight, d)}, image, nil
}

// Verify checks sig over msg for ring, key image and pseudo-output
// commitment. Any failure is errs.ChallengeMismatch.
func Verify(sig *Signature, msg []byte, ring Ring, image, pseudoOut *edwards25519.Point) error {
	const op = "clsag.verify"
	if err := ring.Validate(); err != nil {
		return err
	}
	if sig == nil || sig.C1 == nil || sig.D == nil || len(sig.S) != ring.Len() {
		return errs.New(errs.ChallengeMismatch, op, "malformed signature").WithCheck("shape")
	}
	for i, s := range sig.S {
		if s == nil {
			return errs.New(errs.ChallengeMismatch, op, "missing response %d", i).WithCheck("shape")
		}
	}
	if image == nil || image.Equal(edwards25519.NewIdentityPoint()) == 1 || !ed25519.TorsionFree(ed25519.WrapPoint(image)) {
		return errs.New(errs.ChallengeMismatch, op, "key image outside prime subgroup").WithCheck("key-image")
	}

	d := new(edwards25519.Point).MultByCofactor(sig.D)
	p := newParams(msg, ring, image, d, pseudoOut)
	c := sig.C1
	for i := range ring.Len() {
		c = p.step(i, c, sig.S[i])
	}
	if c.Equal(sig.C1) != 1 {
		return errs.New(errs.ChallengeMismatch, op, "ring does not close").WithCheck("clsag")
	}
	return nil
}

func decoyResponses(rng io.Reader, n, l int) ([]*edwards25519.Scalar, error) {
	s := make([]*edwards25519.Scalar, n)
	for i := range s {
		if i == l {
			continue
		}
		v, err := randomScalar(rng)
		if err != nil {
			return nil, err
		}
		s[i] = v
	}
	return s, nil
}

func hashToPoint(P *edwards25519.Point) *edwards25519.Point {
	return ed25519.HashToPoint(P.Bytes()).Inner()
}

func hs(data ...[]byte) *edwards25519.Scalar {
	return ed25519.HashToScalar(data...).Inner()
}

func padTag(tag string) []byte {
	out := make([]byte, 32)
	copy(out, tag)
	return out
}

func randomScalar(rng io.Reader) (*edwards25519.Scalar, error) {
	var wide [64]byte
	if _, err := io.ReadFull(rng, wide[:]); err != nil {
		return nil, fmt.Errorf("clsag: reading randomness: %w", err)
	}
	return edwards25519.NewScalar().SetUniformBytes(wide[:])
}

func scalarFromUint64(v uint64) *edwards25519.Scalar {
	return ed25519.ScalarFromUint64(v).Inner()
}
