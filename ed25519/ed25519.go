package ed25519

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io"

	"filippo.io/edwards25519"

	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/group"
)

const (
	// ScalarSize is the length of a canonical scalar encoding.
	ScalarSize = 32
	// PointSize is the length of a compressed point encoding.
	PointSize = 32
)

// order is l = 2^252 + 27742317777372353535851937790883648493, big-endian.
var order, _ = hex.DecodeString("1000000000000000000000000000000014def9dea2f79cd65812631a5cf5d3ed")

// Scalar is an element of the ed25519 scalar field. It implements
// [group.Scalar] around edwards25519.Scalar.
type Scalar struct {
	inner edwards25519.Scalar
}

// NewScalar returns a zero scalar.
func NewScalar() *Scalar {
	return &Scalar{}
}

// ScalarFromUint64 returns v as a scalar.
func ScalarFromUint64(v uint64) *Scalar {
	s := NewScalar()
	s.SetUint64(v)
	return s
}

// WrapScalar wraps an edwards25519 scalar.
func WrapScalar(v *edwards25519.Scalar) *Scalar {
	s := NewScalar()
	s.inner.Set(v)
	return s
}

// Inner exposes the wrapped edwards25519 scalar for Monero specific code.
func (s *Scalar) Inner() *edwards25519.Scalar {
	return &s.inner
}

// Add sets s to a + b and returns s.
func (s *Scalar) Add(a, b group.Scalar) group.Scalar {
	s.inner.Add(&a.(*Scalar).inner, &b.(*Scalar).inner)
	return s
}

// Sub sets s to a - b and returns s.
func (s *Scalar) Sub(a, b group.Scalar) group.Scalar {
	s.inner.Subtract(&a.(*Scalar).inner, &b.(*Scalar).inner)
	return s
}

// Mul sets s to a * b and returns s.
func (s *Scalar) Mul(a, b group.Scalar) group.Scalar {
	s.inner.Multiply(&a.(*Scalar).inner, &b.(*Scalar).inner)
	return s
}

// Negate sets s to -a and returns s.
func (s *Scalar) Negate(a group.Scalar) group.Scalar {
	s.inner.Negate(&a.(*Scalar).inner)
	return s
}

// Invert sets s to a^(-1) and returns s.
func (s *Scalar) Invert(a group.Scalar) (group.Scalar, error) {
	aScalar := a.(*Scalar)
	if aScalar.IsZero() {
		return nil, errors.New("cannot invert zero scalar")
	}
	s.inner.Invert(&aScalar.inner)
	return s, nil
}

// Set copies a into s and returns s.
func (s *Scalar) Set(a group.Scalar) group.Scalar {
	s.inner.Set(&a.(*Scalar).inner)
	return s
}

// SetUint64 sets s to v and returns s.
func (s *Scalar) SetUint64(v uint64) group.Scalar {
	var buf [ScalarSize]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	// Any 64-bit value is below l, so this cannot fail.
	_, _ = s.inner.SetCanonicalBytes(buf[:])
	return s
}

// Bytes returns the 32-byte little-endian encoding.
func (s *Scalar) Bytes() []byte {
	return s.inner.Bytes()
}

// SetBytes decodes a canonical 32-byte little-endian scalar.
func (s *Scalar) SetBytes(data []byte) (group.Scalar, error) {
	if _, err := s.inner.SetCanonicalBytes(data); err != nil {
		return nil, errs.Wrap(errs.InvalidEncoding, "ed25519.scalar", err)
	}
	return s, nil
}

// Equal reports whether s and b are the same scalar.
func (s *Scalar) Equal(b group.Scalar) bool {
	return s.inner.Equal(&b.(*Scalar).inner) == 1
}

// IsZero reports whether s is zero.
func (s *Scalar) IsZero() bool {
	return s.inner.Equal(edwards25519.NewScalar()) == 1
}

// Point is a point on the ed25519 curve. It implements [group.Point].
//
// The zero value is not a valid point; use [NewIdentity] or Curve.NewPoint.
type Point struct {
	inner edwards25519.Point
}

// NewIdentity returns the identity point.
func NewIdentity() *Point {
	p := &Point{}
	p.inner.Set(edwards25519.NewIdentityPoint())
	return p
}

// WrapPoint wraps an edwards25519 point.
func WrapPoint(q *edwards25519.Point) *Point {
	p := &Point{}
	p.inner.Set(q)
	return p
}

// Inner exposes the wrapped edwards25519 point for Monero specific code.
func (p *Point) Inner() *edwards25519.Point {
	return &p.inner
}

// Add sets p to a + b and returns p.
func (p *Point) Add(a, b group.Point) group.Point {
	p.inner.Add(&a.(*Point).inner, &b.(*Point).inner)
	return p
}

// Sub sets p to a - b and returns p.
func (p *Point) Sub(a, b group.Point) group.Point {
	p.inner.Subtract(&a.(*Point).inner, &b.(*Point).inner)
	return p
}

// Negate sets p to -a and returns p.
func (p *Point) Negate(a group.Point) group.Point {
	p.inner.Negate(&a.(*Point).inner)
	return p
}

// ScalarMult sets p to s * q and returns p.
func (p *Point) ScalarMult(s group.Scalar, q group.Point) group.Point {
	p.inner.ScalarMult(&s.(*Scalar).inner, &q.(*Point).inner)
	return p
}

// Set copies a into p and returns p.
func (p *Point) Set(a group.Point) group.Point {
	p.inner.Set(&a.(*Point).inner)
	return p
}

// Bytes returns the 32-byte compressed encoding.
func (p *Point) Bytes() []byte {
	return p.inner.Bytes()
}

// SetBytes decodes a compressed point.
func (p *Point) SetBytes(data []byte) (group.Point, error) {
	if _, err := p.inner.SetBytes(data); err != nil {
		return nil, errs.Wrap(errs.InvalidEncoding, "ed25519.point", err)
	}
	return p, nil
}

// Equal reports whether p and b are the same point.
func (p *Point) Equal(b group.Point) bool {
	return p.inner.Equal(&b.(*Point).inner) == 1
}

// IsIdentity reports whether p is the identity.
func (p *Point) IsIdentity() bool {
	return p.inner.Equal(edwards25519.NewIdentityPoint()) == 1
}

// TorsionFree implements group.Point.
func (p *Point) TorsionFree() bool {
	return TorsionFree(p)
}

// Curve implements [group.Group] for ed25519 with Monero's hashing rules.
type Curve struct{}

// New returns the ed25519 group.
func New() *Curve {
	return &Curve{}
}

// Name implements group.Group.
func (c *Curve) Name() string {
	return "ed25519-monero"
}

// NewScalar returns a zero scalar.
func (c *Curve) NewScalar() group.Scalar {
	return NewScalar()
}

// NewPoint returns the identity point.
func (c *Curve) NewPoint() group.Point {
	return NewIdentity()
}

// Generator returns the ed25519 base point G.
func (c *Curve) Generator() group.Point {
	return WrapPoint(edwards25519.NewGeneratorPoint())
}

// RandomScalar reads 64 bytes from r and reduces them mod l.
func (c *Curve) RandomScalar(r io.Reader) (group.Scalar, error) {
	var wide [64]byte
	if _, err := io.ReadFull(r, wide[:]); err != nil {
		return nil, err
	}
	return c.ScalarFromWide(wide[:])
}

// HashToScalar is Monero's Hs: Keccak-256 of the concatenated input,
// reduced mod l.
func (c *Curve) HashToScalar(data ...[]byte) (group.Scalar, error) {
	return HashToScalar(data...), nil
}

// ScalarFromWide reduces a 64-byte little-endian string mod l.
func (c *Curve) ScalarFromWide(wide []byte) (group.Scalar, error) {
	s := NewScalar()
	if _, err := s.inner.SetUniformBytes(wide); err != nil {
		return nil, errs.Wrap(errs.InvalidEncoding, "ed25519.wide", err)
	}
	return s, nil
}

// ScalarLen implements group.Group.
func (c *Curve) ScalarLen() int { return ScalarSize }

// PointLen implements group.Group.
func (c *Curve) PointLen() int { return PointSize }

// Order returns l as a big-endian byte slice.
func (c *Curve) Order() []byte {
	out := make([]byte, len(order))
	copy(out, order)
	return out
}

// DecodeScalar decodes a canonical scalar.
func DecodeScalar(data []byte) (*Scalar, error) {
	s := NewScalar()
	if _, err := s.SetBytes(data); err != nil {
		return nil, err
	}
	return s, nil
}

// DecodePoint decodes a compressed point.
func DecodePoint(data []byte) (*Point, error) {
	p := NewIdentity()
	if _, err := p.SetBytes(data); err != nil {
		return nil, err
	}
	return p, nil
}

// BaseMult returns s*G.
func BaseMult(s *Scalar) *Point {
	p := &Point{}
	p.inner.ScalarBaseMult(&s.inner)
	return p
}

// TorsionFree reports whether p lies in the prime-order subgroup.
func TorsionFree(p *Point) bool {
	// (l-1)*P + P = l*P, which is the identity only without a torsion part.
	minusOne := edwards25519.NewScalar().Negate(scalarOne())
	var q edwards25519.Point
	q.ScalarMult(minusOne, &p.inner)
	q.Add(&q, &p.inner)
	return q.Equal(edwards25519.NewIdentityPoint()) == 1
}

func scalarOne() *edwards25519.Scalar {
	var buf [ScalarSize]byte
	buf[0] = 1
	s, _ := edwards25519.NewScalar().SetCanonicalBytes(buf[:])
	return s
}
