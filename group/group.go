package group

import (
	"io"
)

// Scalar represents an element of the scalar field associated with a
// cryptographic group. Scalars are integers modulo the group order and
// are used as exponents in scalar multiplication.
//
// All arithmetic methods use a mutable receiver pattern: they modify
// the receiver, store the result in it, and return it.
//
// Implementations must ensure all operations produce results in the
// valid range [0, order).
type Scalar interface {
	// Add sets the receiver to a+b and returns it.
	Add(a, b Scalar) Scalar
	// Sub sets the receiver to a-b and returns it.
	Sub(a, b Scalar) Scalar
	// Mul sets the receiver to a*b and returns it.
	Mul(a, b Scalar) Scalar
	// Negate sets the receiver to -a and returns it.
	Negate(a Scalar) Scalar
	// Invert sets the receiver to a^{-1} and returns it.
	// Returns an error if a is zero.
	Invert(a Scalar) (Scalar, error)
	// Set sets the receiver to a and returns it.
	Set(a Scalar) Scalar
	// SetUint64 sets the receiver to v and returns it.
	SetUint64(v uint64) Scalar
	// Bytes returns the canonical byte representation of the scalar.
	Bytes() []byte
	// SetBytes sets the receiver from its canonical encoding and returns it.
	// Non-canonical or wrongly sized input fails with errs.InvalidEncoding
	// and leaves the receiver unchanged.
	SetBytes(data []byte) (Scalar, error)
	// Equal reports whether the receiver equals b.
	Equal(b Scalar) bool
	// IsZero reports whether the receiver is zero.
	IsZero() bool
}

// Point represents an element of a cryptographic group, typically a point
// on an elliptic curve.
//
// Like [Scalar], all arithmetic methods use a mutable receiver pattern.
type Point interface {
	// Add sets the receiver to a+b and returns it.
	Add(a, b Point) Point
	// Sub sets the receiver to a-b and returns it.
	Sub(a, b Point) Point
	// Negate sets the receiver to -a and returns it.
	Negate(a Point) Point
	// ScalarMult sets the receiver to s*p and returns it.
	ScalarMult(s Scalar, p Point) Point
	// Set sets the receiver to a and returns it.
	Set(a Point) Point
	// Bytes returns the canonical compressed encoding of the point.
	Bytes() []byte
	// SetBytes sets the receiver from a compressed encoding and returns it.
	// Points off the curve fail with errs.InvalidEncoding.
	SetBytes(data []byte) (Point, error)
	// Equal reports whether the receiver equals b.
	Equal(b Point) bool
	// IsIdentity reports whether the receiver is the identity element.
	IsIdentity() bool
	// TorsionFree reports whether the receiver lies in the prime-order
	// subgroup. SetBytes accepts points with a small-order component, so
	// protocol inputs that must be in the subgroup are checked with this.
	TorsionFree() bool
}

// Group is the capability set the threshold layers are written against:
// scalar arithmetic, point arithmetic and hashing into the scalar field.
//
// A Group implementation encapsulates all curve-specific details, allowing
// the DKG and signing layers to be generic over different elliptic curves.
//
//	g := ed25519.New() // or &bjj.BJJ{}
//	scalar, _ := g.RandomScalar(rng)
//	point := g.NewPoint().ScalarMult(scalar, g.Generator())
type Group interface {
	// Name identifies the group in transcripts and serialized key shares.
	Name() string
	// NewScalar returns a new zero scalar.
	NewScalar() Scalar
	// NewPoint returns a new identity point.
	NewPoint() Point
	// Generator returns the group's base point.
	Generator() Point
	// RandomScalar returns a uniformly random scalar read from r.
	RandomScalar(r io.Reader) (Scalar, error)
	// HashToScalar hashes the concatenated input to a scalar.
	HashToScalar(data ...[]byte) (Scalar, error)
	// ScalarFromWide reduces a 64-byte uniform string into a scalar.
	ScalarFromWide(wide []byte) (Scalar, error)
	// ScalarLen and PointLen give the encoded sizes in bytes.
	ScalarLen() int
	PointLen() int
	// Order returns the group order as a big-endian byte slice.
	Order() []byte
}

// BaseMult returns s*G for the group's generator G.
func BaseMult(g Group, s Scalar) Point {
	return g.NewPoint().ScalarMult(s, g.Generator())
}
