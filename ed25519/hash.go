package ed25519

import (
	"encoding/hex"

	"filippo.io/edwards25519"
	"filippo.io/edwards25519/field"
	"golang.org/x/crypto/sha3"
)

// Keccak256 is Monero's cn_fast_hash over the concatenated input.
func Keccak256(data ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// HashToScalar is Hs: Keccak-256 reduced mod l (sc_reduce32).
func HashToScalar(data ...[]byte) *Scalar {
	digest := Keccak256(data...)
	var wide [64]byte
	copy(wide[:], digest[:])
	s := NewScalar()
	// A 64-byte buffer is always accepted.
	_, _ = s.inner.SetUniformBytes(wide[:])
	return s
}

// HashToPoint is Hp, Monero's hash_to_ec: Keccak-256 of data mapped onto
// the curve with ge_fromfe_frombytes_vartime and multiplied by the cofactor.
func HashToPoint(data []byte) *Point {
	digest := Keccak256(data)
	p := fromFieldBytes(digest[:])
	p.MultByCofactor(p)
	return &Point{inner: *p}
}

// HashPointToPoint is Hp applied to the encoding of p.
func HashPointToPoint(p *Point) *Point {
	return HashToPoint(p.Bytes())
}

// H is Monero's Pedersen commitment generator, the second base point.
var H = mustDecodePoint("8b655970153799af2aeadc9ff1add0ea6c7251d54154cfa92c173a0dd39c1f94")

// Field constants used by the hash-to-curve map.
var (
	feOne    = new(field.Element).One()
	feZero   = new(field.Element).Zero()
	feA      = new(field.Element).Mult32(feOne, 486662)
	feMA     = new(field.Element).Negate(feA)
	feMA2    = new(field.Element).Negate(new(field.Element).Square(feA))
	feSqrtM1 = mustSqrt(new(field.Element).Negate(feOne))

	// A(A+2), and the four square roots Monero precomputes from it.
	feAA2  = new(field.Element).Multiply(feA, new(field.Element).Add(feA, new(field.Element).Mult32(feOne, 2)))
	feFFB1 = mustSqrt(new(field.Element).Negate(new(field.Element).Add(feAA2, feAA2)))
	feFFB2 = mustSqrt(new(field.Element).Add(feAA2, feAA2))
	feFFB3 = mustSqrt(new(field.Element).Negate(new(field.Element).Multiply(feSqrtM1, feAA2)))
	feFFB4 = mustSqrt(new(field.Element).Multiply(feSqrtM1, feAA2))
)

// fromFieldBytes implements ge_fromfe_frombytes_vartime. The input is read
// as a field element with the top bit ignored; non-canonical values are
// accepted and reduced.
func fromFieldBytes(b []byte) *edwards25519.Point {
	u, _ := new(field.Element).SetBytes(b)

	v := new(field.Element).Square(u)
	v.Add(v, v) // 2u^2
	w := new(field.Element).Add(v, feOne)
	x := new(field.Element).Square(w)
	y := new(field.Element).Multiply(feMA2, v)
	x.Add(x, y) // w^2 - 2A^2u^2

	rX := divPowM1(w, x)
	y.Square(rX)
	x.Multiply(y, x)

	z := new(field.Element).Set(feMA)
	sign := 0
	y.Subtract(w, x)
	switch {
	case y.Equal(feZero) == 1:
		rX.Multiply(rX, feFFB2)
		rX.Multiply(rX, u)
		z.Multiply(z, v)
	case y.Add(w, x).Equal(feZero) == 1:
		rX.Multiply(rX, feFFB1)
		rX.Multiply(rX, u)
		z.Multiply(z, v)
	default:
		x.Multiply(x, feSqrtM1)
		if y.Subtract(w, x).Equal(feZero) == 1 {
			rX.Multiply(rX, feFFB4)
		} else {
			rX.Multiply(rX, feFFB3)
		}
		sign = 1
	}

	if rX.IsNegative() != sign {
		rX.Negate(rX)
	}
	rZ := new(field.Element).Add(z, w)
	rY := new(field.Element).Subtract(z, w)
	rX.Multiply(rX, rZ)

	// Projective (X:Y:Z) to compressed affine.
	zInv := new(field.Element).Invert(rZ)
	ax := new(field.Element).Multiply(rX, zInv)
	ay := new(field.Element).Multiply(rY, zInv)
	enc := ay.Bytes()
	enc[31] |= byte(ax.IsNegative() << 7)
	p, err := new(edwards25519.Point).SetBytes(enc)
	if err != nil {
		// The map always lands on the curve.
		panic("ed25519: hash_to_ec produced an invalid point: " + err.Error())
	}
	return p
}

// divPowM1 returns (u/v)^((p+3)/8) computed as u*v^3*(u*v^7)^((p-5)/8).
func divPowM1(u, v *field.Element) *field.Element {
	v3 := new(field.Element).Square(v)
	v3.Multiply(v3, v)
	uv7 := new(field.Element).Square(v3)
	uv7.Multiply(uv7, v)
	uv7.Multiply(uv7, u)
	r := new(field.Element).Pow22523(uv7)
	r.Multiply(r, v3)
	r.Multiply(r, u)
	return r
}

func mustSqrt(a *field.Element) *field.Element {
	r, wasSquare := new(field.Element).SqrtRatio(a, feOne)
	if wasSquare != 1 {
		panic("ed25519: constant is not a square")
	}
	return r
}

func mustDecodePoint(s string) *Point {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	p, err := DecodePoint(b)
	if err != nil {
		panic(err)
	}
	return p
}
