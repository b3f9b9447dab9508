// Package bjj implements [group.Group] over Baby Jubjub, the twisted
// Edwards curve a*x^2 + y^2 = 1 + d*x^2*y^2 (a = 168700, d = 168696) over
// the BN254 scalar field, using gnark-crypto's twistededwards package.
//
// Nothing Monero related runs on this curve. It is a second group for the
// curve generic layers, so frost, dkg and the generic Schnorr sessions are
// tested against something other than ed25519:
//
//	f := frost.New(&bjj.BJJ{})
//
// Scalars are 32 bytes big-endian and must be below the prime subgroup
// order. Points use gnark's compressed encoding and must lie on the curve.
package bjj
