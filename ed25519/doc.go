// Package ed25519 implements the [group.Group] interfaces over the
// edwards25519 curve used by Monero.
//
// Arithmetic is delegated to filippo.io/edwards25519. On top of the plain
// group, the package provides the Monero specific hashes:
//
//   - [HashToScalar] (Hs): Keccak-256 reduced modulo l
//   - [HashToPoint] (Hp): Monero's hash_to_ec, a Keccak-256 digest mapped
//     onto the curve and multiplied by the cofactor
//   - [H]: the Pedersen commitment generator used for amounts
//
// # Encoding
//
// Scalars are 32 bytes little-endian and must be canonical (below l).
// Points use the standard 32-byte compressed form. Decoding failures are
// reported as errs.InvalidEncoding and never panic.
//
// # Subgroup checks
//
// Decoded points may carry a small-order component. Code that accepts
// key images or ring members from the network should check them with
// [TorsionFree].
package ed25519
