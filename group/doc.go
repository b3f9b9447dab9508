// Package group holds the capability interfaces every curve implements:
// [Scalar], [Point] and [Group].
//
// Operations write their result to the receiver and return it, so values
// chain without extra allocations:
//
//	// a + b*c
//	r := g.NewScalar().Mul(b, c)
//	r.Add(a, r)
//
// SetBytes never panics. Non-canonical scalars and points that fail the
// curve's checks are rejected with errs.InvalidEncoding.
//
// The ed25519 package is the Monero curve and carries the Monero specific
// hashes. The bjj package exists so curve generic code has a second
// implementation to run against.
package group
