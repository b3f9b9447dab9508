// Package frost implements the FROST (Flexible Round-Optimized Schnorr Threshold)
// primitives over an arbitrary elliptic curve group.
//
// The package is deliberately stateless: it provides the algebra of the
// key generation and signing rounds, while the dkg and session packages
// drive the rounds over a network and own the state machines.
//
// # Distributed Key Generation (DKG)
//
//  1. Each participant generates a random polynomial and broadcasts commitments
//     to its coefficients, with a proof of knowledge of the constant term,
//     using [Participant.Round1Broadcast]. Receivers check it with
//     [FROST.VerifyRound1].
//  2. Each participant sends private shares to all other participants using
//     [FROST.Round1PrivateSend].
//  3. Each participant verifies received shares against the broadcasted
//     commitments using [FROST.Round2ReceiveShare].
//  4. Each participant computes its [KeyShare], including the verification
//     shares of every other participant, using [FROST.Finalize].
//
// # Threshold Signing
//
// Signing is expressed through one share equation,
//
//	z_i = d_i + rho_i*e_i + lambda_i*x_i*k
//
// where k is a challenge multiplier chosen by the signature scheme built on
// top: k = c for plain Schnorr, and k = -c*mu_P for CLSAG. The pieces are:
//
//  1. [FROST.SignRound1] draws the nonce pair (d, e) and its commitment.
//  2. [FROST.BindingFactors] derives every rho_i from a transcript that
//     already binds the message, the signer subset and all commitments.
//  3. [FROST.SignRound2] computes z_i; [FROST.VerifyShare] checks it against
//     the signer's verification share.
//  4. [FROST.SumShares] adds the shares; [FROST.Verify] checks a Schnorr
//     signature.
//
// # Security Considerations
//
// Nonces generated in [FROST.SignRound1] must never be reused. Each signing
// session requires fresh nonces, and [SigningNonce.Erase] should be called
// as soon as the share has been computed.
package frost
