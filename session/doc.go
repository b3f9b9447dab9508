// Package session runs two-round threshold signing for any algorithm that
// fits the share formula z_i = d_i + rho_i*e_i + lambda_i*x_i*k.
//
// The coordinator side is a [Session], parameterized by the signature type
// its [Algorithm] produces. Each participant runs a [Signer] holding its
// key share. A session proceeds as follows:
//
//	s, err := session.New(f, "tx/0/1", &share.Public, signers, msg, alg)
//	if err != nil {
//		return err
//	}
//	sig, err := s.Run(ctx, conn, task, timeout)
//
// Round 1 collects a nonce commitment (plus algorithm addendum) from every
// signer. Every party then derives the same [View]: binding factors over
// the message, algorithm context, subset and all commitments, and the
// group commitment R. Round 2 collects the partial signatures, which the
// algorithm sums into its final form and verifies.
//
// # Nonce safety
//
// A Signer commits at most once per session ID, until [Signer.Prune]
// forgets the ID, and signs at most once per commitment. Nonces are drawn from a stream seeded by the session ID,
// fresh entropy and the secret share, and are erased after use. A sign
// request whose subset or own commitment differs from what was committed
// is refused.
//
// # Algorithms
//
// [Schnorr] produces plain FROST signatures. The clsag package plugs in
// the Monero ring signature with k = -c*mu_P.
package session
