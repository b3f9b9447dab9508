// Package dkg runs distributed key generation for a t-of-n group.
//
// Each participant runs its own [Coordinator]. The protocol has two
// message rounds:
//
//  1. Every participant broadcasts Feldman commitments to a random degree
//     t-1 polynomial, a proof of knowledge of its constant term and an
//     ephemeral encryption key.
//  2. Every participant sends each peer its polynomial evaluated at the
//     peer's ID, encrypted with XChaCha20-Poly1305 under a key derived from
//     the two ephemeral keys. The recipient checks the share against the
//     sender's commitments.
//
// On success every participant holds a frost.KeyShare: its secret share,
// the group key (sum of the constant term commitments) and the
// verification share of every participant.
//
// # Failures
//
// A participant whose proof, ciphertext or share fails verification is
// reported with errs.ShareVerificationFailed naming it, and the instance
// aborts without producing a key. The caller restarts with
// [Params.Without] so the culprit is absent from the resulting group.
// Missing messages produce errs.RoundTimeout. A configuration with fewer
// participants than the threshold is errs.InsufficientParticipants.
package dkg
