// Package clsag implements Monero's CLSAG ring signature and its threshold
// form on top of the session package.
//
// [Sign] and [Verify] are the single key scheme with the chain's domain
// tags and hashing rules, so signatures produced here verify on chain.
//
// The threshold form keeps the nonce a and the spend key x distributed.
// Before signing, every key holder publishes a partial key image
// K_i = x_i*Hp(P) with a [DLEqProof] against its verification share, and
// [CombineKeyImages] interpolates I = offset*Hp(P) + sum(lambda_i*K_i).
// [Multisig] then runs as a session algorithm: each signer's addendum
// carries d_i*Hp(P) and e_i*Hp(P) with proofs, the ring challenge is
// derived from the group nonce, and the challenge multiplier handed to
// the session is -c*mu_P. [Multisig.Finalize] subtracts the mask and
// offset terms, verifies the whole signature and re-derives the key image
// from the signing subset.
package clsag
