// Package monero models the transactions the signing engine completes.
//
// A [Skeleton] arrives from the chain RPC collaborator with ring
// selections, output openings and the fee. [Skeleton.Decode] validates it
// into a [Plan]. Once key images and pseudo-outputs are known the plan
// becomes a [Transaction], whose [Transaction.SigningHash] is the message
// every input's CLSAG signs. [Transaction.Complete] verifies every
// signature and the commitment balance and serializes the blob:
//
//	prefix (v2, txin_to_key, txout_to_tagged_key, extra)
//	rct base (type 6, fee, encrypted amounts, output commitments)
//	prunable (range proof, CLSAGs, pseudo-outputs)
//
// Integers are LEB128 varints.
package monero
