// Package orchestrator signs Monero transactions with threshold groups.
//
// [Orchestrator.Sign] takes a transaction skeleton whose inputs are owned by
// registered groups and drives, per input:
//
//  1. a key image round: t holders return partial key images with DLEq
//     proofs, which are checked and interpolated;
//  2. a CLSAG session over the transaction's signing hash.
//
// Inputs run concurrently. When a round times out the silent participants
// are excluded and the input is retried with a new subset under a new
// session ID, so a nonce is never reused. Any other failure aborts the
// whole transaction. The assembled transaction is verified again before it
// is returned.
//
// Participants are reached through a [transport.Conn]; the orchestrator
// demultiplexes by session so concurrent inputs never see each other's
// traffic.
package orchestrator
