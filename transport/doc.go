// Package transport carries protocol messages between participants.
//
// Every message is tagged with a session identifier and a [Round]. Rounds
// are strict barriers: a protocol step calls [Collect] to block until every
// expected participant has contributed or the round deadline passes.
// Messages from an earlier, aborted attempt carry a different session
// identifier and are discarded instead of being mixed into the new attempt.
//
// # Components
//
//   - [Conn]: the network as seen by one participant
//   - [Hub] and [Endpoint]: an in-memory network with fault injection filters
//   - [Router]: per-session demultiplexing of one Conn for concurrent sessions
//
// Transport security (authentication, confidentiality of the link) is the
// responsibility of the Conn implementation; DKG shares are additionally
// encrypted end to end by the dkg package.
package transport
