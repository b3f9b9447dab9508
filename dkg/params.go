package dkg

import (
	"fmt"
	"slices"

	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/frost"
	"github.com/f3rmion/xmrsig/group"
	"github.com/f3rmion/xmrsig/party"
)

// Params fixes one DKG instance. Every participant must use identical
// Threshold, Participants and Context.
type Params struct {
	Threshold    int
	Participants party.Set
	Self         party.ID
	// Context separates DKG instances. Proofs and encrypted shares are
	// bound to it.
	Context []byte
}

// Validate reports configuration errors. Fewer participants than the
// threshold is errs.InsufficientParticipants and is fatal.
func (p Params) Validate() error {
	const op = "dkg.params"
	set, err := party.NewSet(p.Participants...)
	if err != nil {
		return errs.Wrap(errs.ProtocolViolation, op, err)
	}
	if !set.Equal(p.Participants) {
		return errs.New(errs.ProtocolViolation, op, "participants must be sorted")
	}
	if p.Threshold < 1 || len(p.Participants) < p.Threshold {
		return errs.New(errs.InsufficientParticipants, op,
			"threshold %d with %d participants", p.Threshold, len(p.Participants))
	}
	if !p.Participants.Contains(p.Self) {
		return errs.New(errs.ProtocolViolation, op, "self %d not a participant", p.Self)
	}
	if len(p.Context) == 0 {
		return errs.New(errs.ProtocolViolation, op, "empty context")
	}
	return nil
}

// Without returns the parameters for a restart that excludes ids. The
// context is extended with the excluded ids so messages of the aborted
// instance can never be mistaken for the new one.
func (p Params) Without(ids ...party.ID) Params {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	ctx := slices.Clone(p.Context)
	ctx = fmt.Appendf(ctx, "/without%v", sorted)
	return Params{
		Threshold:    p.Threshold,
		Participants: p.Participants.Without(ids...),
		Self:         p.Self,
		Context:      ctx,
	}
}

// SessionID is the transport session tag of the instance.
func (p Params) SessionID() string {
	return fmt.Sprintf("dkg/%x", p.Context)
}

// State is the lifecycle of a Coordinator.
type State uint8

const (
	Idle State = iota
	RoundOneCommitted
	RoundTwoSharesExchanged
	Complete
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RoundOneCommitted:
		return "round-one-committed"
	case RoundTwoSharesExchanged:
		return "round-two-shares-exchanged"
	case Complete:
		return "complete"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Round1Message is broadcast to every participant.
type Round1Message struct {
	Commitments []group.Point
	Proof       *frost.Proof
	// EncryptionKey is the sender's ephemeral key for round 2 shares.
	EncryptionKey group.Point
}

// Round2Message carries one encrypted share, point to point.
type Round2Message struct {
	Ciphertext []byte
}
