package transport

import (
	"context"
	"fmt"

	"github.com/f3rmion/xmrsig/party"
)

// Round tags a message with the protocol step it belongs to.
type Round uint8

const (
	RoundNone Round = iota
	// DKG
	RoundDKGCommit
	RoundDKGShare
	// Key image derivation
	RoundKeyImageRequest
	RoundKeyImage
	// Signing
	RoundCommitRequest
	RoundCommit
	RoundSignRequest
	RoundShare
)

var roundNames = [...]string{
	RoundNone:            "none",
	RoundDKGCommit:       "dkg-commit",
	RoundDKGShare:        "dkg-share",
	RoundKeyImageRequest: "key-image-request",
	RoundKeyImage:        "key-image",
	RoundCommitRequest:   "commit-request",
	RoundCommit:          "commit",
	RoundSignRequest:     "sign-request",
	RoundShare:           "share",
}

func (r Round) String() string {
	if int(r) < len(roundNames) {
		return roundNames[r]
	}
	return fmt.Sprintf("round(%d)", uint8(r))
}

// Message is the unit exchanged between participants. Payload holds one of
// the protocol message types of the dkg, session or clsag packages.
type Message struct {
	Session string
	Round   Round
	From    party.ID
	To      party.ID
	Payload any
}

// Conn is one participant's view of the network. Authentication of From is
// the responsibility of the implementation.
type Conn interface {
	// Self returns the local participant ID.
	Self() party.ID
	// Send delivers msg to msg.To, setting msg.From to Self.
	Send(ctx context.Context, msg Message) error
	// Incoming returns the channel of messages addressed to Self.
	Incoming() <-chan Message
}

// Broadcast sends a copy of msg to every member of to except the sender.
func Broadcast(ctx context.Context, c Conn, to party.Set, msg Message) error {
	for _, id := range to {
		if id == c.Self() {
			continue
		}
		m := msg
		m.To = id
		if err := c.Send(ctx, m); err != nil {
			return fmt.Errorf("broadcast to %d: %w", id, err)
		}
	}
	return nil
}
