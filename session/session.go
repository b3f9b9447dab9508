package session

import (
	"fmt"
	"io"

	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/frost"
	"github.com/f3rmion/xmrsig/group"
	"github.com/f3rmion/xmrsig/party"
	"github.com/f3rmion/xmrsig/transcript"
)

// State is the lifecycle of a signing Session.
type State uint8

const (
	Init State = iota
	// NonceCommitted: every commitment is in and the challenge is derived.
	NonceCommitted
	// SharesCollected: every partial signature is in.
	SharesCollected
	// Aggregated: the partial signatures have been summed.
	Aggregated
	Verified
	Failed
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case NonceCommitted:
		return "nonce-committed"
	case SharesCollected:
		return "shares-collected"
	case Aggregated:
		return "aggregated"
	case Verified:
		return "verified"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Protocol is the part of a signature algorithm both signers and the
// coordinator run. A Protocol instance serves exactly one session.
type Protocol interface {
	// Context returns algorithm data bound into the binding factors, e.g.
	// the ring and key image for CLSAG. Every party must return the same
	// bytes.
	Context() []byte
	// Preprocess returns the signer's addendum to its nonce commitment.
	// It is only called on the signer side.
	Preprocess(rng io.Reader, share *frost.KeyShare, nonce *frost.SigningNonce) ([]byte, error)
	// ProcessAddendum validates and records one signer's addendum.
	ProcessAddendum(id party.ID, nonce *frost.SigningCommitment, addendum []byte) error
	// Challenge returns the challenge multiplier k used in
	// z_i = d_i + rho_i*e_i + lambda_i*x_i*k. It is called once, after
	// every addendum has been processed.
	Challenge(view *View) (group.Scalar, error)
}

// Algorithm is a Protocol the coordinator can finalize into a signature
// of type T.
type Algorithm[T any] interface {
	Protocol
	// Finalize turns the summed shares into a signature and fully verifies
	// it. A verification failure must be errs.ChallengeMismatch (or
	// errs.KeyImageMismatch), never a partially valid result.
	Finalize(view *View, z group.Scalar) (T, error)
}

// Commitment is a signer's round 1 contribution.
type Commitment struct {
	Nonce    *frost.SigningCommitment
	Addendum []byte
}

// View is the state every party derives identically once all commitments
// are known. Recomputing it from the same inputs yields the same binding
// factors and group commitment.
type View struct {
	Group       group.Group
	GroupKey    group.Point
	Signers     party.Set
	Message     []byte
	Commitments map[party.ID]*frost.SigningCommitment
	Addenda     map[party.ID][]byte
	Rho         map[party.ID]group.Scalar
	Lambda      map[party.ID]group.Scalar
	// R = sum(D_i + rho_i*E_i) over the generator.
	R group.Point

	transcript *transcript.Transcript
}

// Transcript returns a copy of the binding transcript, which has absorbed
// the message, context, subset and every commitment and addendum.
func (v *View) Transcript() *transcript.Transcript {
	return v.transcript.Clone()
}

// NewView derives the shared view. commitments must hold exactly one entry
// per signer.
func NewView(f *frost.FROST, groupKey group.Point, signers party.Set, message, context []byte, commitments map[party.ID]*Commitment) (*View, error) {
	const op = "session.view"
	if len(commitments) != len(signers) {
		return nil, errs.New(errs.ProtocolViolation, op, "%d commitments for %d signers", len(commitments), len(signers))
	}
	g := f.Group()

	t := transcript.New("xmrsig/session")
	t.Append("group", []byte(g.Name()))
	t.AppendPoints("group_key", groupKey)
	t.Append("message", message)
	t.Append("context", context)
	t.Append("signers", signers.Bytes())

	v := &View{
		Group:       g,
		GroupKey:    groupKey,
		Signers:     signers,
		Message:     message,
		Commitments: make(map[party.ID]*frost.SigningCommitment, len(signers)),
		Addenda:     make(map[party.ID][]byte, len(signers)),
		Lambda:      make(map[party.ID]group.Scalar, len(signers)),
	}
	for _, id := range signers {
		c, ok := commitments[id]
		if !ok || c == nil || c.Nonce == nil || c.Nonce.HidingPoint == nil || c.Nonce.BindingPoint == nil {
			return nil, errs.New(errs.ProtocolViolation, op, "missing commitment").WithParticipants(id)
		}
		if c.Nonce.ID != id {
			return nil, errs.New(errs.ProtocolViolation, op, "commitment labeled %d", c.Nonce.ID).WithParticipants(id)
		}
		if c.Nonce.HidingPoint.IsIdentity() || c.Nonce.BindingPoint.IsIdentity() {
			return nil, errs.New(errs.ProtocolViolation, op, "identity nonce commitment").WithParticipants(id)
		}
		t.Append("commitment", id.Bytes(), c.Nonce.HidingPoint.Bytes(), c.Nonce.BindingPoint.Bytes(), c.Addendum)
		v.Commitments[id] = c.Nonce
		v.Addenda[id] = c.Addendum

		lambda, err := f.Lagrange(id, signers)
		if err != nil {
			return nil, err
		}
		v.Lambda[id] = lambda
	}

	rho, err := f.BindingFactors(t, signers)
	if err != nil {
		return nil, err
	}
	v.Rho = rho
	v.R = f.GroupCommitment(v.Commitments, rho)
	v.transcript = t
	return v, nil
}

// CommitRequest asks a signer to commit to fresh nonces for a session.
// Task describes the algorithm instance so the signer can build its own
// Protocol; its type depends on the algorithm.
type CommitRequest struct {
	Signers party.Set
	Message []byte
	Task    any
}

// SignRequest carries the full commitment set of a session.
type SignRequest struct {
	Commitments map[party.ID]*Commitment
}

// PartialSignature is a signer's round 2 contribution.
type PartialSignature struct {
	Share *frost.SignatureShare
}
