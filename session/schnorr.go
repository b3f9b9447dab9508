package session

import (
	"io"

	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/frost"
	"github.com/f3rmion/xmrsig/group"
	"github.com/f3rmion/xmrsig/party"
)

// SchnorrTask is the commit request task for a plain Schnorr session.
type SchnorrTask struct{}

// Schnorr is the plain FROST Schnorr algorithm: R + c*Y with
// c = H2(R, Y, m) and k = c. It carries no addenda.
type Schnorr struct {
	frost    *frost.FROST
	groupKey group.Point
}

// NewSchnorr returns a Schnorr instance for groupKey. Create one per session.
func NewSchnorr(f *frost.FROST, groupKey group.Point) *Schnorr {
	return &Schnorr{frost: f, groupKey: groupKey}
}

// SchnorrFactory builds a Schnorr protocol from the signer's key share.
func SchnorrFactory(f *frost.FROST) Factory {
	return func(share *frost.KeyShare, _ *CommitRequest) (Protocol, error) {
		return NewSchnorr(f, share.GroupKey), nil
	}
}

// Context tags Schnorr sessions apart from other protocols.
func (s *Schnorr) Context() []byte { return []byte("schnorr") }

// Preprocess returns no addendum; plain Schnorr needs none.
func (s *Schnorr) Preprocess(io.Reader, *frost.KeyShare, *frost.SigningNonce) ([]byte, error) {
	return nil, nil
}

// ProcessAddendum rejects any non-empty addendum from id.
func (s *Schnorr) ProcessAddendum(id party.ID, _ *frost.SigningCommitment, addendum []byte) error {
	if len(addendum) != 0 {
		return errs.New(errs.ProtocolViolation, "schnorr.addendum", "unexpected addendum").WithParticipants(id)
	}
	return nil
}

// Challenge is the FROST challenge over the view's R, the group key and
// the message.
func (s *Schnorr) Challenge(view *View) (group.Scalar, error) {
	return s.frost.Challenge(view.R, s.groupKey, view.Message), nil
}

// Finalize assembles (R, z) and verifies it against the group key.
func (s *Schnorr) Finalize(view *View, z group.Scalar) (*frost.Signature, error) {
	sig := &frost.Signature{R: view.R, Z: z}
	if !s.frost.Verify(view.Message, sig, s.groupKey) {
		return nil, errs.New(errs.ChallengeMismatch, "schnorr.finalize", "aggregate signature does not verify").WithCheck("schnorr")
	}
	return sig, nil
}
