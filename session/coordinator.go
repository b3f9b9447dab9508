package session

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"

	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/frost"
	"github.com/f3rmion/xmrsig/group"
	"github.com/f3rmion/xmrsig/party"
)

// Session is the coordinator side of one signing attempt producing a T.
// Its state only moves forward:
//
//	Init -> NonceCommitted -> SharesCollected -> Aggregated -> Verified
//
// and any failure moves it to Failed, where it stays.
type Session[T any] struct {
	id      string
	frost   *frost.FROST
	pub     *frost.Public
	signers party.Set
	message []byte
	alg     Algorithm[T]
	logger  *slog.Logger

	mu     sync.Mutex
	state  State
	err    error
	view   *View
	k      group.Scalar
	shares map[party.ID]*frost.SignatureShare
	result T
}

// Option configures a Session.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New starts a session. signers must be a sorted, duplicate-free subset of
// the key holders of size at least the threshold.
func New[T any](f *frost.FROST, id string, pub *frost.Public, signers party.Set, message []byte, alg Algorithm[T], opts ...Option) (*Session[T], error) {
	const op = "session.new"
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	set, err := party.NewSet(signers...)
	if err != nil {
		return nil, errs.Wrap(errs.ProtocolViolation, op, err)
	}
	if !set.Equal(signers) {
		return nil, errs.New(errs.ProtocolViolation, op, "signer subset %s is not sorted", signers)
	}
	if len(set) < pub.Threshold {
		return nil, errs.New(errs.InsufficientParticipants, op, "%d signers, threshold %d", len(set), pub.Threshold).WithParticipants(set...)
	}
	var outsiders party.Set
	for _, id := range set {
		if _, ok := pub.VerificationShares[id]; !ok {
			outsiders = append(outsiders, id)
		}
	}
	if len(outsiders) > 0 {
		return nil, errs.New(errs.ProtocolViolation, op, "signers are not key holders").WithParticipants(outsiders...)
	}

	return &Session[T]{
		id:      id,
		frost:   f,
		pub:     pub,
		signers: set,
		message: bytes.Clone(message),
		alg:     alg,
		logger:  o.logger.With("component", "session", "session", id),
		state:   Init,
	}, nil
}

// ID returns the session ID.
func (s *Session[T]) ID() string { return s.id }

// Signers returns the signer subset.
func (s *Session[T]) Signers() party.Set { return s.signers }

// State returns the current state.
func (s *Session[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure that moved the session to Failed.
func (s *Session[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// CommitRequest returns the round 1 request for signers.
func (s *Session[T]) CommitRequest(task any) *CommitRequest {
	return &CommitRequest{Signers: s.signers, Message: s.message, Task: task}
}

// Commit records every signer's commitment, derives the binding factors
// and the challenge multiplier, and returns the round 2 request.
func (s *Session[T]) Commit(commitments map[party.ID]*Commitment) (*SignRequest, error) {
	const op = "session.commit"
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect(op, Init); err != nil {
		return nil, err
	}

	for _, id := range s.signers {
		c, ok := commitments[id]
		if !ok || c == nil || c.Nonce == nil {
			return nil, s.fail(errs.New(errs.ProtocolViolation, op, "missing commitment").WithParticipants(id))
		}
		if err := s.alg.ProcessAddendum(id, c.Nonce, c.Addendum); err != nil {
			return nil, s.fail(err)
		}
	}
	view, err := NewView(s.frost, s.pub.GroupKey, s.signers, s.message, s.alg.Context(), commitments)
	if err != nil {
		return nil, s.fail(err)
	}
	k, err := s.alg.Challenge(view)
	if err != nil {
		return nil, s.fail(err)
	}
	s.view, s.k = view, k
	s.state = NonceCommitted
	s.logger.Debug("commitments collected", "signers", s.signers)

	req := &SignRequest{Commitments: make(map[party.ID]*Commitment, len(s.signers))}
	for _, id := range s.signers {
		req.Commitments[id] = commitments[id]
	}
	return req, nil
}

// View returns the shared view once commitments are in, or nil.
func (s *Session[T]) View() *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Challenge returns the challenge multiplier once commitments are in, or nil.
func (s *Session[T]) Challenge() group.Scalar {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.k
}

// AddShares records every signer's partial signature.
func (s *Session[T]) AddShares(partials map[party.ID]*PartialSignature) error {
	const op = "session.shares"
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect(op, NonceCommitted); err != nil {
		return err
	}

	shares := make(map[party.ID]*frost.SignatureShare, len(s.signers))
	for _, id := range s.signers {
		p, ok := partials[id]
		if !ok || p == nil || p.Share == nil || p.Share.Z == nil {
			return s.fail(errs.New(errs.ProtocolViolation, op, "missing partial signature").WithParticipants(id))
		}
		if p.Share.ID != id {
			return s.fail(errs.New(errs.ProtocolViolation, op, "share labeled %d", p.Share.ID).WithParticipants(id))
		}
		shares[id] = p.Share
	}
	s.shares = shares
	s.state = SharesCollected
	return nil
}

// Aggregate sums the partial signatures and asks the algorithm to finalize
// and verify the result. When verification fails each share is checked
// individually and the offending signers are named in the error.
func (s *Session[T]) Aggregate() (T, error) {
	const op = "session.aggregate"
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	if s.state == Verified {
		return s.result, nil
	}
	if err := s.expect(op, SharesCollected); err != nil {
		return zero, err
	}

	z := s.frost.SumShares(s.shares)
	s.state = Aggregated

	result, err := s.alg.Finalize(s.view, z)
	if err != nil {
		if culprits := s.blame(); len(culprits) > 0 {
			var e *errs.Error
			if !errors.As(err, &e) {
				e = errs.Wrap(errs.ChallengeMismatch, op, err)
			}
			e.Participants = culprits
			err = e
		}
		s.logger.Warn("aggregate rejected", "err", err)
		return zero, s.fail(err)
	}
	s.result = result
	s.state = Verified
	s.logger.Debug("signature verified")
	return result, nil
}

// blame returns the signers whose share fails its individual check.
func (s *Session[T]) blame() party.Set {
	var out party.Set
	for _, id := range s.signers {
		ok := s.frost.VerifyShare(s.view.Commitments[id], s.shares[id], s.pub.VerificationShares[id],
			s.view.Rho[id], s.view.Lambda[id], s.k)
		if !ok {
			out = append(out, id)
		}
	}
	return out
}

func (s *Session[T]) expect(op string, want State) error {
	if s.state == Failed {
		return s.err
	}
	if s.state != want {
		return errs.New(errs.ProtocolViolation, op, "session is %s, want %s", s.state, want)
	}
	return nil
}

func (s *Session[T]) fail(err error) error {
	if errs.KindOf(err) == errs.Unknown {
		err = errs.Wrap(errs.ProtocolViolation, "session", err)
	}
	s.state = Failed
	s.err = err
	return err
}
