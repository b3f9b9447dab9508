package session

import (
	"bytes"
	"crypto/rand"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/frost"
	"github.com/f3rmion/xmrsig/party"
	"github.com/f3rmion/xmrsig/transcript"
	"github.com/f3rmion/xmrsig/transport"
)

// Signer is the participant side of signing. It holds one key share and
// guarantees a nonce is committed at most once per session ID and used for
// at most one partial signature.
type Signer struct {
	frost   *frost.FROST
	share   *frost.KeyShare
	entropy io.Reader
	logger  *slog.Logger

	mu      sync.Mutex
	used    map[string]time.Time // session ID to commit time
	pending map[string]*pending
}

type pending struct {
	protocol   Protocol
	nonce      *frost.SigningNonce
	commitment *Commitment
	signers    party.Set
	message    []byte
	consumed   bool
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithEntropy sets the source mixed into every nonce seed. It defaults to
// crypto/rand.
func WithEntropy(r io.Reader) SignerOption {
	return func(s *Signer) { s.entropy = r }
}

// WithSignerLogger sets the signer logger.
func WithSignerLogger(l *slog.Logger) SignerOption {
	return func(s *Signer) { s.logger = l }
}

// NewSigner returns a Signer for share.
func NewSigner(f *frost.FROST, share *frost.KeyShare, opts ...SignerOption) *Signer {
	s := &Signer{
		frost:   f,
		share:   share,
		entropy: rand.Reader,
		logger:  slog.New(slog.DiscardHandler),
		used:    make(map[string]time.Time),
		pending: make(map[string]*pending),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "signer", "self", share.ID)
	return s
}

// ID returns the signer's participant ID.
func (s *Signer) ID() party.ID { return s.share.ID }

// Share returns the signer's key share.
func (s *Signer) Share() *frost.KeyShare { return s.share }

// nonceRNG seeds a per-session stream from the session ID, fresh entropy
// and the secret share, so a weak entropy source alone cannot repeat a
// nonce across sessions.
func (s *Signer) nonceRNG(sessionID string) (io.Reader, error) {
	seed := make([]byte, 64)
	if _, err := io.ReadFull(s.entropy, seed); err != nil {
		return nil, errs.Wrap(errs.ProtocolViolation, "session.signer", err)
	}
	t := transcript.New("xmrsig/nonce")
	t.Append("session", []byte(sessionID))
	t.Append("seed", seed)
	t.Append("secret", s.share.Secret.Bytes())
	return t.Rand("nonce"), nil
}

// Commit draws a nonce pair for sessionID and returns the commitment to
// broadcast. protocol must be a fresh instance for this session. A second
// Commit for the same session ID is refused, even after the first was
// consumed or abandoned.
func (s *Signer) Commit(sessionID string, req *CommitRequest, protocol Protocol) (*Commitment, error) {
	const op = "session.commit"
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.used[sessionID]; ok {
		return nil, errs.New(errs.ProtocolViolation, op, "session %q already committed", sessionID)
	}
	if req == nil || !req.Signers.Contains(s.share.ID) {
		return nil, errs.New(errs.ProtocolViolation, op, "signer not in subset")
	}
	if len(req.Signers) < s.share.Threshold {
		return nil, errs.New(errs.InsufficientParticipants, op, "%d signers, threshold %d", len(req.Signers), s.share.Threshold)
	}
	s.used[sessionID] = time.Now()

	rng, err := s.nonceRNG(sessionID)
	if err != nil {
		return nil, err
	}
	nonce, comm, err := s.frost.SignRound1(rng, s.share.ID)
	if err != nil {
		return nil, err
	}
	addendum, err := protocol.Preprocess(rng, s.share, nonce)
	if err != nil {
		nonce.Erase(s.frost.Group())
		return nil, err
	}

	c := &Commitment{Nonce: comm, Addendum: addendum}
	s.pending[sessionID] = &pending{
		protocol:   protocol,
		nonce:      nonce,
		commitment: c,
		signers:    append(party.Set(nil), req.Signers...),
		message:    bytes.Clone(req.Message),
	}
	s.logger.Debug("committed", "session", sessionID, "signers", req.Signers)
	return c, nil
}

// Sign produces the partial signature for sessionID. The nonce is erased
// whether or not signing succeeds, so a session can be signed at most once.
func (s *Signer) Sign(sessionID string, req *SignRequest) (*PartialSignature, error) {
	const op = "session.sign"
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[sessionID]
	if !ok {
		if _, used := s.used[sessionID]; used {
			return nil, errs.New(errs.ProtocolViolation, op, "session %q already consumed: nonce reuse prevented", sessionID)
		}
		return nil, errs.New(errs.ProtocolViolation, op, "no commitment for session %q", sessionID)
	}
	defer s.discard(sessionID, p)

	if req == nil || len(req.Commitments) != len(p.signers) {
		return nil, errs.New(errs.ProtocolViolation, op, "commitment set does not match signer subset")
	}
	for _, id := range p.signers {
		if _, ok := req.Commitments[id]; !ok {
			return nil, errs.New(errs.ProtocolViolation, op, "commitment set does not match signer subset").WithParticipants(id)
		}
	}
	own := req.Commitments[s.share.ID]
	if !sameCommitment(own, p.commitment) {
		return nil, errs.New(errs.ProtocolViolation, op, "own commitment altered")
	}

	for _, id := range p.signers {
		c := req.Commitments[id]
		if c.Nonce == nil {
			return nil, errs.New(errs.ProtocolViolation, op, "missing nonce commitment").WithParticipants(id)
		}
		if err := p.protocol.ProcessAddendum(id, c.Nonce, c.Addendum); err != nil {
			return nil, err
		}
	}
	view, err := NewView(s.frost, s.share.GroupKey, p.signers, p.message, p.protocol.Context(), req.Commitments)
	if err != nil {
		return nil, err
	}
	k, err := p.protocol.Challenge(view)
	if err != nil {
		return nil, err
	}

	share := s.frost.SignRound2(s.share, p.nonce, view.Rho[s.share.ID], view.Lambda[s.share.ID], k)
	s.logger.Debug("signed", "session", sessionID)
	return &PartialSignature{Share: share}, nil
}

// Abandon erases the nonce of an unfinished session. The session ID stays
// burned.
func (s *Signer) Abandon(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[sessionID]; ok {
		s.discard(sessionID, p)
	}
}

// Prune forgets burned session IDs committed before cutoff whose nonce is
// already gone, and reports how many it forgot. A forgotten ID could be
// committed again with a fresh nonce, so cutoff should lie well behind any
// session the coordinator may still replay.
func (s *Signer) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, at := range s.used {
		if _, live := s.pending[id]; live || !at.Before(cutoff) {
			continue
		}
		delete(s.used, id)
		n++
	}
	return n
}

// Burned reports how many session IDs the signer refuses to commit again.
func (s *Signer) Burned() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.used)
}

// Pending reports how many sessions hold a live nonce.
func (s *Signer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Signer) discard(sessionID string, p *pending) {
	if !p.consumed {
		p.nonce.Erase(s.frost.Group())
		p.consumed = true
	}
	delete(s.pending, sessionID)
}

func sameCommitment(a, b *Commitment) bool {
	if a == nil || b == nil || a.Nonce == nil || b.Nonce == nil {
		return false
	}
	if a.Nonce.ID != b.Nonce.ID || a.Nonce.HidingPoint == nil || a.Nonce.BindingPoint == nil {
		return false
	}
	return a.Nonce.HidingPoint.Equal(b.Nonce.HidingPoint) &&
		a.Nonce.BindingPoint.Equal(b.Nonce.BindingPoint) &&
		bytes.Equal(a.Addendum, b.Addendum)
}

// Factory builds the Protocol for a commit request, typically by decoding
// req.Task.
type Factory func(share *frost.KeyShare, req *CommitRequest) (Protocol, error)

// Handle answers one commit or sign request addressed to the signer. It
// returns the reply to send, or nil for messages of other rounds.
func (s *Signer) Handle(msg transport.Message, build Factory) (*transport.Message, error) {
	switch msg.Round {
	case transport.RoundCommitRequest:
		req, ok := msg.Payload.(*CommitRequest)
		if !ok {
			return nil, errs.New(errs.ProtocolViolation, "session.handle", "unexpected %T in commit request", msg.Payload)
		}
		protocol, err := build(s.share, req)
		if err != nil {
			return nil, err
		}
		c, err := s.Commit(msg.Session, req, protocol)
		if err != nil {
			return nil, err
		}
		return &transport.Message{Session: msg.Session, Round: transport.RoundCommit, To: msg.From, Payload: c}, nil
	case transport.RoundSignRequest:
		req, ok := msg.Payload.(*SignRequest)
		if !ok {
			return nil, errs.New(errs.ProtocolViolation, "session.handle", "unexpected %T in sign request", msg.Payload)
		}
		p, err := s.Sign(msg.Session, req)
		if err != nil {
			return nil, err
		}
		return &transport.Message{Session: msg.Session, Round: transport.RoundShare, To: msg.From, Payload: p}, nil
	}
	return nil, nil
}
