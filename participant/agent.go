// Package participant runs a key holder: it answers key image, commit and
// sign requests from the orchestrator over a transport.Conn.
package participant

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/f3rmion/xmrsig/clsag"
	"github.com/f3rmion/xmrsig/config"
	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/frost"
	"github.com/f3rmion/xmrsig/keystore"
	"github.com/f3rmion/xmrsig/party"
	"github.com/f3rmion/xmrsig/session"
	"github.com/f3rmion/xmrsig/transport"
)

// DefaultNonceTTL bounds how long an unanswered commitment keeps its nonce.
const DefaultNonceTTL = time.Minute

// DefaultBurnRetention is how long a used session ID stays refused.
const DefaultBurnRetention = time.Hour

// Agent serves one key share.
type Agent struct {
	share   *frost.KeyShare
	signer  *session.Signer
	build   session.Factory
	rng     io.Reader
	ttl     time.Duration
	retain  time.Duration
	logger  *slog.Logger
	entropy io.Reader

	mu        sync.Mutex
	committed map[string]time.Time
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the agent logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithFactory sets how commit requests map to algorithms. It defaults to
// clsag.Factory.
func WithFactory(build session.Factory) Option {
	return func(a *Agent) { a.build = build }
}

// WithRand sets the randomness for key image proofs and nonce seeds.
func WithRand(r io.Reader) Option {
	return func(a *Agent) { a.rng = r; a.entropy = r }
}

// WithNonceTTL sets how long a commitment may wait for its sign request.
func WithNonceTTL(d time.Duration) Option {
	return func(a *Agent) { a.ttl = d }
}

// WithBurnRetention sets how long a used session ID stays refused before
// the agent forgets it.
func WithBurnRetention(d time.Duration) Option {
	return func(a *Agent) { a.retain = d }
}

// New returns an Agent for share.
func New(f *frost.FROST, share *frost.KeyShare, opts ...Option) *Agent {
	a := &Agent{
		share:     share,
		build:     clsag.Factory,
		rng:       rand.Reader,
		entropy:   rand.Reader,
		ttl:       DefaultNonceTTL,
		retain:    DefaultBurnRetention,
		logger:    slog.New(slog.DiscardHandler),
		committed: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "participant", "self", share.ID)
	a.signer = session.NewSigner(f, share,
		session.WithEntropy(a.entropy), session.WithSignerLogger(a.logger))
	return a
}

// Open loads the share of participant id in wallet name from the keystore
// at cfg.KeystorePath and returns an Agent with cfg's nonce TTL. The share
// must belong to a cfg.Threshold-of-cfg.Participants group. opts are
// applied after cfg.
func Open(ctx context.Context, f *frost.FROST, cfg *config.Config, name string, id party.ID, opts ...Option) (*Agent, error) {
	if cfg.KeystorePath == "" {
		return nil, errors.New("participant: no keystore path configured")
	}
	store, err := keystore.Open(cfg.KeystorePath, f)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	share, err := store.Get(ctx, name, id)
	if err != nil {
		return nil, err
	}
	if share.Public.Threshold != cfg.Threshold || len(share.Public.VerificationShares) != cfg.Participants {
		return nil, fmt.Errorf("participant: share is %d-of-%d, configured %d-of-%d",
			share.Public.Threshold, len(share.Public.VerificationShares), cfg.Threshold, cfg.Participants)
	}
	return New(f, share, append([]Option{WithNonceTTL(cfg.NonceTTL)}, opts...)...), nil
}

// ID returns the participant ID.
func (a *Agent) ID() party.ID { return a.share.ID }

// Signer exposes the underlying signer.
func (a *Agent) Signer() *session.Signer { return a.signer }

// Serve answers requests on conn until ctx is done or conn closes.
// Requests the agent refuses get no reply; the orchestrator treats the
// silence as a timeout.
func (a *Agent) Serve(ctx context.Context, conn transport.Conn) error {
	sweep := time.NewTicker(max(a.ttl/2, time.Millisecond))
	defer sweep.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-sweep.C:
			a.expire(now)
		case msg, ok := <-conn.Incoming():
			if !ok {
				return nil
			}
			reply, err := a.handle(msg)
			if err != nil {
				a.logger.Warn("request refused",
					"session", msg.Session, "round", msg.Round, "from", msg.From, "err", err)
				continue
			}
			if reply == nil {
				continue
			}
			if err := conn.Send(ctx, *reply); err != nil {
				a.logger.Warn("reply failed", "session", msg.Session, "round", reply.Round, "err", err)
			}
		}
	}
}

func (a *Agent) handle(msg transport.Message) (*transport.Message, error) {
	switch msg.Round {
	case transport.RoundKeyImageRequest:
		req, ok := msg.Payload.(*clsag.KeyImageRequest)
		if !ok || req.Key == nil {
			return nil, errs.New(errs.ProtocolViolation, "participant.key-image", "unexpected %T", msg.Payload)
		}
		share, err := clsag.PartialKeyImage(a.rng, a.share, req.Key)
		if err != nil {
			return nil, err
		}
		return &transport.Message{Session: msg.Session, Round: transport.RoundKeyImage, To: msg.From, Payload: share}, nil

	case transport.RoundCommitRequest:
		reply, err := a.signer.Handle(msg, a.build)
		if err == nil {
			a.mu.Lock()
			a.committed[msg.Session] = time.Now()
			a.mu.Unlock()
		}
		return reply, err

	case transport.RoundSignRequest:
		a.mu.Lock()
		delete(a.committed, msg.Session)
		a.mu.Unlock()
		return a.signer.Handle(msg, a.build)
	}
	return nil, nil
}

// expire erases nonces whose sign request never came and forgets session
// IDs older than the burn retention.
func (a *Agent) expire(now time.Time) {
	a.mu.Lock()
	for id, at := range a.committed {
		if now.Sub(at) >= a.ttl {
			a.signer.Abandon(id)
			delete(a.committed, id)
			a.logger.Debug("nonce expired", "session", id)
		}
	}
	a.mu.Unlock()
	if n := a.signer.Prune(now.Add(-a.retain)); n > 0 {
		a.logger.Debug("burned sessions forgotten", "count", n)
	}
}
