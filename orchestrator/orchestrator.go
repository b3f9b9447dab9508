package orchestrator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"filippo.io/edwards25519"
	"golang.org/x/sync/errgroup"

	"github.com/f3rmion/xmrsig/clsag"
	"github.com/f3rmion/xmrsig/config"
	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/frost"
	"github.com/f3rmion/xmrsig/monero"
	"github.com/f3rmion/xmrsig/party"
	"github.com/f3rmion/xmrsig/session"
	"github.com/f3rmion/xmrsig/transport"
)

// Orchestrator turns transaction skeletons into signed transactions. It
// owns the coordinator endpoint of the transport; call Run before Sign.
type Orchestrator struct {
	frost       *frost.FROST
	router      *transport.Router
	selector    Selector
	timeout     time.Duration
	maxAttempts int
	rng         io.Reader
	metrics     *Metrics
	logger      *slog.Logger

	// Group shape required by AddGroup; zero accepts any.
	threshold    int
	participants int

	mu     sync.RWMutex
	groups map[[32]byte]*frost.Public
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSelector sets the subset selection policy. Default Priority{}.
func WithSelector(s Selector) Option {
	return func(o *Orchestrator) { o.selector = s }
}

// WithRoundTimeout bounds every round.
func WithRoundTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithMaxAttempts bounds the attempts per input and stage.
func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) { o.maxAttempts = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics sets the collectors.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithRand sets the randomness for pseudo-output masks and run IDs.
func WithRand(r io.Reader) Option {
	return func(o *Orchestrator) { o.rng = r }
}

// FromConfig returns an orchestrator with the timeout, attempt and selection
// settings of cfg. AddGroup then only accepts cfg.Threshold-of-
// cfg.Participants groups. opts are applied after cfg.
func FromConfig(f *frost.FROST, conn transport.Conn, cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sel, err := SelectorFor(cfg)
	if err != nil {
		return nil, err
	}
	base := []Option{
		WithRoundTimeout(cfg.RoundTimeout),
		WithMaxAttempts(cfg.MaxAttempts),
		WithSelector(sel),
		func(o *Orchestrator) { o.threshold, o.participants = cfg.Threshold, cfg.Participants },
	}
	return New(f, conn, append(base, opts...)...), nil
}

// New returns an orchestrator sending through conn, which should be the
// party.Coordinator endpoint.
func New(f *frost.FROST, conn transport.Conn, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		frost:       f,
		selector:    Priority{},
		timeout:     5 * time.Second,
		maxAttempts: 3,
		rng:         rand.Reader,
		logger:      slog.New(slog.DiscardHandler),
		groups:      make(map[[32]byte]*frost.Public),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}
	o.logger = o.logger.With("component", "orchestrator")
	o.router = transport.NewRouter(conn,
		transport.WithLogger(o.logger),
		transport.OnDrop(func(transport.Message) { o.metrics.dropped.Inc() }))
	return o
}

// Run dispatches transport traffic to open sessions until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) {
	o.router.Run(ctx)
}

// AddGroup registers the public output of a DKG. Inputs name their group by
// its key.
func (o *Orchestrator) AddGroup(pub *frost.Public) error {
	if err := o.frost.ValidatePublic(pub); err != nil {
		return err
	}
	if o.threshold != 0 && (pub.Threshold != o.threshold || len(pub.VerificationShares) != o.participants) {
		return errs.New(errs.ProtocolViolation, "orchestrator.group", "%d-of-%d group, configured %d-of-%d",
			pub.Threshold, len(pub.VerificationShares), o.threshold, o.participants)
	}
	key := [32]byte(pub.GroupKey.Bytes())
	o.mu.Lock()
	defer o.mu.Unlock()
	o.groups[key] = pub
	return nil
}

// Group returns the registered group with the given key.
func (o *Orchestrator) Group(key *edwards25519.Point) (*frost.Public, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	pub, ok := o.groups[[32]byte(key.Bytes())]
	if !ok {
		return nil, errs.New(errs.ProtocolViolation, "orchestrator.group", "unknown group %x", key.Bytes())
	}
	return pub, nil
}

// inputRun is the per-input state of one Sign call.
type inputRun struct {
	index    int
	in       *monero.Input
	pub      *frost.Public
	excluded map[party.ID]bool
	logger   *slog.Logger
}

func (r *inputRun) available() party.Set {
	return r.pub.Participants().Without(slices.Collect(maps.Keys(r.excluded))...)
}

// Sign produces the signed transaction for skel. Key images of all inputs
// are derived concurrently, then every input is signed in its own session.
// A silent participant is excluded and the input retried under a fresh
// session ID; any other failure cancels the remaining inputs and is
// returned.
func (o *Orchestrator) Sign(ctx context.Context, skel *monero.Skeleton) (done *monero.CompletedTransaction, err error) {
	start := time.Now()
	defer func() { o.metrics.transaction(start, err) }()

	plan, err := skel.Decode()
	if err != nil {
		return nil, err
	}
	var nonce [4]byte
	if _, err := io.ReadFull(o.rng, nonce[:]); err != nil {
		return nil, fmt.Errorf("orchestrator: run id: %w", err)
	}
	runID := plan.ID + "-" + hex.EncodeToString(nonce[:])
	logger := o.logger.With("tx", plan.ID, "run", runID)
	logger.Info("signing transaction", "inputs", len(plan.Inputs), "outputs", len(plan.Outputs))

	runs := make([]*inputRun, len(plan.Inputs))
	for i := range plan.Inputs {
		in := &plan.Inputs[i]
		pub, err := o.Group(in.GroupKey)
		if err != nil {
			return nil, atInput(err, i)
		}
		runs[i] = &inputRun{
			index:    i,
			in:       in,
			pub:      pub,
			excluded: make(map[party.ID]bool),
			logger:   logger.With("input", i),
		}
	}

	masks, err := plan.PseudoOutMasks(o.rng)
	if err != nil {
		return nil, err
	}
	pseudo := make([]*edwards25519.Point, len(plan.Inputs))
	for i, in := range plan.Inputs {
		pseudo[i] = monero.Commit(masks[i], in.Amount)
	}

	images := make([]*edwards25519.Point, len(runs))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range runs {
		g.Go(func() error {
			img, err := o.keyImage(gctx, runID, r)
			images[i] = img
			return err
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("key image derivation failed", "err", err)
		return nil, err
	}

	tx, err := plan.Transaction(images, pseudo)
	if err != nil {
		return nil, err
	}
	msg := tx.SigningHash()

	g, gctx = errgroup.WithContext(ctx)
	for i, r := range runs {
		task := &clsag.Task{
			Input:     i,
			Ring:      r.in.Ring,
			RealIndex: r.in.RealIndex,
			PseudoOut: pseudo[i],
			Mask:      edwards25519.NewScalar().Subtract(r.in.Mask, masks[i]),
			Offset:    r.in.Offset,
			KeyImage:  images[i],
		}
		g.Go(func() error {
			res, err := o.signInput(gctx, runID, msg[:], r, task)
			if err != nil {
				return err
			}
			tx.Inputs[i].Signature = res.Signature
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("signing failed", "err", err)
		return nil, err
	}

	done, err = tx.Complete()
	if err != nil {
		logger.Error("assembled transaction rejected", "err", err)
		return nil, err
	}
	logger.Info("transaction signed", "hash", hex.EncodeToString(done.Hash[:]), "elapsed", time.Since(start))
	return done, nil
}

// attempts runs fn with a freshly selected subset until it succeeds, fails
// with anything other than a round timeout, or runs out of attempts.
// Participants named by a timeout are excluded from later attempts.
func (o *Orchestrator) attempts(ctx context.Context, stage string, r *inputRun, fn func(attempt int, signers party.Set) error) error {
	var err error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		var signers party.Set
		signers, err = o.selector.Select(r.index, r.available(), r.pub.Threshold)
		if err != nil {
			return atInput(err, r.index)
		}
		err = fn(attempt, signers)
		o.metrics.attempt(stage, err)
		if err == nil {
			return nil
		}
		if !errs.Retryable(err) || ctx.Err() != nil {
			return atInput(err, r.index)
		}
		missing := errs.Participants(err)
		for _, id := range missing {
			r.excluded[id] = true
		}
		r.logger.Warn("round timed out", "stage", stage, "attempt", attempt, "missing", missing)
		if attempt < o.maxAttempts {
			o.metrics.retries.WithLabelValues(stage).Inc()
		}
	}
	return atInput(err, r.index)
}

// keyImage derives the input's key image from the partial images of t
// holders.
func (o *Orchestrator) keyImage(ctx context.Context, runID string, r *inputRun) (*edwards25519.Point, error) {
	var image *edwards25519.Point
	key := r.in.SpendKey()
	err := o.attempts(ctx, stageKeyImage, r, func(attempt int, signers party.Set) error {
		id := fmt.Sprintf("%s/%d/ki/%d", runID, r.index, attempt)
		route := o.router.Open(id)
		defer route.Close()

		err := transport.Broadcast(ctx, route, signers, transport.Message{
			Session: id,
			Round:   transport.RoundKeyImageRequest,
			Payload: &clsag.KeyImageRequest{Input: r.index, Key: key},
		})
		if err != nil {
			return err
		}
		got, err := transport.Collect(ctx, route.Incoming(), transport.Expect{
			Session: id, Round: transport.RoundKeyImage, From: signers,
		}, o.timeout, nil)
		if err != nil {
			return err
		}
		shares := make(map[party.ID]*clsag.KeyImageShare, len(got))
		for from, m := range got {
			s, ok := m.Payload.(*clsag.KeyImageShare)
			if !ok {
				return errs.New(errs.ProtocolViolation, "orchestrator.key-image", "unexpected %T", m.Payload).WithParticipants(from)
			}
			shares[from] = s
		}
		image, err = clsag.CombineKeyImages(o.frost, r.pub, key, r.in.Offset, shares)
		return err
	})
	return image, err
}

// signInput runs CLSAG sessions for one input until one verifies.
func (o *Orchestrator) signInput(ctx context.Context, runID string, msg []byte, r *inputRun, task *clsag.Task) (*clsag.Result, error) {
	var result *clsag.Result
	err := o.attempts(ctx, stageSigning, r, func(attempt int, signers party.Set) error {
		id := fmt.Sprintf("%s/%d/%d", runID, r.index, attempt)
		alg, err := clsag.NewMultisig(r.pub, task)
		if err != nil {
			return err
		}
		s, err := session.New[*clsag.Result](o.frost, id, r.pub, signers, msg, alg, session.WithLogger(r.logger))
		if err != nil {
			return err
		}
		route := o.router.Open(id)
		defer route.Close()

		r.logger.Debug("session started", "session", id, "signers", signers)
		result, err = s.Run(ctx, route, task, o.timeout)
		return err
	})
	return result, err
}

func atInput(err error, i int) error {
	var e *errs.Error
	if errors.As(err, &e) && e.Input == errs.NoInput {
		e.Input = i
	}
	return err
}
