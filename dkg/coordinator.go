package dkg

import (
	"io"
	"log/slog"
	"sync"

	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/frost"
	"github.com/f3rmion/xmrsig/group"
	"github.com/f3rmion/xmrsig/party"
)

// Coordinator runs one participant's side of a DKG instance.
//
// Transitions:
//
//	Idle --Start--> RoundOneCommitted --Round2--> RoundTwoSharesExchanged --Finish--> Complete
//
// Any verification failure moves the coordinator to Aborted; every later
// call returns the abort error. A bad share is never summed into a result.
type Coordinator struct {
	f      *frost.FROST
	params Params
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	err         error
	participant *frost.Participant
	encSecret   group.Scalar
	round1      map[party.ID]*Round1Message
	shares      map[party.ID]bool
	result      *frost.KeyShare
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// New validates params and returns an Idle coordinator.
func New(f *frost.FROST, params Params, opts ...Option) (*Coordinator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	c := &Coordinator{
		f:      f,
		params: params,
		logger: slog.New(slog.DiscardHandler),
		round1: make(map[party.ID]*Round1Message, len(params.Participants)),
		shares: make(map[party.ID]bool, len(params.Participants)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "dkg", "self", params.Self, "session", params.SessionID())
	return c, nil
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the abort error, if any.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Params returns the instance parameters.
func (c *Coordinator) Params() Params { return c.params }

func (c *Coordinator) abort(err error) error {
	c.state = Aborted
	c.err = err
	c.logger.Error("dkg aborted", "err", err, "participants", errs.Participants(err))
	return err
}

func (c *Coordinator) expect(op string, s State) error {
	if c.state == Aborted {
		return c.err
	}
	if c.state != s {
		return errs.New(errs.ProtocolViolation, op, "in state %s, want %s", c.state, s)
	}
	return nil
}

// Start samples the polynomial and ephemeral encryption key and returns
// the round 1 broadcast.
func (c *Coordinator) Start(rng io.Reader) (*Round1Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.expect("dkg.start", Idle); err != nil {
		return nil, err
	}

	p, err := c.f.NewParticipant(rng, c.params.Self, c.params.Threshold, c.params.Context)
	if err != nil {
		return nil, c.abort(err)
	}
	g := c.f.Group()
	encSecret, err := g.RandomScalar(rng)
	if err != nil {
		return nil, c.abort(err)
	}

	b := p.Round1Broadcast()
	msg := &Round1Message{
		Commitments:   b.Commitments,
		Proof:         b.Proof,
		EncryptionKey: group.BaseMult(g, encSecret),
	}
	c.participant = p
	c.encSecret = encSecret
	c.round1[c.params.Self] = msg
	c.state = RoundOneCommitted
	c.logger.Debug("round one committed")
	return msg, nil
}

// ReceiveRound1 verifies and buffers another participant's broadcast. An
// invalid proof aborts the instance naming the sender.
func (c *Coordinator) ReceiveRound1(from party.ID, msg *Round1Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	const op = "dkg.round1"
	if err := c.expect(op, RoundOneCommitted); err != nil {
		return err
	}
	if !c.params.Participants.Contains(from) || from == c.params.Self {
		return errs.New(errs.ProtocolViolation, op, "unexpected sender").WithParticipants(from)
	}
	if _, dup := c.round1[from]; dup {
		return errs.New(errs.ProtocolViolation, op, "duplicate broadcast").WithParticipants(from)
	}
	if msg == nil || msg.EncryptionKey == nil || msg.EncryptionKey.IsIdentity() {
		return c.abort(errs.New(errs.ShareVerificationFailed, op, "missing encryption key").
			WithParticipants(from).WithCheck("encryption-key"))
	}
	data := &frost.Round1Data{ID: from, Commitments: msg.Commitments, Proof: msg.Proof}
	if err := c.f.VerifyRound1(data, c.params.Threshold, c.params.Context); err != nil {
		return c.abort(err)
	}
	c.round1[from] = msg
	return nil
}

// Round2 encrypts a share for every other participant once all round 1
// broadcasts are in.
func (c *Coordinator) Round2(rng io.Reader) (map[party.ID]*Round2Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	const op = "dkg.round2"
	if err := c.expect(op, RoundOneCommitted); err != nil {
		return nil, err
	}
	if missing := c.missingRound1(); len(missing) > 0 {
		return nil, errs.New(errs.ProtocolViolation, op, "round 1 incomplete").WithParticipants(missing...)
	}

	g := c.f.Group()
	out := make(map[party.ID]*Round2Message, len(c.params.Participants)-1)
	for _, to := range c.params.Participants {
		if to == c.params.Self {
			continue
		}
		share := c.f.Round1PrivateSend(c.participant, to).Share
		dh := g.NewPoint().ScalarMult(c.encSecret, c.round1[to].EncryptionKey)
		key := shareKey(dh, c.params.Context, c.params.Self, to)
		ct, err := sealShare(rng, key, share.Bytes(), shareAD(c.params.Context, c.params.Self, to))
		if err != nil {
			return nil, c.abort(err)
		}
		out[to] = &Round2Message{Ciphertext: ct}
	}
	c.state = RoundTwoSharesExchanged
	c.logger.Debug("round two shares sent", "count", len(out))
	return out, nil
}

// ReceiveRound2 decrypts and verifies a share against the sender's round 1
// commitments. A share that fails to decrypt, decode or verify aborts the
// instance with errs.ShareVerificationFailed naming the sender.
func (c *Coordinator) ReceiveRound2(from party.ID, msg *Round2Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	const op = "dkg.round2"
	if err := c.expect(op, RoundTwoSharesExchanged); err != nil {
		return err
	}
	sender, ok := c.round1[from]
	if !ok || from == c.params.Self {
		return errs.New(errs.ProtocolViolation, op, "unexpected sender").WithParticipants(from)
	}
	if c.shares[from] {
		return errs.New(errs.ProtocolViolation, op, "duplicate share").WithParticipants(from)
	}
	fail := func(check string, err error) error {
		return c.abort(errs.Wrap(errs.ShareVerificationFailed, op, err).WithParticipants(from).WithCheck(check))
	}
	if msg == nil {
		return fail("decrypt", errShortCiphertext)
	}

	g := c.f.Group()
	dh := g.NewPoint().ScalarMult(c.encSecret, sender.EncryptionKey)
	key := shareKey(dh, c.params.Context, from, c.params.Self)
	plain, err := openShare(key, msg.Ciphertext, shareAD(c.params.Context, from, c.params.Self))
	if err != nil {
		return fail("decrypt", err)
	}
	share, err := g.NewScalar().SetBytes(plain)
	if err != nil {
		return fail("share-encoding", err)
	}
	data := &frost.Round1PrivateData{FromID: from, ToID: c.params.Self, Share: share}
	if err := c.f.Round2ReceiveShare(c.participant, data, sender.Commitments); err != nil {
		return c.abort(err)
	}
	c.shares[from] = true
	return nil
}

// Finish sums the received shares into the key share.
func (c *Coordinator) Finish() (*frost.KeyShare, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	const op = "dkg.finish"
	if c.state == Complete {
		return c.result, nil
	}
	if err := c.expect(op, RoundTwoSharesExchanged); err != nil {
		return nil, err
	}
	if missing := c.missingShares(); len(missing) > 0 {
		return nil, errs.New(errs.ProtocolViolation, op, "round 2 incomplete").WithParticipants(missing...)
	}
	broadcasts := make(map[party.ID]*frost.Round1Data, len(c.round1))
	for id, m := range c.round1 {
		broadcasts[id] = &frost.Round1Data{ID: id, Commitments: m.Commitments, Proof: m.Proof}
	}
	ks, err := c.f.Finalize(c.participant, broadcasts)
	if err != nil {
		return nil, c.abort(err)
	}
	c.encSecret.Set(c.f.Group().NewScalar())
	c.result = ks
	c.state = Complete
	c.logger.Info("dkg complete", "participants", c.params.Participants)
	return ks, nil
}

// missingShares lists participants whose round 2 share has not arrived.
func (c *Coordinator) missingShares() []party.ID {
	var missing []party.ID
	for _, id := range c.params.Participants {
		if id != c.params.Self && !c.shares[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

func (c *Coordinator) missingRound1() []party.ID {
	var missing []party.ID
	for _, id := range c.params.Participants {
		if _, ok := c.round1[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
