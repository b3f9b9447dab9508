package clsag

import (
	"encoding/binary"
	"errors"
	"io"

	"filippo.io/edwards25519"

	"github.com/f3rmion/xmrsig/ed25519"
	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/frost"
	"github.com/f3rmion/xmrsig/group"
	"github.com/f3rmion/xmrsig/party"
	"github.com/f3rmion/xmrsig/session"
)

const (
	labelNonceD = "nonce-d"
	labelNonceE = "nonce-e"

	addendumLen = 3*ed25519.PointSize + 3*dleqProofLen
)

// Task describes one input to every signer. All of it is public within
// the signing group.
type Task struct {
	Input     int
	Ring      Ring
	RealIndex int
	PseudoOut *edwards25519.Point
	// Mask is z with C_l - PseudoOut = z*G.
	Mask *edwards25519.Scalar
	// Offset is the one-time key offset with P_l = GroupKey + Offset*G.
	Offset *edwards25519.Scalar
	// KeyImage is the image combined before signing started.
	KeyImage *edwards25519.Point
}

// Result is a finished input signature.
type Result struct {
	Input     int
	Signature *Signature
	KeyImage  *edwards25519.Point
	PseudoOut *edwards25519.Point
}

type addendum struct {
	dH, eH, image *edwards25519.Point
}

// Multisig is the threshold CLSAG algorithm for one input. It implements
// session.Algorithm[*Result]; create one instance per session.
type Multisig struct {
	pub  *frost.Public
	task *Task

	hp      *edwards25519.Point // Hp(P_l)
	d       *edwards25519.Point // Mask*Hp(P_l)
	context []byte
	addenda map[party.ID]*addendum

	p  *params
	s  []*edwards25519.Scalar
	cl *edwards25519.Scalar
	c1 *edwards25519.Scalar
}

var _ session.Algorithm[*Result] = (*Multisig)(nil)

// NewMultisig checks task against the group and returns the algorithm.
func NewMultisig(pub *frost.Public, task *Task) (*Multisig, error) {
	const op = "clsag.multisig"
	if task == nil {
		return nil, errs.New(errs.ProtocolViolation, op, "missing task")
	}
	fail := func(kind errs.Kind, check, format string, args ...any) error {
		return errs.New(kind, op, format, args...).WithInput(task.Input).WithCheck(check)
	}
	if err := task.Ring.Validate(); err != nil {
		return nil, err
	}
	if task.RealIndex < 0 || task.RealIndex >= task.Ring.Len() {
		return nil, fail(errs.ProtocolViolation, "real-index", "real index %d outside ring of %d", task.RealIndex, task.Ring.Len())
	}
	if task.PseudoOut == nil || task.Mask == nil || task.Offset == nil || task.KeyImage == nil {
		return nil, fail(errs.ProtocolViolation, "task", "incomplete task")
	}
	groupKey, err := pointOf(pub.GroupKey)
	if err != nil {
		return nil, err
	}

	spend := task.Ring.Keys[task.RealIndex]
	want := new(edwards25519.Point).Add(groupKey, new(edwards25519.Point).ScalarBaseMult(task.Offset))
	if want.Equal(spend) != 1 {
		return nil, fail(errs.ProtocolViolation, "one-time-key", "ring member %d is not owned by the group", task.RealIndex)
	}
	diff := new(edwards25519.Point).Subtract(task.Ring.Commitments[task.RealIndex], task.PseudoOut)
	if diff.Equal(new(edwards25519.Point).ScalarBaseMult(task.Mask)) != 1 {
		return nil, fail(errs.BalanceMismatch, "pseudo-out", "mask does not open the commitment difference")
	}
	if task.KeyImage.Equal(edwards25519.NewIdentityPoint()) == 1 || !ed25519.TorsionFree(ed25519.WrapPoint(task.KeyImage)) {
		return nil, fail(errs.KeyImageMismatch, "key-image", "key image outside prime subgroup")
	}

	m := &Multisig{
		pub:     pub,
		task:    task,
		hp:      hashToPoint(spend),
		addenda: make(map[party.ID]*addendum),
	}
	m.d = new(edwards25519.Point).ScalarMult(task.Mask, m.hp)
	m.context = m.buildContext()
	return m, nil
}

// Factory builds a Multisig from a commit request carrying a *Task.
func Factory(share *frost.KeyShare, req *session.CommitRequest) (session.Protocol, error) {
	task, ok := req.Task.(*Task)
	if !ok {
		return nil, errs.New(errs.ProtocolViolation, "clsag.factory", "unexpected task %T", req.Task)
	}
	return NewMultisig(&share.Public, task)
}

func (m *Multisig) buildContext() []byte {
	t := m.task
	out := []byte("clsag")
	out = binary.BigEndian.AppendUint32(out, uint32(t.Input))
	out = binary.BigEndian.AppendUint32(out, uint32(t.RealIndex))
	out = binary.BigEndian.AppendUint32(out, uint32(t.Ring.Len()))
	for i := range t.Ring.Keys {
		out = append(out, t.Ring.Keys[i].Bytes()...)
		out = append(out, t.Ring.Commitments[i].Bytes()...)
	}
	out = append(out, t.PseudoOut.Bytes()...)
	out = append(out, t.Offset.Bytes()...)
	out = append(out, m.d.Bytes()...)
	return append(out, t.KeyImage.Bytes()...)
}

// Context implements session.Protocol.
func (m *Multisig) Context() []byte { return m.context }

// Preprocess publishes d*Hp, e*Hp and the partial key image with proofs
// tying each to the matching point over G.
func (m *Multisig) Preprocess(rng io.Reader, share *frost.KeyShare, nonce *frost.SigningNonce) ([]byte, error) {
	G := edwards25519.NewGeneratorPoint()
	d, err := scalarOf(nonce.D)
	if err != nil {
		return nil, err
	}
	e, err := scalarOf(nonce.E)
	if err != nil {
		return nil, err
	}
	x, err := scalarOf(share.Secret)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, addendumLen)
	for _, v := range []*edwards25519.Scalar{d, e, x} {
		out = append(out, new(edwards25519.Point).ScalarMult(v, m.hp).Bytes()...)
	}
	for _, pr := range []struct {
		label string
		x     *edwards25519.Scalar
	}{{labelNonceD, d}, {labelNonceE, e}, {labelKeyImage, x}} {
		proof, err := ProveDLEq(rng, pr.label, pr.x, G, m.hp)
		if err != nil {
			return nil, err
		}
		out = append(out, proof.Bytes()...)
	}
	return out, nil
}

// ProcessAddendum decodes and checks one signer's addendum.
func (m *Multisig) ProcessAddendum(id party.ID, nonce *frost.SigningCommitment, data []byte) error {
	const op = "clsag.addendum"
	wrap := func(err error) error {
		e := errs.Wrap(errs.KindOf(err), op, err).WithParticipants(id).WithInput(m.task.Input)
		var inner *errs.Error
		if errors.As(err, &inner) {
			e.Check = inner.Check
		}
		return e
	}
	if len(data) != addendumLen {
		return errs.New(errs.InvalidEncoding, op, "addendum is %d bytes", len(data)).WithParticipants(id).WithInput(m.task.Input)
	}
	var pts [3]*edwards25519.Point
	for i := range pts {
		p, err := ed25519.DecodePoint(data[i*32 : (i+1)*32])
		if err != nil {
			return wrap(err)
		}
		if !ed25519.TorsionFree(p) {
			return errs.New(errs.InvalidEncoding, op, "point %d has a torsion component", i).WithParticipants(id).WithInput(m.task.Input)
		}
		pts[i] = p.Inner()
	}
	var proofs [3]*DLEqProof
	for i := range proofs {
		off := 3*32 + i*dleqProofLen
		pr, err := DecodeDLEqProof(data[off : off+dleqProofLen])
		if err != nil {
			return wrap(err)
		}
		proofs[i] = pr
	}

	D, err := pointOf(nonce.HidingPoint)
	if err != nil {
		return err
	}
	E, err := pointOf(nonce.BindingPoint)
	if err != nil {
		return err
	}
	G := edwards25519.NewGeneratorPoint()
	if !proofs[0].Verify(labelNonceD, G, m.hp, D, pts[0]) || !proofs[1].Verify(labelNonceE, G, m.hp, E, pts[1]) {
		return errs.New(errs.ChallengeMismatch, op, "nonce proof rejected").WithParticipants(id).WithInput(m.task.Input).WithCheck("nonce-dleq")
	}
	if err := VerifyKeyImageShare(m.pub, id, m.task.Ring.Keys[m.task.RealIndex], &KeyImageShare{Image: pts[2], Proof: proofs[2]}); err != nil {
		return wrap(err)
	}

	m.addenda[id] = &addendum{dH: pts[0], eH: pts[1], image: pts[2]}
	return nil
}

// rederiveImage interpolates the key image from the signers' partial
// images and compares it with the one fixed at session start.
func (m *Multisig) rederiveImage(view *session.View) error {
	images := make(map[party.ID]*edwards25519.Point, len(view.Signers))
	for _, id := range view.Signers {
		a, ok := m.addenda[id]
		if !ok {
			return errs.New(errs.ProtocolViolation, "clsag.key-image", "no addendum").WithParticipants(id).WithInput(m.task.Input)
		}
		images[id] = a.image
	}
	I := new(edwards25519.Point).ScalarMult(m.task.Offset, m.hp)
	for _, id := range view.Signers {
		l, err := scalarOf(view.Lambda[id])
		if err != nil {
			return err
		}
		I.Add(I, new(edwards25519.Point).ScalarMult(l, images[id]))
	}
	if I.Equal(m.task.KeyImage) != 1 {
		return errs.New(errs.KeyImageMismatch, "clsag.key-image", "re-derived key image differs").
			WithInput(m.task.Input).WithParticipants(view.Signers...).WithCheck("key-image")
	}
	return nil
}

// Challenge runs the ring with the aggregate nonce and returns
// k = -c*mu_P, so the shares sum to a - c*mu_P*x.
func (m *Multisig) Challenge(view *session.View) (group.Scalar, error) {
	const op = "clsag.challenge"
	if len(view.Message) != 32 {
		return nil, errs.New(errs.ProtocolViolation, op, "message is %d bytes, want 32", len(view.Message)).WithInput(m.task.Input)
	}
	if err := m.rederiveImage(view); err != nil {
		return nil, err
	}

	aG, err := pointOf(view.R)
	if err != nil {
		return nil, err
	}
	aH := edwards25519.NewIdentityPoint()
	for _, id := range view.Signers {
		rho, err := scalarOf(view.Rho[id])
		if err != nil {
			return nil, err
		}
		a := m.addenda[id]
		aH.Add(aH, a.dH)
		aH.Add(aH, new(edwards25519.Point).ScalarMult(rho, a.eH))
	}

	// Every party draws the same decoy responses from the shared transcript.
	s, err := decoyResponses(view.Transcript().Rand("clsag/decoys"), m.task.Ring.Len(), m.task.RealIndex)
	if err != nil {
		return nil, err
	}
	m.p = newParams(view.Message, m.task.Ring, m.task.KeyImage, m.d, m.task.PseudoOut)
	m.s = s
	m.cl, m.c1 = m.p.loop(m.task.RealIndex, s, aG, aH)

	k := edwards25519.NewScalar().Multiply(m.cl, m.p.muP)
	return ed25519.WrapScalar(k.Negate(k)), nil
}

// Finalize completes s_l = z - c*mu_C*mask - c*mu_P*offset and verifies
// the full signature.
func (m *Multisig) Finalize(view *session.View, z group.Scalar) (*Result, error) {
	const op = "clsag.finalize"
	if m.p == nil {
		return nil, errs.New(errs.ProtocolViolation, op, "challenge not derived").WithInput(m.task.Input)
	}
	zs, err := scalarOf(z)
	if err != nil {
		return nil, err
	}
	k := edwards25519.NewScalar().Multiply(m.p.muC, m.task.Mask)
	k.MultiplyAdd(m.p.muP, m.task.Offset, k)
	k.Multiply(k, m.cl)

	s := make([]*edwards25519.Scalar, len(m.s))
	copy(s, m.s)
	s[m.task.RealIndex] = edwards25519.NewScalar().Subtract(zs, k)

	sig := &Signature{
		S:  s,
		C1: m.c1,
		D:  new(edwards25519.Point).ScalarMult(invEight, m.d),
	}
	if err := Verify(sig, view.Message, m.task.Ring, m.task.KeyImage, m.task.PseudoOut); err != nil {
		return nil, errs.Wrap(errs.ChallengeMismatch, op, err).WithInput(m.task.Input).WithCheck("clsag")
	}
	if err := m.rederiveImage(view); err != nil {
		return nil, err
	}
	return &Result{Input: m.task.Input, Signature: sig, KeyImage: m.task.KeyImage, PseudoOut: m.task.PseudoOut}, nil
}
