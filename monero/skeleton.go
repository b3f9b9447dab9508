package monero

import (
	"encoding/hex"
	"math/bits"

	"filippo.io/edwards25519"

	"github.com/f3rmion/xmrsig/clsag"
	"github.com/f3rmion/xmrsig/ed25519"
	"github.com/f3rmion/xmrsig/errs"
)

// Skeleton is an unsigned transaction as supplied by the chain RPC
// collaborator: every input with its selected ring, every output with its
// opening, and the fee. Keys and scalars are raw 32-byte encodings.
type Skeleton struct {
	// ID names the transaction in session IDs. Derived from the content
	// when empty.
	ID         string
	Inputs     []SkeletonInput
	Outputs    []SkeletonOutput
	Fee        uint64
	Extra      []byte
	RangeProof RangeProof
}

// SkeletonInput spends one output owned by a threshold group.
type SkeletonInput struct {
	// GroupKey selects the threshold group holding the spend key.
	GroupKey [32]byte
	Amount   uint64
	// Mask opens the real member's commitment: C = Mask*G + Amount*H.
	Mask [32]byte
	// Offset is the one-time key offset: P = GroupKey + Offset*G.
	Offset    [32]byte
	RealIndex int
	Ring      []RingMember
}

// RingMember is one decoy or real output in an input's ring, in
// increasing global index order.
type RingMember struct {
	GlobalIndex uint64
	Key         [32]byte
	Commitment  [32]byte
}

// SkeletonOutput is a destination with its commitment opening.
type SkeletonOutput struct {
	Key             [32]byte
	ViewTag         byte
	Amount          uint64
	Mask            [32]byte
	EncryptedAmount [8]byte
}

// RangeProof is the output range proof, produced outside the signing
// engine. Serialized is written to the prunable section as is. HashData is
// the concatenation of the proof's key fields that the signing hash
// commits to.
type RangeProof struct {
	Serialized []byte
	HashData   []byte
}

// Input is a decoded SkeletonInput.
type Input struct {
	GroupKey  *edwards25519.Point
	Amount    uint64
	Mask      *edwards25519.Scalar
	Offset    *edwards25519.Scalar
	RealIndex int
	Ring      clsag.Ring
	// Indices are absolute global indices.
	Indices []uint64
}

// SpendKey returns the one-time key of the real ring member.
func (in *Input) SpendKey() *edwards25519.Point {
	return in.Ring.Keys[in.RealIndex]
}

// Output is a decoded SkeletonOutput.
type Output struct {
	Key             *edwards25519.Point
	ViewTag         byte
	Amount          uint64
	Mask            *edwards25519.Scalar
	Commitment      *edwards25519.Point
	EncryptedAmount [8]byte
}

// Plan is a validated skeleton.
type Plan struct {
	ID         string
	Inputs     []Input
	Outputs    []Output
	Fee        uint64
	Extra      []byte
	RangeProof RangeProof
}

// OutputCommitments returns the commitments of every output.
func (p *Plan) OutputCommitments() []*edwards25519.Point {
	out := make([]*edwards25519.Point, len(p.Outputs))
	for i, o := range p.Outputs {
		out[i] = o.Commitment
	}
	return out
}

// Decode validates s. Malformed keys or scalars are errs.InvalidEncoding,
// amounts that do not cover outputs plus fee and commitments that do not
// open are errs.BalanceMismatch.
func (s *Skeleton) Decode() (*Plan, error) {
	const op = "monero.skeleton"
	if len(s.Inputs) == 0 {
		return nil, errs.New(errs.ProtocolViolation, op, "no inputs")
	}
	if len(s.Outputs) == 0 {
		return nil, errs.New(errs.ProtocolViolation, op, "no outputs")
	}

	p := &Plan{
		ID:         s.ID,
		Inputs:     make([]Input, len(s.Inputs)),
		Outputs:    make([]Output, len(s.Outputs)),
		Fee:        s.Fee,
		Extra:      s.Extra,
		RangeProof: s.RangeProof,
	}
	var inTotal, outTotal uint64
	var carry uint64
	for i := range s.Inputs {
		in, err := decodeInput(&s.Inputs[i])
		if err != nil {
			return nil, withInput(err, i)
		}
		p.Inputs[i] = *in
		inTotal, carry = bits.Add64(inTotal, in.Amount, 0)
		if carry != 0 {
			return nil, errs.New(errs.BalanceMismatch, op, "input amounts overflow").WithInput(i)
		}
	}
	outTotal = s.Fee
	for i := range s.Outputs {
		o, err := decodeOutput(&s.Outputs[i])
		if err != nil {
			return nil, errs.Wrap(errs.KindOf(err), op, err).WithCheck("output")
		}
		p.Outputs[i] = *o
		outTotal, carry = bits.Add64(outTotal, o.Amount, 0)
		if carry != 0 {
			return nil, errs.New(errs.BalanceMismatch, op, "output amounts overflow").WithCheck("amounts")
		}
	}
	if inTotal != outTotal {
		return nil, errs.New(errs.BalanceMismatch, op, "inputs %d != outputs plus fee %d", inTotal, outTotal).WithCheck("amounts")
	}
	if p.ID == "" {
		p.ID = s.contentID()
	}
	return p, nil
}

func decodeInput(s *SkeletonInput) (*Input, error) {
	const op = "monero.input"
	if len(s.Ring) == 0 {
		return nil, errs.New(errs.ProtocolViolation, op, "empty ring")
	}
	if s.RealIndex < 0 || s.RealIndex >= len(s.Ring) {
		return nil, errs.New(errs.ProtocolViolation, op, "real index %d outside ring of %d", s.RealIndex, len(s.Ring))
	}
	groupKey, err := decodePoint(s.GroupKey)
	if err != nil {
		return nil, err
	}
	mask, err := decodeScalar(s.Mask)
	if err != nil {
		return nil, err
	}
	offset, err := decodeScalar(s.Offset)
	if err != nil {
		return nil, err
	}

	in := &Input{
		GroupKey:  groupKey,
		Amount:    s.Amount,
		Mask:      mask,
		Offset:    offset,
		RealIndex: s.RealIndex,
		Indices:   make([]uint64, len(s.Ring)),
	}
	for j, m := range s.Ring {
		if j > 0 && m.GlobalIndex <= s.Ring[j-1].GlobalIndex {
			return nil, errs.New(errs.ProtocolViolation, op, "ring indices not strictly increasing at member %d", j)
		}
		key, err := decodePoint(m.Key)
		if err != nil {
			return nil, err
		}
		c, err := decodePoint(m.Commitment)
		if err != nil {
			return nil, err
		}
		in.Indices[j] = m.GlobalIndex
		in.Ring.Keys = append(in.Ring.Keys, key)
		in.Ring.Commitments = append(in.Ring.Commitments, c)
	}

	if Commit(mask, s.Amount).Equal(in.Ring.Commitments[s.RealIndex]) != 1 {
		return nil, errs.New(errs.BalanceMismatch, op, "mask and amount do not open the spent commitment").WithCheck("input-commitment")
	}
	return in, nil
}

func decodeOutput(s *SkeletonOutput) (*Output, error) {
	key, err := decodePoint(s.Key)
	if err != nil {
		return nil, err
	}
	mask, err := decodeScalar(s.Mask)
	if err != nil {
		return nil, err
	}
	return &Output{
		Key:             key,
		ViewTag:         s.ViewTag,
		Amount:          s.Amount,
		Mask:            mask,
		Commitment:      Commit(mask, s.Amount),
		EncryptedAmount: s.EncryptedAmount,
	}, nil
}

// contentID hashes the ring selections and outputs into a short stable ID.
func (s *Skeleton) contentID() string {
	var data []byte
	for _, in := range s.Inputs {
		data = append(data, in.GroupKey[:]...)
		for _, m := range in.Ring {
			data = append(data, m.Key[:]...)
		}
	}
	for _, o := range s.Outputs {
		data = append(data, o.Key[:]...)
	}
	sum := ed25519.Keccak256(data)
	return hex.EncodeToString(sum[:8])
}

func decodePoint(b [32]byte) (*edwards25519.Point, error) {
	p, err := ed25519.DecodePoint(b[:])
	if err != nil {
		return nil, err
	}
	return p.Inner(), nil
}

func decodeScalar(b [32]byte) (*edwards25519.Scalar, error) {
	s, err := ed25519.DecodeScalar(b[:])
	if err != nil {
		return nil, err
	}
	return s.Inner(), nil
}

func withInput(err error, i int) error {
	return errs.Wrap(errs.KindOf(err), "monero.skeleton", err).WithInput(i)
}
