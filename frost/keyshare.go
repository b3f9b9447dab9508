package frost

import (
	"encoding/binary"
	"maps"
	"slices"

	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/group"
	"github.com/f3rmion/xmrsig/party"
)

const keyShareVersion = 1

// Public is the public output of a DKG, identical on every participant.
type Public struct {
	Threshold int
	GroupKey  group.Point
	// VerificationShares maps each participant to X_i = x_i*G.
	VerificationShares map[party.ID]group.Point
}

// Participants returns the sorted set of share holders.
func (p *Public) Participants() party.Set {
	ids := slices.Sorted(maps.Keys(p.VerificationShares))
	return party.Set(ids)
}

// KeyShare represents a participant's share of the secret key together
// with the group's public material. It must never leave its owner.
type KeyShare struct {
	Public
	ID     party.ID
	Secret group.Scalar
}

// PublicShare returns the participant's own verification share.
func (k *KeyShare) PublicShare() group.Point {
	return k.VerificationShares[k.ID]
}

// MarshalKeyShare encodes a key share for an external secure store:
//
//	version:u8 | len(name):u16 name | id:u16 | t:u16 | secret | groupKey |
//	n:u16 | n * (id:u16 | X_id)
func (f *FROST) MarshalKeyShare(k *KeyShare) []byte {
	name := f.group.Name()
	out := []byte{keyShareVersion}
	out = binary.BigEndian.AppendUint16(out, uint16(len(name)))
	out = append(out, name...)
	out = binary.BigEndian.AppendUint16(out, uint16(k.ID))
	out = binary.BigEndian.AppendUint16(out, uint16(k.Threshold))
	out = append(out, k.Secret.Bytes()...)
	out = append(out, k.GroupKey.Bytes()...)
	ids := k.Participants()
	out = binary.BigEndian.AppendUint16(out, uint16(len(ids)))
	for _, id := range ids {
		out = binary.BigEndian.AppendUint16(out, uint16(id))
		out = append(out, k.VerificationShares[id].Bytes()...)
	}
	return out
}

// UnmarshalKeyShare decodes and validates a key share produced by
// MarshalKeyShare. Besides encodings it checks that the secret matches the
// owner's verification share and that the verification shares interpolate
// to the group key.
func (f *FROST) UnmarshalKeyShare(data []byte) (*KeyShare, error) {
	const op = "frost.keyshare"
	r := reader{data: data}

	if v := r.byte(); v != keyShareVersion {
		return nil, errs.New(errs.InvalidEncoding, op, "unsupported version %d", v)
	}
	name := string(r.next(int(r.uint16())))
	if r.err == nil && name != f.group.Name() {
		return nil, errs.New(errs.InvalidEncoding, op, "key share is for group %q, not %q", name, f.group.Name())
	}
	k := &KeyShare{
		ID:     party.ID(r.uint16()),
		Public: Public{Threshold: int(r.uint16())},
	}
	secret := r.next(f.group.ScalarLen())
	groupKey := r.next(f.group.PointLen())
	n := int(r.uint16())
	type entry struct {
		id  party.ID
		enc []byte
	}
	entries := make([]entry, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		entries = append(entries, entry{id: party.ID(r.uint16()), enc: r.next(f.group.PointLen())})
	}
	if r.err != nil {
		return nil, errs.Wrap(errs.InvalidEncoding, op, r.err)
	}
	if len(r.data) != 0 {
		return nil, errs.New(errs.InvalidEncoding, op, "%d trailing bytes", len(r.data))
	}

	var err error
	if k.Secret, err = f.group.NewScalar().SetBytes(secret); err != nil {
		return nil, err
	}
	if k.GroupKey, err = f.group.NewPoint().SetBytes(groupKey); err != nil {
		return nil, err
	}
	k.VerificationShares = make(map[party.ID]group.Point, n)
	for _, e := range entries {
		if e.id == party.Coordinator {
			return nil, errs.New(errs.InvalidEncoding, op, "reserved participant id")
		}
		if _, dup := k.VerificationShares[e.id]; dup {
			return nil, errs.New(errs.InvalidEncoding, op, "duplicate participant %d", e.id)
		}
		if k.VerificationShares[e.id], err = f.group.NewPoint().SetBytes(e.enc); err != nil {
			return nil, err
		}
	}
	if err := f.ValidatePublic(&k.Public); err != nil {
		return nil, err
	}
	own, ok := k.VerificationShares[k.ID]
	if !ok || !group.BaseMult(f.group, k.Secret).Equal(own) {
		return nil, errs.New(errs.ShareVerificationFailed, op, "secret does not match verification share").
			WithParticipants(k.ID)
	}
	return k, nil
}

// ValidatePublic checks that p is a consistent t-of-n output: at least t
// verification shares, all of which lie on the same degree t-1 polynomial
// whose constant term is the group key.
func (f *FROST) ValidatePublic(p *Public) error {
	const op = "frost.public"
	if p.Threshold < 1 || len(p.VerificationShares) < p.Threshold {
		return errs.New(errs.InsufficientParticipants, op,
			"threshold %d with %d shares", p.Threshold, len(p.VerificationShares))
	}
	if p.GroupKey.IsIdentity() || !p.GroupKey.TorsionFree() {
		return errs.New(errs.ShareVerificationFailed, op, "group key is the identity or outside the prime-order subgroup").
			WithCheck("subgroup")
	}
	for id, x := range p.VerificationShares {
		if !x.TorsionFree() {
			return errs.New(errs.ShareVerificationFailed, op, "verification share outside the prime-order subgroup").
				WithParticipants(id).WithCheck("subgroup")
		}
	}
	ids := p.Participants()
	// Any t shares determine the polynomial; every t-subset sliding over
	// the sorted ids must agree on the constant term.
	for start := 0; start+p.Threshold <= len(ids); start++ {
		window := ids[start : start+p.Threshold]
		points := make(map[party.ID]group.Point, len(window))
		for _, id := range window {
			points[id] = p.VerificationShares[id]
		}
		y, err := f.Interpolate(points)
		if err != nil {
			return err
		}
		if !y.Equal(p.GroupKey) {
			return errs.New(errs.ShareVerificationFailed, op, "verification shares do not interpolate to group key").
				WithParticipants(window...)
		}
	}
	return nil
}

type reader struct {
	data []byte
	err  error
}

func (r *reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.data) < n {
		r.err = errs.New(errs.InvalidEncoding, "frost.keyshare", "truncated")
		return nil
	}
	out := r.data[:n]
	r.data = r.data[n:]
	return out
}

func (r *reader) byte() byte {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) uint16() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}
