package clsag

import (
	"io"

	"filippo.io/edwards25519"

	"github.com/f3rmion/xmrsig/ed25519"
	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/frost"
	"github.com/f3rmion/xmrsig/group"
	"github.com/f3rmion/xmrsig/party"
)

const labelKeyImage = "key-image"

// KeyImageRequest asks a key holder for its partial key image of the
// one-time key spent by an input.
type KeyImageRequest struct {
	Input int
	Key   *edwards25519.Point
}

// KeyImageShare is x_i*Hp(P) with a proof that it uses the same x_i as
// the holder's verification share.
type KeyImageShare struct {
	Image *edwards25519.Point
	Proof *DLEqProof
}

// PartialKeyImage computes share's contribution to the key image of key.
func PartialKeyImage(rng io.Reader, share *frost.KeyShare, key *edwards25519.Point) (*KeyImageShare, error) {
	x, err := scalarOf(share.Secret)
	if err != nil {
		return nil, err
	}
	hp := hashToPoint(key)
	proof, err := ProveDLEq(rng, labelKeyImage, x, edwards25519.NewGeneratorPoint(), hp)
	if err != nil {
		return nil, err
	}
	return &KeyImageShare{Image: new(edwards25519.Point).ScalarMult(x, hp), Proof: proof}, nil
}

// VerifyKeyImageShare checks id's partial image of key against its
// verification share.
func VerifyKeyImageShare(pub *frost.Public, id party.ID, key *edwards25519.Point, s *KeyImageShare) error {
	const op = "clsag.key-image"
	X, ok := pub.VerificationShares[id]
	if !ok {
		return errs.New(errs.ProtocolViolation, op, "not a key holder").WithParticipants(id)
	}
	Xp, err := pointOf(X)
	if err != nil {
		return err
	}
	if s == nil || s.Image == nil {
		return errs.New(errs.KeyImageMismatch, op, "missing partial key image").WithParticipants(id).WithCheck("partial-image")
	}
	if !s.Proof.Verify(labelKeyImage, edwards25519.NewGeneratorPoint(), hashToPoint(key), Xp, s.Image) {
		return errs.New(errs.KeyImageMismatch, op, "partial key image proof rejected").WithParticipants(id).WithCheck("partial-image")
	}
	return nil
}

// CombineKeyImages checks every partial image and interpolates the key
// image of P = GroupKey + offset*G:
//
//	I = offset*Hp(P) + sum(lambda_i * K_i)
//
// Any t holders yield the same image.
func CombineKeyImages(f *frost.FROST, pub *frost.Public, key *edwards25519.Point, offset *edwards25519.Scalar, shares map[party.ID]*KeyImageShare) (*edwards25519.Point, error) {
	const op = "clsag.key-image"
	ids := make([]party.ID, 0, len(shares))
	for id := range shares {
		ids = append(ids, id)
	}
	set, err := party.NewSet(ids...)
	if err != nil {
		return nil, errs.Wrap(errs.ProtocolViolation, op, err)
	}
	if len(set) < pub.Threshold {
		return nil, errs.New(errs.InsufficientParticipants, op, "%d partial key images, threshold %d", len(set), pub.Threshold)
	}
	for _, id := range set {
		if err := VerifyKeyImageShare(pub, id, key, shares[id]); err != nil {
			return nil, err
		}
	}
	images := make(map[party.ID]*edwards25519.Point, len(set))
	for _, id := range set {
		images[id] = shares[id].Image
	}
	return interpolateImage(f, set, hashToPoint(key), offset, images)
}

func interpolateImage(f *frost.FROST, set party.Set, hp *edwards25519.Point, offset *edwards25519.Scalar, images map[party.ID]*edwards25519.Point) (*edwards25519.Point, error) {
	I := new(edwards25519.Point).ScalarMult(offset, hp)
	for _, id := range set {
		lambda, err := f.Lagrange(id, set)
		if err != nil {
			return nil, err
		}
		l, err := scalarOf(lambda)
		if err != nil {
			return nil, err
		}
		I.Add(I, new(edwards25519.Point).ScalarMult(l, images[id]))
	}
	return I, nil
}

func scalarOf(s group.Scalar) (*edwards25519.Scalar, error) {
	v, ok := s.(*ed25519.Scalar)
	if !ok {
		return nil, errs.New(errs.ProtocolViolation, "clsag", "scalar %T is not ed25519", s)
	}
	return v.Inner(), nil
}

func pointOf(p group.Point) (*edwards25519.Point, error) {
	v, ok := p.(*ed25519.Point)
	if !ok {
		return nil, errs.New(errs.ProtocolViolation, "clsag", "point %T is not ed25519", p)
	}
	return v.Inner(), nil
}
