package frost

import (
	"io"

	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/group"
	"github.com/f3rmion/xmrsig/party"
	"github.com/f3rmion/xmrsig/transcript"
)

// SigningNonce holds a participant's nonce pair for signing.
type SigningNonce struct {
	ID party.ID
	D  group.Scalar // hiding nonce
	E  group.Scalar // binding nonce
}

// Erase zeroes the nonce in place. An erased nonce can no longer sign.
func (n *SigningNonce) Erase(g group.Group) {
	n.D.Set(g.NewScalar())
	n.E.Set(g.NewScalar())
}

// SigningCommitment is broadcast in round 1 of signing.
type SigningCommitment struct {
	ID           party.ID
	HidingPoint  group.Point // D * G
	BindingPoint group.Point // E * G
}

// SignatureShare is a participant's share of the signature.
type SignatureShare struct {
	ID party.ID
	Z  group.Scalar
}

// SignRound1 draws a fresh nonce pair from r and returns it with its
// public commitment.
func (f *FROST) SignRound1(r io.Reader, id party.ID) (*SigningNonce, *SigningCommitment, error) {
	d, err := f.group.RandomScalar(r)
	if err != nil {
		return nil, nil, err
	}
	e, err := f.group.RandomScalar(r)
	if err != nil {
		return nil, nil, err
	}
	if d.IsZero() || e.IsZero() {
		return nil, nil, errs.New(errs.ProtocolViolation, "frost.sign.round1", "zero nonce")
	}

	nonce := &SigningNonce{ID: id, D: d, E: e}
	commitment := &SigningCommitment{
		ID:           id,
		HidingPoint:  group.BaseMult(f.group, d),
		BindingPoint: group.BaseMult(f.group, e),
	}
	return nonce, commitment, nil
}

// BindingFactors derives rho_i for every signer from a clone of base. The
// caller must already have absorbed the message, the signer subset and
// every commitment into base, so each rho binds the full committed set.
func (f *FROST) BindingFactors(base *transcript.Transcript, signers party.Set) (map[party.ID]group.Scalar, error) {
	factors := make(map[party.ID]group.Scalar, len(signers))
	for _, id := range signers {
		t := base.Clone()
		t.Append("signer", id.Bytes())
		rho, err := t.ChallengeScalar(f.group, "binding")
		if err != nil {
			return nil, err
		}
		factors[id] = rho
	}
	return factors, nil
}

// GroupCommitment computes R = sum(D_i + rho_i * E_i).
func (f *FROST) GroupCommitment(commitments map[party.ID]*SigningCommitment, rho map[party.ID]group.Scalar) group.Point {
	R := f.group.NewPoint()
	for id, comm := range commitments {
		rhoE := f.group.NewPoint().ScalarMult(rho[id], comm.BindingPoint)
		term := f.group.NewPoint().Add(comm.HidingPoint, rhoE)
		R = f.group.NewPoint().Add(R, term)
	}
	return R
}

// SignRound2 computes z_i = d + rho*e + lambda*x*k, where k is the
// challenge multiplier chosen by the signing algorithm (c for plain
// Schnorr).
func (f *FROST) SignRound2(share *KeyShare, nonce *SigningNonce, rho, lambda, k group.Scalar) *SignatureShare {
	z := f.group.NewScalar().Mul(rho, nonce.E)                 // rho * e
	z = f.group.NewScalar().Add(nonce.D, z)                    // d + rho * e
	lambdaX := f.group.NewScalar().Mul(lambda, share.Secret)   // lambda * x
	lambdaXK := f.group.NewScalar().Mul(lambdaX, k)            // lambda * x * k
	z = f.group.NewScalar().Add(z, lambdaXK)                   // d + rho*e + lambda*x*k
	return &SignatureShare{ID: share.ID, Z: z}
}

// VerifyShare checks z*G == D + rho*E + k*lambda*X for one signer.
func (f *FROST) VerifyShare(comm *SigningCommitment, share *SignatureShare, verificationShare group.Point, rho, lambda, k group.Scalar) bool {
	lhs := group.BaseMult(f.group, share.Z)
	rhs := f.group.NewPoint().Add(comm.HidingPoint, f.group.NewPoint().ScalarMult(rho, comm.BindingPoint))
	kl := f.group.NewScalar().Mul(k, lambda)
	rhs = f.group.NewPoint().Add(rhs, f.group.NewPoint().ScalarMult(kl, verificationShare))
	return lhs.Equal(rhs)
}

// SumShares adds the z values of every share.
func (f *FROST) SumShares(shares map[party.ID]*SignatureShare) group.Scalar {
	z := f.group.NewScalar()
	for _, s := range shares {
		z = f.group.NewScalar().Add(z, s.Z)
	}
	return z
}

// Challenge computes the Schnorr challenge c = H2(R, Y, message).
func (f *FROST) Challenge(R, groupKey group.Point, message []byte) group.Scalar {
	return f.hasher.H2(f.group, R.Bytes(), groupKey.Bytes(), message)
}

// Verify checks a Schnorr signature: z*G == R + c*Y.
func (f *FROST) Verify(message []byte, sig *Signature, groupKey group.Point) bool {
	c := f.Challenge(sig.R, groupKey, message)
	lhs := group.BaseMult(f.group, sig.Z)
	rhs := f.group.NewPoint().Add(sig.R, f.group.NewPoint().ScalarMult(c, groupKey))
	return lhs.Equal(rhs)
}
