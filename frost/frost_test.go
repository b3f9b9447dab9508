package frost

import (
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f3rmion/xmrsig/bjj"
	"github.com/f3rmion/xmrsig/ed25519"
	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/group"
	"github.com/f3rmion/xmrsig/party"
	"github.com/f3rmion/xmrsig/transcript"
)

var testContext = []byte("frost-test")

func groups() map[string]group.Group {
	return map[string]group.Group{
		"bjj":     &bjj.BJJ{},
		"ed25519": ed25519.New(),
	}
}

// runDKG performs a full DKG in memory and returns every key share.
func runDKG(t *testing.T, f *FROST, threshold int, ids party.Set) map[party.ID]*KeyShare {
	t.Helper()

	participants := make(map[party.ID]*Participant, len(ids))
	broadcasts := make(map[party.ID]*Round1Data, len(ids))
	for _, id := range ids {
		p, err := f.NewParticipant(rand.Reader, id, threshold, testContext)
		require.NoError(t, err)
		participants[id] = p
		broadcasts[id] = p.Round1Broadcast()
	}

	for _, b := range broadcasts {
		require.NoError(t, f.VerifyRound1(b, threshold, testContext))
	}

	for _, sender := range ids {
		for _, recipient := range ids {
			if sender == recipient {
				continue
			}
			data := f.Round1PrivateSend(participants[sender], recipient)
			err := f.Round2ReceiveShare(participants[recipient], data, broadcasts[sender].Commitments)
			require.NoError(t, err, "participant %d rejected share from %d", recipient, sender)
		}
	}

	shares := make(map[party.ID]*KeyShare, len(ids))
	for _, id := range ids {
		ks, err := f.Finalize(participants[id], broadcasts)
		require.NoError(t, err)
		shares[id] = ks
	}
	return shares
}

// thresholdSign runs both signing rounds for signers and returns the
// aggregate Schnorr signature.
func thresholdSign(t *testing.T, f *FROST, shares map[party.ID]*KeyShare, signers party.Set, message []byte) *Signature {
	t.Helper()
	g := f.Group()
	groupKey := shares[signers[0]].GroupKey

	nonces := make(map[party.ID]*SigningNonce)
	commitments := make(map[party.ID]*SigningCommitment)
	for _, id := range signers {
		n, c, err := f.SignRound1(rand.Reader, id)
		require.NoError(t, err)
		nonces[id], commitments[id] = n, c
	}

	base := transcript.New("frost-test")
	base.Append("message", message)
	base.Append("signers", signers.Bytes())
	for _, id := range signers {
		base.AppendPoints("commitment", commitments[id].HidingPoint, commitments[id].BindingPoint)
	}
	rho, err := f.BindingFactors(base, signers)
	require.NoError(t, err)

	R := f.GroupCommitment(commitments, rho)
	c := f.Challenge(R, groupKey, message)

	sigShares := make(map[party.ID]*SignatureShare)
	for _, id := range signers {
		lambda, err := f.Lagrange(id, signers)
		require.NoError(t, err)
		sigShares[id] = f.SignRound2(shares[id], nonces[id], rho[id], lambda, c)
		assert.True(t, f.VerifyShare(commitments[id], sigShares[id], shares[id].PublicShare(), rho[id], lambda, c))
		nonces[id].Erase(g)
	}

	return &Signature{R: R, Z: f.SumShares(sigShares)}
}

func TestDKGAndSign(t *testing.T) {
	for name, g := range groups() {
		t.Run(name, func(t *testing.T) {
			f := New(g)
			ids := party.Set{1, 2, 3}
			shares := runDKG(t, f, 2, ids)

			groupKey := shares[1].GroupKey
			for _, ks := range shares {
				assert.True(t, ks.GroupKey.Equal(groupKey), "group keys differ")
				assert.Equal(t, ids, ks.Participants())
				require.NoError(t, f.ValidatePublic(&ks.Public))
				for id, X := range ks.VerificationShares {
					assert.True(t, X.Equal(shares[id].PublicShare()))
				}
			}

			// Interpolating x_i*G over any t shares recovers the group key.
			y, err := f.Interpolate(map[party.ID]group.Point{
				1: shares[1].PublicShare(),
				3: shares[3].PublicShare(),
			})
			require.NoError(t, err)
			assert.True(t, y.Equal(groupKey))

			message := []byte("hello frost")
			sig := thresholdSign(t, f, shares, party.Set{1, 2}, message)
			assert.True(t, f.Verify(message, sig, groupKey))
			assert.False(t, f.Verify([]byte("wrong message"), sig, groupKey))
		})
	}
}

func TestSigningWithDifferentSignerSubsets(t *testing.T) {
	f := New(&bjj.BJJ{})
	ids := party.Set{1, 2, 3, 4}
	shares := runDKG(t, f, 2, ids)
	message := []byte("test message")

	subsets := []party.Set{
		{1, 2}, {1, 3}, {1, 4}, {2, 3}, {2, 4}, {3, 4},
		{1, 2, 3},
		{1, 2, 3, 4},
	}
	for _, subset := range subsets {
		t.Run(subset.String(), func(t *testing.T) {
			sig := thresholdSign(t, f, shares, subset, message)
			assert.True(t, f.Verify(message, sig, shares[1].GroupKey))
		})
	}
}

func TestSigningWithDifferentThresholds(t *testing.T) {
	configs := []struct {
		threshold int
		total     int
	}{
		{1, 2},
		{2, 3},
		{3, 5},
		{4, 7},
	}
	for _, cfg := range configs {
		t.Run(fmt.Sprintf("%d-of-%d", cfg.threshold, cfg.total), func(t *testing.T) {
			f := New(ed25519.New())
			ids := make(party.Set, cfg.total)
			for i := range ids {
				ids[i] = party.ID(i + 1)
			}
			shares := runDKG(t, f, cfg.threshold, ids)
			message := []byte("threshold message")

			sig := thresholdSign(t, f, shares, ids[:cfg.threshold], message)
			assert.True(t, f.Verify(message, sig, shares[1].GroupKey))

			if cfg.threshold > 1 {
				// With t-1 signers the Lagrange coefficients interpolate the
				// wrong polynomial value and the signature is invalid.
				sig := thresholdSign(t, f, shares, ids[:cfg.threshold-1], message)
				assert.False(t, f.Verify(message, sig, shares[1].GroupKey))
			}
		})
	}
}

func TestDKGRejectsBadShare(t *testing.T) {
	f := New(ed25519.New())
	g := f.Group()

	sender, err := f.NewParticipant(rand.Reader, 2, 2, testContext)
	require.NoError(t, err)
	recipient, err := f.NewParticipant(rand.Reader, 1, 2, testContext)
	require.NoError(t, err)

	data := f.Round1PrivateSend(sender, 1)
	data.Share = g.NewScalar().Add(data.Share, g.NewScalar().SetUint64(1))

	err = f.Round2ReceiveShare(recipient, data, sender.Round1Broadcast().Commitments)
	require.ErrorIs(t, err, errs.ShareVerificationFailed)
	assert.Equal(t, party.Set{2}, errs.Participants(err))

	// The bad share is not stored, so finalization cannot proceed.
	_, err = f.Finalize(recipient, map[party.ID]*Round1Data{
		1: recipient.Round1Broadcast(),
		2: sender.Round1Broadcast(),
	})
	require.ErrorIs(t, err, errs.ProtocolViolation)
}

func TestVerifyRound1(t *testing.T) {
	f := New(ed25519.New())
	p, err := f.NewParticipant(rand.Reader, 3, 2, testContext)
	require.NoError(t, err)
	b := p.Round1Broadcast()

	require.NoError(t, f.VerifyRound1(b, 2, testContext))

	t.Run("WrongContext", func(t *testing.T) {
		err := f.VerifyRound1(b, 2, []byte("other dkg"))
		require.ErrorIs(t, err, errs.ShareVerificationFailed)
		assert.Equal(t, party.Set{3}, errs.Participants(err))
	})

	t.Run("ReplayedUnderOtherID", func(t *testing.T) {
		replay := *b
		replay.ID = 4
		err := f.VerifyRound1(&replay, 2, testContext)
		require.ErrorIs(t, err, errs.ShareVerificationFailed)
	})

	t.Run("WrongDegree", func(t *testing.T) {
		err := f.VerifyRound1(b, 3, testContext)
		require.ErrorIs(t, err, errs.ShareVerificationFailed)
	})

	t.Run("InvalidThreshold", func(t *testing.T) {
		_, err := f.NewParticipant(rand.Reader, 1, 0, testContext)
		require.ErrorIs(t, err, errs.InsufficientParticipants)
	})
}

// orderTwo returns (0, -1), the ed25519 point of order 2.
func orderTwo(t *testing.T) group.Point {
	t.Helper()
	var enc [ed25519.PointSize]byte
	enc[0] = 0xec
	for i := 1; i < 31; i++ {
		enc[i] = 0xff
	}
	enc[31] = 0x7f
	p, err := ed25519.DecodePoint(enc[:])
	require.NoError(t, err)
	return p
}

func TestDKGRejectsTorsionCommitments(t *testing.T) {
	f := New(ed25519.New())
	g := f.Group()
	low := orderTwo(t)

	ids := party.Set{1, 3, 5}
	participants := make(map[party.ID]*Participant)
	broadcasts := make(map[party.ID]*Round1Data)
	for _, id := range ids {
		p, err := f.NewParticipant(rand.Reader, id, 2, testContext)
		require.NoError(t, err)
		participants[id] = p
		broadcasts[id] = p.Round1Broadcast()
	}

	// With odd IDs T*(1+id) vanishes, so the Feldman checks alone would
	// accept shares from these commitments.
	honest := broadcasts[1]
	evil := &Round1Data{
		ID: 1,
		Commitments: []group.Point{
			g.NewPoint().Add(honest.Commitments[0], low),
			g.NewPoint().Add(honest.Commitments[1], low),
		},
		Proof: honest.Proof,
	}
	for _, id := range ids[1:] {
		share := f.Round1PrivateSend(participants[1], id)
		require.NoError(t, f.Round2ReceiveShare(participants[id], share, evil.Commitments))
	}

	err := f.VerifyRound1(evil, 2, testContext)
	require.ErrorIs(t, err, errs.ShareVerificationFailed)
	assert.Equal(t, party.Set{1}, errs.Participants(err))
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "subgroup", e.Check)

	evilR := &Round1Data{ID: 1, Commitments: honest.Commitments, Proof: &Proof{
		R: g.NewPoint().Add(honest.Proof.R, low), S: honest.Proof.S,
	}}
	err = f.VerifyRound1(evilR, 2, testContext)
	require.ErrorIs(t, err, errs.ShareVerificationFailed)
	assert.Equal(t, party.Set{1}, errs.Participants(err))

	// A participant that skipped the round 1 check still refuses to finish.
	share := f.Round1PrivateSend(participants[5], 3)
	require.NoError(t, f.Round2ReceiveShare(participants[3], share, broadcasts[5].Commitments))
	_, err = f.Finalize(participants[3], map[party.ID]*Round1Data{1: evil, 3: broadcasts[3], 5: broadcasts[5]})
	require.ErrorIs(t, err, errs.ShareVerificationFailed)
}

func TestValidatePublicRejectsTorsion(t *testing.T) {
	f := New(ed25519.New())
	g := f.Group()
	shares := runDKG(t, f, 2, party.Set{1, 2, 3})
	low := orderTwo(t)

	pub := shares[1].Public
	pub.GroupKey = g.NewPoint().Add(pub.GroupKey, low)
	err := f.ValidatePublic(&pub)
	require.ErrorIs(t, err, errs.ShareVerificationFailed)

	pub = shares[1].Public
	tampered := make(map[party.ID]group.Point, len(pub.VerificationShares))
	for id, X := range pub.VerificationShares {
		tampered[id] = X
	}
	tampered[2] = g.NewPoint().Add(tampered[2], low)
	pub.VerificationShares = tampered
	err = f.ValidatePublic(&pub)
	require.ErrorIs(t, err, errs.ShareVerificationFailed)
	assert.Equal(t, party.Set{2}, errs.Participants(err))
}

func TestVerifyShareBlame(t *testing.T) {
	f := New(ed25519.New())
	g := f.Group()
	shares := runDKG(t, f, 2, party.Set{1, 2, 3})

	signers := party.Set{1, 3}
	nonce, comm, err := f.SignRound1(rand.Reader, 3)
	require.NoError(t, err)
	rho := g.NewScalar().SetUint64(5)
	k := g.NewScalar().SetUint64(11)
	lambda, err := f.Lagrange(3, signers)
	require.NoError(t, err)

	share := f.SignRound2(shares[3], nonce, rho, lambda, k)
	assert.True(t, f.VerifyShare(comm, share, shares[3].PublicShare(), rho, lambda, k))

	share.Z = g.NewScalar().Add(share.Z, g.NewScalar().SetUint64(1))
	assert.False(t, f.VerifyShare(comm, share, shares[3].PublicShare(), rho, lambda, k))

	nonce.Erase(g)
	assert.True(t, nonce.D.IsZero())
	assert.True(t, nonce.E.IsZero())
}

func TestLagrange(t *testing.T) {
	f := New(ed25519.New())
	g := f.Group()

	// lambda_1 + lambda_2 + lambda_3 = 1 over {1,2,3}.
	signers := party.Set{1, 2, 3}
	sum := g.NewScalar()
	for _, id := range signers {
		l, err := f.Lagrange(id, signers)
		require.NoError(t, err)
		sum = g.NewScalar().Add(sum, l)
	}
	assert.True(t, sum.Equal(g.NewScalar().SetUint64(1)))

	_, err := f.Lagrange(4, signers)
	require.ErrorIs(t, err, errs.ProtocolViolation)
}

func TestKeyShareSerialization(t *testing.T) {
	for name, g := range groups() {
		t.Run(name, func(t *testing.T) {
			f := New(g)
			shares := runDKG(t, f, 2, party.Set{1, 2, 3})

			blob := f.MarshalKeyShare(shares[2])
			decoded, err := f.UnmarshalKeyShare(blob)
			require.NoError(t, err)
			assert.Equal(t, party.ID(2), decoded.ID)
			assert.Equal(t, 2, decoded.Threshold)
			assert.True(t, decoded.Secret.Equal(shares[2].Secret))
			assert.True(t, decoded.GroupKey.Equal(shares[2].GroupKey))
			assert.Equal(t, shares[2].Participants(), decoded.Participants())

			_, err = f.UnmarshalKeyShare(blob[:len(blob)-1])
			require.ErrorIs(t, err, errs.InvalidEncoding)

			_, err = f.UnmarshalKeyShare(append(blob, 0))
			require.ErrorIs(t, err, errs.InvalidEncoding)

			// Another participant's secret under this ID is detected.
			forged := *shares[2]
			forged.Secret = shares[1].Secret
			_, err = f.UnmarshalKeyShare(f.MarshalKeyShare(&forged))
			require.ErrorIs(t, err, errs.ShareVerificationFailed)
		})
	}

	t.Run("WrongGroup", func(t *testing.T) {
		f := New(ed25519.New())
		shares := runDKG(t, f, 2, party.Set{1, 2})
		_, err := New(&bjj.BJJ{}).UnmarshalKeyShare(f.MarshalKeyShare(shares[1]))
		require.ErrorIs(t, err, errs.InvalidEncoding)
	})
}

func TestValidatePublicRejectsInconsistentShares(t *testing.T) {
	f := New(ed25519.New())
	g := f.Group()
	shares := runDKG(t, f, 2, party.Set{1, 2, 3})

	pub := shares[1].Public
	tampered := make(map[party.ID]group.Point, len(pub.VerificationShares))
	for id, X := range pub.VerificationShares {
		tampered[id] = X
	}
	tampered[3] = g.NewPoint().Add(tampered[3], g.Generator())
	pub.VerificationShares = tampered

	err := f.ValidatePublic(&pub)
	require.ErrorIs(t, err, errs.ShareVerificationFailed)

	pub.Threshold = 4
	err = f.ValidatePublic(&pub)
	require.ErrorIs(t, err, errs.InsufficientParticipants)
}

func TestBlake2bHasher(t *testing.T) {
	f := NewWithHasher(&bjj.BJJ{}, NewBlake2bHasher())
	shares := runDKG(t, f, 2, party.Set{1, 2, 3})
	message := []byte("blake2b message")

	sig := thresholdSign(t, f, shares, party.Set{2, 3}, message)
	assert.True(t, f.Verify(message, sig, shares[1].GroupKey))

	// A different hasher derives a different challenge.
	other := New(&bjj.BJJ{})
	assert.False(t, other.Verify(message, sig, shares[1].GroupKey))
}
