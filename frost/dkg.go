package frost

import (
	"io"

	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/group"
	"github.com/f3rmion/xmrsig/party"
	"github.com/f3rmion/xmrsig/transcript"
)

// Round1Data is broadcast by each participant in round 1.
type Round1Data struct {
	ID          party.ID      // sender
	Commitments []group.Point // commitments to polynomial coefficients
	Proof       *Proof        // knowledge of the constant term
}

// Round1PrivateData is sent privately to each participant.
type Round1PrivateData struct {
	FromID party.ID
	ToID   party.ID
	Share  group.Scalar // sender's polynomial evaluated at ToID
}

// Proof is a Schnorr proof of knowledge of the discrete log of the first
// coefficient commitment, bound to the DKG context and the prover ID.
type Proof struct {
	R group.Point
	S group.Scalar
}

// Participant holds state during DKG.
type Participant struct {
	id             party.ID
	threshold      int
	context        []byte
	coefficients   []group.Scalar // our secret polynomial
	commitments    []group.Point  // public commitments
	proof          *Proof
	receivedShares map[party.ID]group.Scalar
}

// NewParticipant creates a participant for DKG with a random polynomial of
// degree threshold-1. context binds the proof of knowledge to one DKG
// instance so it cannot be replayed into another.
func (f *FROST) NewParticipant(r io.Reader, id party.ID, threshold int, context []byte) (*Participant, error) {
	if threshold < 1 {
		return nil, errs.New(errs.InsufficientParticipants, "frost.dkg", "threshold %d", threshold)
	}
	coeffs := make([]group.Scalar, threshold)
	for i := range coeffs {
		c, err := f.group.RandomScalar(r)
		if err != nil {
			return nil, err
		}
		coeffs[i] = c
	}

	// C_i = coeffs[i] * G
	commits := make([]group.Point, threshold)
	for i, c := range coeffs {
		commits[i] = group.BaseMult(f.group, c)
	}

	proof, err := f.prove(r, context, id, coeffs[0], commits[0])
	if err != nil {
		return nil, err
	}

	return &Participant{
		id:             id,
		threshold:      threshold,
		context:        context,
		coefficients:   coeffs,
		commitments:    commits,
		proof:          proof,
		receivedShares: make(map[party.ID]group.Scalar),
	}, nil
}

// ID returns the participant identifier.
func (p *Participant) ID() party.ID { return p.id }

// Round1Broadcast returns data to broadcast to all participants.
func (p *Participant) Round1Broadcast() *Round1Data {
	return &Round1Data{
		ID:          p.id,
		Commitments: p.commitments,
		Proof:       p.proof,
	}
}

// VerifyRound1 checks the shape of a round 1 broadcast and its proof of
// knowledge. Failures name the sender.
func (f *FROST) VerifyRound1(data *Round1Data, threshold int, context []byte) error {
	const op = "frost.dkg.round1"
	if len(data.Commitments) != threshold || data.Proof == nil {
		return errs.New(errs.ShareVerificationFailed, op,
			"expected %d commitments and a proof", threshold).
			WithParticipants(data.ID).WithCheck("commitments")
	}
	for k, c := range data.Commitments {
		if !c.TorsionFree() {
			return errs.New(errs.ShareVerificationFailed, op, "commitment %d outside the prime-order subgroup", k).
				WithParticipants(data.ID).WithCheck("subgroup")
		}
	}
	if !data.Proof.R.TorsionFree() {
		return errs.New(errs.ShareVerificationFailed, op, "proof nonce outside the prime-order subgroup").
			WithParticipants(data.ID).WithCheck("subgroup")
	}
	if !f.verifyProof(context, data.ID, data.Commitments[0], data.Proof) {
		return errs.New(errs.ShareVerificationFailed, op, "invalid proof of knowledge").
			WithParticipants(data.ID).WithCheck("proof-of-knowledge")
	}
	return nil
}

// Round1PrivateSend returns the share to send privately to recipient.
func (f *FROST) Round1PrivateSend(p *Participant, recipientID party.ID) *Round1PrivateData {
	return &Round1PrivateData{
		FromID: p.id,
		ToID:   recipientID,
		Share:  f.evalPolynomial(p.coefficients, f.ScalarFromID(recipientID)),
	}
}

// Round2ReceiveShare verifies and stores a received share.
//
// The check is share*G == sum(C_k * id^k) over the sender's commitments.
// A mismatch returns errs.ShareVerificationFailed naming the sender and the
// share is not stored.
func (f *FROST) Round2ReceiveShare(p *Participant, data *Round1PrivateData, senderCommitments []group.Point) error {
	if data.ToID != p.id {
		return errs.New(errs.ProtocolViolation, "frost.dkg.round2", "share addressed to %d", data.ToID).
			WithParticipants(data.FromID)
	}
	lhs := group.BaseMult(f.group, data.Share)
	rhs := f.EvalCommitments(senderCommitments, p.id)
	if !lhs.Equal(rhs) {
		return errs.New(errs.ShareVerificationFailed, "frost.dkg.round2", "share does not match commitments").
			WithParticipants(data.FromID).WithCheck("feldman")
	}
	p.receivedShares[data.FromID] = data.Share
	return nil
}

// Finalize computes the key share once every other participant's share has
// been received and verified. allBroadcasts must hold the round 1 data of
// every participant, including p.
func (f *FROST) Finalize(p *Participant, allBroadcasts map[party.ID]*Round1Data) (*KeyShare, error) {
	const op = "frost.dkg.finalize"
	for id := range allBroadcasts {
		if id == p.id {
			continue
		}
		if _, ok := p.receivedShares[id]; !ok {
			return nil, errs.New(errs.ProtocolViolation, op, "missing share").WithParticipants(id)
		}
	}
	if _, ok := allBroadcasts[p.id]; !ok {
		return nil, errs.New(errs.ProtocolViolation, op, "own broadcast missing")
	}
	if len(allBroadcasts) < p.threshold {
		return nil, errs.New(errs.InsufficientParticipants, op,
			"%d participants for threshold %d", len(allBroadcasts), p.threshold)
	}

	// Sum all received shares, including our own.
	secret := f.evalPolynomial(p.coefficients, f.ScalarFromID(p.id))
	for _, share := range p.receivedShares {
		secret = f.group.NewScalar().Add(secret, share)
	}

	// Group key: sum of all constant term commitments.
	// Verification shares: X_j = sum over senders of their polynomial image at j.
	groupKey := f.group.NewPoint()
	shares := make(map[party.ID]group.Point, len(allBroadcasts))
	for j := range allBroadcasts {
		shares[j] = f.group.NewPoint()
	}
	for _, b := range allBroadcasts {
		groupKey = f.group.NewPoint().Add(groupKey, b.Commitments[0])
		for j := range shares {
			shares[j] = f.group.NewPoint().Add(shares[j], f.EvalCommitments(b.Commitments, j))
		}
	}

	if !group.BaseMult(f.group, secret).Equal(shares[p.id]) {
		return nil, errs.New(errs.ShareVerificationFailed, op, "own verification share mismatch").
			WithParticipants(p.id)
	}

	pub := Public{
		Threshold:          p.threshold,
		GroupKey:           groupKey,
		VerificationShares: shares,
	}
	if err := f.ValidatePublic(&pub); err != nil {
		return nil, err
	}

	// The polynomial coefficients are no longer needed.
	for _, c := range p.coefficients {
		c.Set(f.group.NewScalar())
	}

	return &KeyShare{Public: pub, ID: p.id, Secret: secret}, nil
}

func (f *FROST) proofTranscript(context []byte, id party.ID, commitment, R group.Point) *transcript.Transcript {
	t := transcript.New("xmrsig/frost/dkg-pok")
	t.Append("group", []byte(f.group.Name()))
	t.Append("context", context)
	t.Append("participant", id.Bytes())
	t.AppendPoints("commitment", commitment, R)
	return t
}

func (f *FROST) prove(r io.Reader, context []byte, id party.ID, secret group.Scalar, commitment group.Point) (*Proof, error) {
	k, err := f.group.RandomScalar(r)
	if err != nil {
		return nil, err
	}
	R := group.BaseMult(f.group, k)
	c, err := f.proofTranscript(context, id, commitment, R).ChallengeScalar(f.group, "c")
	if err != nil {
		return nil, err
	}
	// s = k + c*a
	s := f.group.NewScalar().Add(k, f.group.NewScalar().Mul(c, secret))
	return &Proof{R: R, S: s}, nil
}

func (f *FROST) verifyProof(context []byte, id party.ID, commitment group.Point, proof *Proof) bool {
	c, err := f.proofTranscript(context, id, commitment, proof.R).ChallengeScalar(f.group, "c")
	if err != nil {
		return false
	}
	// s*G == R + c*C_0
	lhs := group.BaseMult(f.group, proof.S)
	rhs := f.group.NewPoint().Add(proof.R, f.group.NewPoint().ScalarMult(c, commitment))
	return lhs.Equal(rhs)
}
