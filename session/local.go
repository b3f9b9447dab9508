package session

import (
	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/party"
)

// Local runs a complete signing session in-process against signers, which
// must cover the session's subset. It is meant for tests and for single
// host deployments holding several shares.
func Local[T any](s *Session[T], signers map[party.ID]*Signer, task any, build Factory) (T, error) {
	var zero T
	req := s.CommitRequest(task)

	commitments := make(map[party.ID]*Commitment, len(s.signers))
	for _, id := range s.signers {
		sg, ok := signers[id]
		if !ok {
			return zero, s.failLocked(errs.New(errs.InsufficientParticipants, "session.local", "no local signer").WithParticipants(id))
		}
		protocol, err := build(sg.Share(), req)
		if err != nil {
			return zero, s.failLocked(err)
		}
		c, err := sg.Commit(s.id, req, protocol)
		if err != nil {
			return zero, s.failLocked(err)
		}
		commitments[id] = c
	}

	signReq, err := s.Commit(commitments)
	if err != nil {
		return zero, err
	}
	partials := make(map[party.ID]*PartialSignature, len(s.signers))
	for _, id := range s.signers {
		p, err := signers[id].Sign(s.id, signReq)
		if err != nil {
			return zero, s.failLocked(err)
		}
		partials[id] = p
	}
	if err := s.AddShares(partials); err != nil {
		return zero, err
	}
	return s.Aggregate()
}
