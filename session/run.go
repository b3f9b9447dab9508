package session

import (
	"context"
	"time"

	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/party"
	"github.com/f3rmion/xmrsig/transport"
)

// Run drives both signing rounds over conn. task is forwarded to every
// signer in the commit request. Each round waits for every signer until
// timeout; silent signers are reported as errs.RoundTimeout.
func (s *Session[T]) Run(ctx context.Context, conn transport.Conn, task any, timeout time.Duration) (T, error) {
	var zero T
	discard := func(m transport.Message) {
		s.logger.Debug("message discarded", "round", m.Round, "from", m.From, "msg_session", m.Session)
	}

	err := transport.Broadcast(ctx, conn, s.signers, transport.Message{
		Session: s.id,
		Round:   transport.RoundCommitRequest,
		Payload: s.CommitRequest(task),
	})
	if err != nil {
		return zero, s.failLocked(err)
	}
	got, err := transport.Collect(ctx, conn.Incoming(), transport.Expect{
		Session: s.id, Round: transport.RoundCommit, From: s.signers,
	}, timeout, discard)
	if err != nil {
		return zero, s.failLocked(err)
	}
	commitments := make(map[party.ID]*Commitment, len(got))
	for id, m := range got {
		c, ok := m.Payload.(*Commitment)
		if !ok {
			return zero, s.failLocked(errs.New(errs.ProtocolViolation, "session.run", "unexpected %T in commit round", m.Payload).WithParticipants(id))
		}
		commitments[id] = c
	}

	req, err := s.Commit(commitments)
	if err != nil {
		return zero, err
	}
	err = transport.Broadcast(ctx, conn, s.signers, transport.Message{
		Session: s.id,
		Round:   transport.RoundSignRequest,
		Payload: req,
	})
	if err != nil {
		return zero, s.failLocked(err)
	}
	got, err = transport.Collect(ctx, conn.Incoming(), transport.Expect{
		Session: s.id, Round: transport.RoundShare, From: s.signers,
	}, timeout, discard)
	if err != nil {
		return zero, s.failLocked(err)
	}
	partials := make(map[party.ID]*PartialSignature, len(got))
	for id, m := range got {
		p, ok := m.Payload.(*PartialSignature)
		if !ok {
			return zero, s.failLocked(errs.New(errs.ProtocolViolation, "session.run", "unexpected %T in share round", m.Payload).WithParticipants(id))
		}
		partials[id] = p
	}
	if err := s.AddShares(partials); err != nil {
		return zero, err
	}
	return s.Aggregate()
}

func (s *Session[T]) failLocked(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Failed {
		return s.err
	}
	return s.fail(err)
}
