package dkg

import (
	"context"
	"io"
	"time"

	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/frost"
	"github.com/f3rmion/xmrsig/transport"
)

// Run drives both rounds over conn. Each round blocks until every other
// participant has contributed or timeout elapses; a timeout aborts the
// instance with errs.RoundTimeout naming the silent participants.
//
// On errs.ShareVerificationFailed the caller should restart with
// Params.Without(errs.Participants(err)...).
func (c *Coordinator) Run(ctx context.Context, conn transport.Conn, rng io.Reader, timeout time.Duration) (*frost.KeyShare, error) {
	session := c.params.SessionID()
	others := c.params.Participants.Without(c.params.Self)
	discard := func(m transport.Message) {
		c.logger.Debug("message discarded", "round", m.Round, "from", m.From, "msg_session", m.Session)
	}

	r1, err := c.Start(rng)
	if err != nil {
		return nil, err
	}
	err = transport.Broadcast(ctx, conn, others, transport.Message{
		Session: session,
		Round:   transport.RoundDKGCommit,
		Payload: r1,
	})
	if err != nil {
		return nil, c.abortLocked(err)
	}

	got, err := transport.Collect(ctx, conn.Incoming(), transport.Expect{
		Session: session, Round: transport.RoundDKGCommit, From: others,
	}, timeout, discard)
	if err != nil {
		return nil, c.abortLocked(err)
	}
	for _, id := range others {
		msg, _ := got[id].Payload.(*Round1Message)
		if err := c.ReceiveRound1(id, msg); err != nil {
			return nil, err
		}
	}

	r2, err := c.Round2(rng)
	if err != nil {
		return nil, err
	}
	for _, to := range others {
		err := conn.Send(ctx, transport.Message{
			Session: session,
			Round:   transport.RoundDKGShare,
			To:      to,
			Payload: r2[to],
		})
		if err != nil {
			return nil, c.abortLocked(err)
		}
	}

	got, err = transport.Collect(ctx, conn.Incoming(), transport.Expect{
		Session: session, Round: transport.RoundDKGShare, From: others,
	}, timeout, discard)
	if err != nil {
		return nil, c.abortLocked(err)
	}
	for _, id := range others {
		msg, _ := got[id].Payload.(*Round2Message)
		if err := c.ReceiveRound2(id, msg); err != nil {
			return nil, err
		}
	}

	return c.Finish()
}

func (c *Coordinator) abortLocked(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if errs.KindOf(err) == errs.Unknown {
		err = errs.Wrap(errs.ProtocolViolation, "dkg.run", err)
	}
	return c.abort(err)
}
