package transport

import (
	"context"
	"time"

	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/party"
)

// Expect describes the contributions a round is waiting for.
type Expect struct {
	Session string
	Round   Round
	From    party.Set
}

// Collect receives from in until one message has arrived from every member
// of want.From, the timeout elapses, or ctx is done.
//
// Messages for another session or round, from unexpected senders, or
// repeating a sender already heard from are passed to discard (if non-nil)
// and otherwise ignored; the first message per sender wins. On timeout the
// returned error is errs.RoundTimeout naming the missing senders. A done
// ctx returns ctx.Err().
func Collect(ctx context.Context, in <-chan Message, want Expect, timeout time.Duration, discard func(Message)) (map[party.ID]Message, error) {
	got := make(map[party.ID]Message, len(want.From))
	if len(want.From) == 0 {
		return got, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for len(got) < len(want.From) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			missing := make([]party.ID, 0, len(want.From)-len(got))
			for _, id := range want.From {
				if _, ok := got[id]; !ok {
					missing = append(missing, id)
				}
			}
			return got, errs.New(errs.RoundTimeout, "transport.collect",
				"session %s round %s", want.Session, want.Round).WithParticipants(missing...)
		case msg, ok := <-in:
			if !ok {
				return nil, errs.New(errs.ProtocolViolation, "transport.collect", "connection closed")
			}
			if msg.Session != want.Session || msg.Round != want.Round || !want.From.Contains(msg.From) {
				if discard != nil {
					discard(msg)
				}
				continue
			}
			if _, dup := got[msg.From]; dup {
				if discard != nil {
					discard(msg)
				}
				continue
			}
			got[msg.From] = msg
		}
	}
	return got, nil
}
