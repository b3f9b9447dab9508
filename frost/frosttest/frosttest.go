// Package frosttest provides key material for tests of packages built on
// frost.
package frosttest

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/f3rmion/xmrsig/frost"
	"github.com/f3rmion/xmrsig/party"
)

// Deal runs a full in-process DKG among ids and returns every key share.
func Deal(t testing.TB, f *frost.FROST, threshold int, ids party.Set) map[party.ID]*frost.KeyShare {
	t.Helper()
	ctx := []byte("frosttest")

	participants := make(map[party.ID]*frost.Participant, len(ids))
	broadcasts := make(map[party.ID]*frost.Round1Data, len(ids))
	for _, id := range ids {
		p, err := f.NewParticipant(rand.Reader, id, threshold, ctx)
		require.NoError(t, err)
		participants[id] = p
		broadcasts[id] = p.Round1Broadcast()
	}
	for _, sender := range ids {
		for _, recipient := range ids {
			if sender == recipient {
				continue
			}
			data := f.Round1PrivateSend(participants[sender], recipient)
			require.NoError(t, f.Round2ReceiveShare(participants[recipient], data, broadcasts[sender].Commitments))
		}
	}

	shares := make(map[party.ID]*frost.KeyShare, len(ids))
	for _, id := range ids {
		ks, err := f.Finalize(participants[id], broadcasts)
		require.NoError(t, err)
		shares[id] = ks
	}
	return shares
}
