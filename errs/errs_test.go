package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f3rmion/xmrsig/party"
)

func TestKindMatching(t *testing.T) {
	err := fmt.Errorf("sign input: %w",
		New(RoundTimeout, "transport.collect", "session %s", "tx/0/1").WithParticipants(2, 5))

	require.ErrorIs(t, err, RoundTimeout)
	assert.NotErrorIs(t, err, ChallengeMismatch)
	assert.Equal(t, RoundTimeout, KindOf(err))
	assert.Equal(t, party.Set{2, 5}, Participants(err))
	assert.True(t, Retryable(err))

	assert.Equal(t, Unknown, KindOf(errors.New("plain")))
	assert.Nil(t, Participants(errors.New("plain")))
	assert.False(t, Retryable(New(ChallengeMismatch, "op", "x")))
}

func TestErrorString(t *testing.T) {
	err := Wrap(KeyImageMismatch, "clsag.multisig", errors.New("rederived image differs")).
		WithInput(1).WithParticipants(3).WithCheck("key-image")
	assert.Equal(t,
		"clsag.multisig: key image mismatch (input 1) (participants {3}) [key-image]: rederived image differs",
		err.Error())

	assert.Equal(t, "op: invalid encoding: bad", New(InvalidEncoding, "op", "bad").Error())
	assert.Equal(t, "kind(200)", Kind(200).String())
}
