package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f3rmion/xmrsig/config"
	"github.com/f3rmion/xmrsig/errs"
	"github.com/f3rmion/xmrsig/party"
)

func TestPriority(t *testing.T) {
	all := party.Set{1, 2, 3, 4, 5}

	got, err := Priority{}.Select(0, all, 3)
	require.NoError(t, err)
	assert.Equal(t, party.Set{1, 2, 3}, got)

	got, err = Priority{Order: []party.ID{5, 3}}.Select(0, all, 3)
	require.NoError(t, err)
	assert.Equal(t, party.Set{1, 3, 5}, got)

	// Preferred but unavailable participants are skipped.
	got, err = Priority{Order: []party.ID{5, 3}}.Select(0, party.Set{1, 2, 4, 5}, 3)
	require.NoError(t, err)
	assert.Equal(t, party.Set{1, 2, 5}, got)
}

func TestRoundRobin(t *testing.T) {
	all := party.Set{1, 2, 3, 4}
	rr := &RoundRobin{}
	want := []party.Set{{1, 2, 3}, {2, 3, 4}, {1, 3, 4}, {1, 2, 4}, {1, 2, 3}}
	for i, w := range want {
		got, err := rr.Select(i, all, 3)
		require.NoError(t, err)
		assert.Equal(t, w, got, "call %d", i)
	}
}

func TestSelectInsufficient(t *testing.T) {
	for name, s := range map[string]Selector{"priority": Priority{}, "round-robin": &RoundRobin{}} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Select(0, party.Set{1, 4}, 3)
			require.ErrorIs(t, err, errs.InsufficientParticipants)
			assert.Equal(t, party.Set{1, 4}, errs.Participants(err))
		})
	}
}

func TestSelectorFor(t *testing.T) {
	cfg := config.Default()
	cfg.Priority = []party.ID{2}
	s, err := SelectorFor(&cfg)
	require.NoError(t, err)
	assert.Equal(t, Priority{Order: []party.ID{2}}, s)

	cfg.Selection = config.SelectRoundRobin
	s, err = SelectorFor(&cfg)
	require.NoError(t, err)
	assert.IsType(t, &RoundRobin{}, s)

	cfg.Selection = "random"
	_, err = SelectorFor(&cfg)
	require.Error(t, err)
}
