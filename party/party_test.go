package party

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSet(t *testing.T) {
	s, err := NewSet(4, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, Set{1, 3, 4}, s)
	assert.Equal(t, "{1,3,4}", s.String())

	_, err = NewSet(1, 2, 1)
	require.Error(t, err)
	_, err = NewSet(Coordinator, 1)
	require.Error(t, err)
}

func TestSetOps(t *testing.T) {
	s := Set{1, 2, 3, 5}
	assert.True(t, s.Contains(5))
	assert.False(t, s.Contains(4))
	assert.Equal(t, Set{1, 5}, s.Without(2, 3))
	assert.Equal(t, Set{1, 2, 3, 5}, s, "Without must not alias")
	assert.True(t, s.Equal(Set{1, 2, 3, 5}))
	assert.Equal(t, []byte{0, 2, 0, 1, 0, 7}, Set{1, 7}.Bytes())
}
