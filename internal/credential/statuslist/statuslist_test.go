package statuslist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	l := New(16)
	require.NoError(t, l.Set(0))
	require.NoError(t, l.Set(9))
	assert.ErrorIs(t, l.Set(16), ErrOutOfRange)

	assert.True(t, l.Test(0))
	assert.False(t, l.Test(1))
	assert.True(t, l.Test(9))
	assert.False(t, l.Test(100))
	assert.Equal(t, uint(2), l.Count())

	assert.Equal(t, []byte{0x80, 0x40}, l.Bytes())
}

func TestEncodeDecode(t *testing.T) {
	l := New(DefaultLength)
	for _, i := range []uint{3, 1000, DefaultLength - 1} {
		require.NoError(t, l.Set(i))
	}

	encoded, err := l.Encode()
	require.NoError(t, err)
	assert.Less(t, len(encoded), int(DefaultLength/8), "sparse lists compress well")

	back, err := Decode(encoded, DefaultLength)
	require.NoError(t, err)
	assert.Equal(t, l.Bytes(), back.Bytes())
	assert.True(t, back.Test(DefaultLength-1))

	_, err = Decode("not base64!", DefaultLength)
	assert.Error(t, err)
}

func TestFromBytesRejectsShortInput(t *testing.T) {
	_, err := FromBytes([]byte{0xff}, 16)
	assert.Error(t, err)

	l, err := FromBytes([]byte{0x01}, 0)
	require.NoError(t, err)
	assert.True(t, l.Test(7))
}
