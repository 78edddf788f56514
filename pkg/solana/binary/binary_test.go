package binary

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	key[0], key[31] = 1, 2
	amount := uint64(1 << 40)

	buf := make([]byte, 256)
	e := NewEncoder(buf)
	e.Bytes([]byte{9, 9})
	e.Key(key)
	e.OptionalKey(nil)
	e.OptionalKey(key)
	e.Uint8(7)
	e.Bool(true)
	e.Uint32(1234)
	e.Uint64(amount)
	e.OptionalUint64(nil)
	e.OptionalUint64(&amount)
	e.String("SPACE")

	d := NewDecoder(buf[:e.Offset()])
	assert.Equal(t, []byte{9, 9}, d.Bytes(2))
	assert.Equal(t, key, d.Key())
	assert.Nil(t, d.OptionalKey())
	assert.Equal(t, key, d.OptionalKey())
	assert.EqualValues(t, 7, d.Uint8())
	assert.True(t, d.Bool())
	assert.EqualValues(t, 1234, d.Uint32())
	assert.Equal(t, amount, d.Uint64())
	assert.Nil(t, d.OptionalUint64())
	require.NotNil(t, d.OptionalUint64())
	assert.Equal(t, "SPACE", d.String())
	require.NoError(t, d.Err())
	assert.Zero(t, d.Remaining())
}

func TestOptionLayout(t *testing.T) {
	buf := make([]byte, 36)
	NewEncoder(buf).OptionalKey(nil)
	assert.Equal(t, make([]byte, 36), buf)

	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	key[0] = 5
	NewEncoder(buf).OptionalKey(key)
	assert.Equal(t, []byte{1, 0, 0, 0, 5}, buf[:5])
}

func TestDecoder_ShortBufferIsSticky(t *testing.T) {
	d := NewDecoder([]byte{1, 2, 3})
	assert.Zero(t, d.Uint64())
	assert.Equal(t, ErrShortBuffer, d.Err())

	// Enough bytes remain, but the decoder has already failed.
	assert.Zero(t, d.Uint8())
	assert.Equal(t, ErrShortBuffer, d.Err())
}

func TestDecoder_String(t *testing.T) {
	d := NewDecoder([]byte{10, 0, 0, 0, 'a'})
	assert.Empty(t, d.String())
	assert.Equal(t, ErrShortBuffer, d.Err())

	d = NewDecoder([]byte{2, 0, 0, 0, 0xff, 0xfe})
	assert.Empty(t, d.String())
	assert.Equal(t, ErrInvalidUTF8, d.Err())

	d = NewDecoder([]byte{0xff, 0xff, 0xff, 0xff})
	assert.Empty(t, d.String())
	assert.Equal(t, ErrShortBuffer, d.Err())
}
