package pointer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Equal(t, "name", *String("name"))

	assert.Equal(t, "fallback", *StringOrDefault(nil, "fallback"))
	assert.Equal(t, "name", *StringOrDefault(String("name"), "fallback"))

	assert.Nil(t, StringIfValid(false, "name"))
	assert.Equal(t, "name", *StringIfValid(true, "name"))

	original := String("name")
	copied := StringCopy(original)
	assert.Equal(t, *original, *copied)
	assert.NotSame(t, original, copied)
	assert.Nil(t, StringCopy(nil))
}

func TestUint64(t *testing.T) {
	assert.EqualValues(t, 42, *Uint64(42))

	assert.EqualValues(t, 7, *Uint64OrDefault(nil, 7))
	assert.EqualValues(t, 42, *Uint64OrDefault(Uint64(42), 7))

	assert.Nil(t, Uint64IfValid(false, 42))
	assert.EqualValues(t, 42, *Uint64IfValid(true, 42))

	original := Uint64(42)
	copied := Uint64Copy(original)
	assert.Equal(t, *original, *copied)
	assert.NotSame(t, original, copied)
	assert.Nil(t, Uint64Copy(nil))
}
