package spacetoken

import (
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpaceTokenAccount_Layout(t *testing.T) {
	assert.Equal(t, 244, SpaceTokenAccountSize)
	assert.Equal(t, 183, MaxSpaceTokenAccountMetadataLength)
	assert.Equal(t, []byte{144, 203, 77, 183, 92, 27, 8, 5}, SpaceTokenAccountDiscriminator)
	assert.Len(t, PROGRAM_ID, ed25519.PublicKeySize)
}

func TestSpaceTokenAccount_RoundTrip(t *testing.T) {
	authority, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	expected := &SpaceTokenAccount{
		Name:      "SpaceNexus Token",
		Symbol:    "SPACE",
		Uri:       "https://spacenexus.example/token.json",
		Decimals:  9,
		Authority: authority,
		Supply:    1_000_000_000,
	}

	data, err := expected.Marshal()
	require.NoError(t, err)
	require.Len(t, data, SpaceTokenAccountSize)
	assert.Equal(t, SpaceTokenAccountDiscriminator, data[:8])

	var actual SpaceTokenAccount
	require.NoError(t, actual.Unmarshal(data))
	assert.Equal(t, expected, &actual)
}

func TestSpaceTokenAccount_Capacity(t *testing.T) {
	authority, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	record := &SpaceTokenAccount{
		Name:      strings.Repeat("n", 100),
		Symbol:    strings.Repeat("s", 3),
		Uri:       strings.Repeat("u", 80),
		Authority: authority,
	}
	assert.Equal(t, SpaceTokenAccountSize, record.Size())

	data, err := record.Marshal()
	require.NoError(t, err)

	var decoded SpaceTokenAccount
	require.NoError(t, decoded.Unmarshal(data))
	assert.Equal(t, record.Uri, decoded.Uri)

	record.Uri += "u"
	_, err = record.Marshal()
	assert.Equal(t, ErrAccountDataTooLarge, err)
}

func TestSpaceTokenAccount_InvalidData(t *testing.T) {
	authority, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	record := &SpaceTokenAccount{Name: "a", Symbol: "b", Uri: "c", Authority: authority}
	data, err := record.Marshal()
	require.NoError(t, err)

	var decoded SpaceTokenAccount
	assert.Equal(t, ErrInvalidAccountData, decoded.Unmarshal(data[:10]))
	assert.Equal(t, ErrInvalidAccountData, decoded.Unmarshal(append(data, 0)))

	corrupted := append([]byte{}, data...)
	corrupted[0] ^= 0xff
	assert.Equal(t, ErrInvalidAccountData, decoded.Unmarshal(corrupted))

	corrupted = append([]byte{}, data...)
	corrupted[8] = 0xff
	assert.Equal(t, ErrInvalidAccountData, decoded.Unmarshal(corrupted))

	corrupted = append([]byte{}, data...)
	corrupted[12] = 0xff
	assert.Equal(t, ErrInvalidStringEncoding, decoded.Unmarshal(corrupted))

	_, err = (&SpaceTokenAccount{}).Marshal()
	assert.Equal(t, ErrInvalidAccountData, err)
}

func TestSpaceTokenAccount_MarshalRejectsInvalidUTF8(t *testing.T) {
	authority, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	for _, record := range []*SpaceTokenAccount{
		{Name: "bad\xff", Authority: authority},
		{Symbol: "\xc3\x28", Authority: authority},
		{Uri: "\xed\xa0\x80", Authority: authority},
	} {
		_, err := record.Marshal()
		assert.Equal(t, ErrInvalidStringEncoding, err)
	}

	_, err = (&SpaceTokenAccount{Name: "Space 🚀", Authority: authority}).Marshal()
	assert.NoError(t, err)
}

func TestGetSpaceTokenAddress(t *testing.T) {
	mint, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	other, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	address, bump, err := GetSpaceTokenAddress(&GetSpaceTokenAddressArgs{Mint: mint})
	require.NoError(t, err)
	assert.Len(t, address, ed25519.PublicKeySize)

	again, againBump, err := GetSpaceTokenAddress(&GetSpaceTokenAddressArgs{Mint: mint})
	require.NoError(t, err)
	assert.Equal(t, address, again)
	assert.Equal(t, bump, againBump)

	different, _, err := GetSpaceTokenAddress(&GetSpaceTokenAddressArgs{Mint: other})
	require.NoError(t, err)
	assert.NotEqual(t, address, different)
}
