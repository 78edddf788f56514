package token

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filledKey(b byte) ed25519.PublicKey {
	return bytes.Repeat([]byte{b}, ed25519.PublicKeySize)
}

func TestAccount_UnmarshalOnChain(t *testing.T) {
	data, err := hex.DecodeString("118a08c9d4cc46c576282e0daf050bbdb04f03313e35e5db3f3def69fa1eeec42b15a9cd4bef2cd809e464570d2a6cbd9bcc64e32ea4ebbcf748757bbb3dd5bd000084e2506ce67c000000000000000000000000000000000000000000000000000000000000000000000000010000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)

	mint, err := base58.Decode("2BU1Xgyzqixhjaq9Pa5cNsaa1gSejLeNtDaDRv29qoZm")
	require.NoError(t, err)

	var a Account
	require.True(t, a.Unmarshal(data))
	assert.Equal(t, mint, []byte(a.Mint))
	assert.Equal(t, uint64(9e13*1e5), a.Amount)
	assert.Equal(t, AccountStateInitialized, a.State)
	assert.Nil(t, a.Delegate)
	assert.Nil(t, a.IsNative)
	assert.Nil(t, a.CloseAuthority)

	assert.Equal(t, data, a.Marshal())
}

func TestAccount_RoundTrip(t *testing.T) {
	isNative := uint64(2)
	for _, expected := range []Account{
		{
			Mint:   filledKey(1),
			Owner:  filledKey(2),
			Amount: 10,
			State:  AccountStateInitialized,
		},
		{
			Mint:            filledKey(1),
			Owner:           filledKey(2),
			Amount:          10,
			Delegate:        filledKey(3),
			State:           AccountStateFrozen,
			IsNative:        &isNative,
			DelegatedAmount: 4,
			CloseAuthority:  filledKey(5),
		},
	} {
		b := expected.Marshal()
		require.Len(t, b, AccountSize)

		var actual Account
		require.True(t, actual.Unmarshal(b))
		assert.Equal(t, expected, actual)
	}

	var a Account
	assert.False(t, a.Unmarshal(make([]byte, AccountSize+1)))
}

func TestMint_RoundTrip(t *testing.T) {
	expected := Mint{
		MintAuthority:   filledKey(4),
		Supply:          1_000_000,
		Decimals:        9,
		IsInitialized:   true,
		FreezeAuthority: filledKey(4),
	}

	b := expected.Marshal()
	require.Len(t, b, MintSize)

	var actual Mint
	require.True(t, actual.Unmarshal(b))
	assert.Equal(t, expected, actual)

	fixedSupply := Mint{Supply: 5, Decimals: 2, IsInitialized: true}
	var decoded Mint
	require.True(t, decoded.Unmarshal(fixedSupply.Marshal()))
	assert.Equal(t, fixedSupply, decoded)

	assert.False(t, decoded.Unmarshal(b[:MintSize-1]))
}
