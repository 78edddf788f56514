package token

import (
	"crypto/ed25519"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacenexus/spacetoken-server/pkg/solana"
	"github.com/spacenexus/spacetoken-server/pkg/solana/system"
)

func TestGetCommand_Error(t *testing.T) {
	keys := generateKeys(t, 4)

	// invalid program
	cmd, err := GetCommand(solana.NewTransaction(keys[0], solana.NewInstruction(keys[1], []byte{})).Message, 0)
	assert.Equal(t, CommandUnknown, cmd)
	assert.Equal(t, solana.ErrIncorrectProgram, err)

	// no data
	cmd, err = GetCommand(solana.NewTransaction(keys[0], solana.NewInstruction(ProgramKey, []byte{})).Message, 0)
	assert.Equal(t, CommandUnknown, cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing data")
}

func TestInitializeMint(t *testing.T) {
	keys := generateKeys(t, 4)

	instruction := InitializeMint(keys[0], 9, keys[1], keys[2])

	require.Len(t, instruction.Data, 67)
	assert.EqualValues(t, CommandInitializeMint, instruction.Data[0])
	assert.EqualValues(t, 9, instruction.Data[1])
	assert.EqualValues(t, keys[1], instruction.Data[2:34])
	assert.EqualValues(t, 1, instruction.Data[34])
	assert.EqualValues(t, keys[2], instruction.Data[35:])

	require.Len(t, instruction.Accounts, 2)
	assert.False(t, instruction.Accounts[0].IsSigner)
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.Equal(t, system.RentSysVar, instruction.Accounts[1].PublicKey)

	decompiled, err := DecompileInitializeMint(solana.NewTransaction(keys[3], instruction).Message, 0)
	require.NoError(t, err)
	assert.Equal(t, keys[0], decompiled.Mint)
	assert.EqualValues(t, 9, decompiled.Decimals)
	assert.Equal(t, keys[1], decompiled.MintAuthority)
	assert.Equal(t, keys[2], decompiled.FreezeAuthority)

	cmd, err := GetCommand(solana.NewTransaction(keys[3], instruction).Message, 0)
	require.NoError(t, err)
	assert.Equal(t, CommandInitializeMint, cmd)
}

func TestInitializeMint_NoFreezeAuthority(t *testing.T) {
	keys := generateKeys(t, 3)

	instruction := InitializeMint(keys[0], 6, keys[1], nil)
	require.Len(t, instruction.Data, 35)
	assert.EqualValues(t, 0, instruction.Data[34])

	decompiled, err := DecompileInitializeMint(solana.NewTransaction(keys[2], instruction).Message, 0)
	require.NoError(t, err)
	assert.Equal(t, keys[1], decompiled.MintAuthority)
	assert.Nil(t, decompiled.FreezeAuthority)

	instruction.Data = instruction.Data[:20]
	_, err = DecompileInitializeMint(solana.NewTransaction(keys[2], instruction).Message, 0)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid data size"))

	instruction.Accounts = instruction.Accounts[:1]
	_, err = DecompileInitializeMint(solana.NewTransaction(keys[2], instruction).Message, 0)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid number of accounts"))

	instruction.Data[0] = byte(CommandMintTo)
	_, err = DecompileInitializeMint(solana.NewTransaction(keys[2], instruction).Message, 0)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)
}

func TestInitializeAccount(t *testing.T) {
	keys := generateKeys(t, 4)

	instruction := InitializeAccount(keys[0], keys[1], keys[2])

	assert.Equal(t, []byte{1}, instruction.Data)
	assert.False(t, instruction.Accounts[0].IsSigner)
	assert.True(t, instruction.Accounts[0].IsWritable)
	for i := 1; i < 4; i++ {
		assert.False(t, instruction.Accounts[i].IsSigner)
		assert.False(t, instruction.Accounts[i].IsWritable)
	}

	decompiled, err := DecompileInitializeAccount(solana.NewTransaction(keys[3], instruction).Message, 0)
	require.NoError(t, err)
	assert.Equal(t, keys[0], decompiled.Account)
	assert.Equal(t, keys[1], decompiled.Mint)
	assert.Equal(t, keys[2], decompiled.Owner)

	instruction.Accounts[3].PublicKey = keys[3]
	_, err = DecompileInitializeAccount(solana.NewTransaction(keys[3], instruction).Message, 0)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid rent program"))

	instruction.Accounts = instruction.Accounts[:2]
	_, err = DecompileInitializeAccount(solana.NewTransaction(keys[3], instruction).Message, 0)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid number of accounts"))

	instruction.Data = nil
	_, err = DecompileInitializeAccount(solana.NewTransaction(keys[3], instruction).Message, 0)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	instruction.Program = keys[3]
	_, err = DecompileInitializeAccount(solana.NewTransaction(keys[3], instruction).Message, 0)
	assert.Equal(t, solana.ErrIncorrectProgram, err)
}

func TestMintTo(t *testing.T) {
	keys := generateKeys(t, 4)

	instruction := MintTo(keys[0], keys[1], keys[2], 123456789)

	expectedAmount := make([]byte, 8)
	binary.LittleEndian.PutUint64(expectedAmount, 123456789)
	assert.EqualValues(t, CommandMintTo, instruction.Data[0])
	assert.Equal(t, expectedAmount, instruction.Data[1:])

	require.Len(t, instruction.Accounts, 3)
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.True(t, instruction.Accounts[1].IsWritable)
	assert.False(t, instruction.Accounts[2].IsWritable)
	assert.True(t, instruction.Accounts[2].IsSigner)

	decompiled, err := DecompileMintTo(solana.NewTransaction(keys[3], instruction).Message, 0)
	require.NoError(t, err)
	assert.Equal(t, keys[0], decompiled.Mint)
	assert.Equal(t, keys[1], decompiled.Destination)
	assert.Equal(t, keys[2], decompiled.Authority)
	assert.EqualValues(t, 123456789, decompiled.Amount)

	instruction.Data = instruction.Data[:5]
	_, err = DecompileMintTo(solana.NewTransaction(keys[3], instruction).Message, 0)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid data size"))

	_, err = DecompileMintTo(solana.NewTransaction(keys[3], instruction).Message, 1)
	assert.Error(t, err)
}

func generateKeys(t *testing.T, amount int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, amount)

	for i := 0; i < amount; i++ {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)

		keys[i] = pub
	}

	return keys
}
