package token

import (
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacenexus/spacetoken-server/pkg/solana"
	"github.com/spacenexus/spacetoken-server/pkg/solana/system"
)

func TestGetAssociatedAccount(t *testing.T) {
	// Values generated from the spl reference implementation.
	wallet, err := base58.Decode("4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM")
	require.NoError(t, err)
	mint, err := base58.Decode("8opHzTAnfzRpPEx21XtnrVTX28YQuCpAjcn1PczScKh")
	require.NoError(t, err)
	addr, err := base58.Decode("H7MQwEzt97tUJryocn3qaEoy2ymWstwyEk1i9Yv3EmuZ")
	require.NoError(t, err)

	actual, err := GetAssociatedAccount(wallet, mint)
	require.NoError(t, err)
	assert.EqualValues(t, addr, actual)
}

func TestCreateAssociatedAccount(t *testing.T) {
	keys := generateKeys(t, 3)

	expectedAddr, err := GetAssociatedAccount(keys[1], keys[2])
	require.NoError(t, err)

	instruction, addr, err := CreateAssociatedTokenAccount(keys[0], keys[1], keys[2])
	require.NoError(t, err)
	assert.Equal(t, expectedAddr, addr)
	assert.Empty(t, instruction.Data)
	require.Len(t, instruction.Accounts, 7)

	decompiled, err := DecompileCreateAssociatedAccount(solana.NewTransaction(keys[0], instruction).Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, keys[0], decompiled.Subsidizer)
	assert.EqualValues(t, addr, decompiled.Address)
	assert.EqualValues(t, keys[1], decompiled.Owner)
	assert.EqualValues(t, keys[2], decompiled.Mint)

	instruction.Accounts[4].PublicKey = keys[0]
	_, err = DecompileCreateAssociatedAccount(solana.NewTransaction(keys[0], instruction).Message, 0)
	assert.Error(t, err)

	instruction.Accounts[4].PublicKey = system.ProgramKey
	instruction.Program = keys[0]
	_, err = DecompileCreateAssociatedAccount(solana.NewTransaction(keys[0], instruction).Message, 0)
	assert.Equal(t, solana.ErrIncorrectProgram, err)
}
