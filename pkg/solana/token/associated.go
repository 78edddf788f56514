package token

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/spacenexus/spacetoken-server/pkg/solana"
	"github.com/spacenexus/spacetoken-server/pkg/solana/system"
)

// AssociatedTokenAccountProgramKey is ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL.
var AssociatedTokenAccountProgramKey = ed25519.PublicKey{140, 151, 37, 143, 78, 36, 137, 241, 187, 61, 16, 41, 20, 142, 13, 131, 11, 90, 19, 153, 218, 255, 16, 132, 4, 142, 123, 216, 219, 233, 248, 89}

// Account positions in a create associated account instruction.
const (
	associatedSubsidizerIndex = iota
	associatedAddressIndex
	associatedOwnerIndex
	associatedMintIndex
	associatedSystemProgramIndex
	associatedTokenProgramIndex
	associatedRentIndex
	associatedAccountCount
)

// GetAssociatedAccount derives the canonical token account that holds mint
// on behalf of wallet.
//
// Reference: https://spl.solana.com/associated-token-account#finding-the-associated-token-account-address
func GetAssociatedAccount(wallet, mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	return solana.FindProgramAddress(AssociatedTokenAccountProgramKey, wallet, ProgramKey, mint)
}

// CreateAssociatedTokenAccount returns the instruction creating wallet's
// associated account for mint, paid for by subsidizer, along with its address.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/0639953c7dd0f5228c3ceda3ba68fece3b46ff1d/associated-token-account/program/src/lib.rs#L54
func CreateAssociatedTokenAccount(subsidizer, wallet, mint ed25519.PublicKey) (solana.Instruction, ed25519.PublicKey, error) {
	address, err := GetAssociatedAccount(wallet, mint)
	if err != nil {
		return solana.Instruction{}, nil, errors.Wrap(err, "error deriving associated account")
	}

	accounts := make([]solana.AccountMeta, associatedAccountCount)
	accounts[associatedSubsidizerIndex] = solana.NewAccountMeta(subsidizer, true)
	accounts[associatedAddressIndex] = solana.NewAccountMeta(address, false)
	accounts[associatedOwnerIndex] = solana.NewReadonlyAccountMeta(wallet, false)
	accounts[associatedMintIndex] = solana.NewReadonlyAccountMeta(mint, false)
	accounts[associatedSystemProgramIndex] = solana.NewReadonlyAccountMeta(system.ProgramKey, false)
	accounts[associatedTokenProgramIndex] = solana.NewReadonlyAccountMeta(ProgramKey, false)
	accounts[associatedRentIndex] = solana.NewReadonlyAccountMeta(system.RentSysVar, false)

	return solana.NewInstruction(AssociatedTokenAccountProgramKey, nil, accounts...), address, nil
}

type DecompiledCreateAssociatedAccount struct {
	Subsidizer ed25519.PublicKey
	Address    ed25519.PublicKey
	Owner      ed25519.PublicKey
	Mint       ed25519.PublicKey
}

func DecompileCreateAssociatedAccount(m solana.Message, index int) (*DecompiledCreateAssociatedAccount, error) {
	if index < 0 || index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	ix := m.Instructions[index]
	if !bytes.Equal(m.Accounts[ix.ProgramIndex], AssociatedTokenAccountProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}
	if len(ix.Data) != 0 {
		return nil, errors.New("unexpected data")
	}
	if len(ix.Accounts) != associatedAccountCount {
		return nil, errors.Errorf("invalid number of accounts: %d (expected %d)", len(ix.Accounts), associatedAccountCount)
	}

	account := func(i int) ed25519.PublicKey { return m.Accounts[ix.Accounts[i]] }
	for _, fixed := range []struct {
		index int
		key   ed25519.PublicKey
		name  string
	}{
		{associatedSystemProgramIndex, system.ProgramKey, "system program"},
		{associatedTokenProgramIndex, ProgramKey, "token program"},
		{associatedRentIndex, system.RentSysVar, "rent sysvar"},
	} {
		if !bytes.Equal(account(fixed.index), fixed.key) {
			return nil, errors.Errorf("%s key mismatch", fixed.name)
		}
	}

	return &DecompiledCreateAssociatedAccount{
		Subsidizer: account(associatedSubsidizerIndex),
		Address:    account(associatedAddressIndex),
		Owner:      account(associatedOwnerIndex),
		Mint:       account(associatedMintIndex),
	}, nil
}
