package system

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/spacenexus/spacetoken-server/pkg/solana"
)

const commandCreateAccount uint32 = 0

// Layout of CreateAccount data: u32 command, u64 lamports, u64 space, owner.
const (
	createAccountLamportsOffset = 4
	createAccountSizeOffset     = createAccountLamportsOffset + 8
	createAccountOwnerOffset    = createAccountSizeOffset + 8
	createAccountDataSize       = createAccountOwnerOffset + ed25519.PublicKeySize
)

// CreateAccount funds and allocates a new account owned by owner. Both funder
// and address must sign.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L58-L72
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	data := make([]byte, createAccountDataSize)
	binary.LittleEndian.PutUint32(data, commandCreateAccount)
	binary.LittleEndian.PutUint64(data[createAccountLamportsOffset:], lamports)
	binary.LittleEndian.PutUint64(data[createAccountSizeOffset:], size)
	copy(data[createAccountOwnerOffset:], owner)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}

type DecompiledCreateAccount struct {
	Funder  ed25519.PublicKey
	Address ed25519.PublicKey

	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

func DecompileCreateAccount(m solana.Message, index int) (*DecompiledCreateAccount, error) {
	if index < 0 || index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}
	ix := m.Instructions[index]

	if !bytes.Equal(m.Accounts[ix.ProgramIndex], ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}
	if len(ix.Data) < 4 || binary.LittleEndian.Uint32(ix.Data) != commandCreateAccount {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(ix.Accounts) != 2 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(ix.Accounts))
	}
	if len(ix.Data) != createAccountDataSize {
		return nil, errors.Errorf("invalid instruction data size: %d", len(ix.Data))
	}

	return &DecompiledCreateAccount{
		Funder:   m.Accounts[ix.Accounts[0]],
		Address:  m.Accounts[ix.Accounts[1]],
		Lamports: binary.LittleEndian.Uint64(ix.Data[createAccountLamportsOffset:]),
		Size:     binary.LittleEndian.Uint64(ix.Data[createAccountSizeOffset:]),
		Owner:    append(ed25519.PublicKey(nil), ix.Data[createAccountOwnerOffset:]...),
	}, nil
}
