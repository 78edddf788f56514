package solana

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"
)

var (
	ErrIncorrectProgram     = errors.New("incorrect program")
	ErrIncorrectInstruction = errors.New("incorrect instruction")
)

// AccountMeta is an account referenced by an instruction, along with the
// permissions the instruction needs on it.
type AccountMeta struct {
	PublicKey  ed25519.PublicKey
	IsSigner   bool
	IsWritable bool

	isPayer   bool
	isProgram bool
}

func NewAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{PublicKey: pub, IsSigner: isSigner, IsWritable: true}
}

func NewReadonlyAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{PublicKey: pub, IsSigner: isSigner}
}

// compareAccountMeta orders accounts the way a message lists them: the fee
// payer, then signers before non-signers, writable before readonly within
// each group, and invoked programs last. Remaining ties break on key bytes.
//
// Reference: https://docs.solana.com/transaction#account-addresses-format
func compareAccountMeta(a, b AccountMeta) int {
	for _, rule := range [...]struct{ a, b bool }{
		{a.isPayer, b.isPayer},
		{!a.isProgram, !b.isProgram},
		{a.IsSigner, b.IsSigner},
		{a.IsWritable, b.IsWritable},
	} {
		if rule.a != rule.b {
			if rule.a {
				return -1
			}
			return 1
		}
	}
	return bytes.Compare(a.PublicKey, b.PublicKey)
}

// Instruction is an uncompiled program invocation.
type Instruction struct {
	Program  ed25519.PublicKey
	Accounts []AccountMeta
	Data     []byte
}

func NewInstruction(program ed25519.PublicKey, data []byte, accounts ...AccountMeta) Instruction {
	return Instruction{Program: program, Data: data, Accounts: accounts}
}

// CompiledInstruction references its program and accounts by index into
// Message.Accounts.
type CompiledInstruction struct {
	ProgramIndex byte
	Accounts     []byte
	Data         []byte
}
