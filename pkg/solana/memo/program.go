// Package memo builds and reads SPL memo instructions, which attach UTF-8
// text to a transaction.
package memo

import (
	"bytes"
	"crypto/ed25519"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/spacenexus/spacetoken-server/pkg/solana"
)

// ProgramKey is Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo.
var ProgramKey = ed25519.PublicKey{5, 74, 83, 80, 248, 93, 200, 130, 214, 20, 165, 86, 114, 120, 138, 41, 109, 223, 30, 171, 171, 208, 166, 6, 120, 136, 73, 50, 244, 238, 246, 160}

// ErrInvalidUTF8 is returned for memo data the program would reject.
var ErrInvalidUTF8 = errors.New("memo is not valid utf-8")

// Instruction builds a memo that requires no signers.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/master/memo/program/src/entrypoint.rs
func Instruction(text string) solana.Instruction {
	return solana.NewInstruction(ProgramKey, []byte(text))
}

// Tagged builds a memo reading "<prefix><tag>", which Tag reverses.
func Tagged(prefix, tag string) solana.Instruction {
	return Instruction(prefix + tag)
}

type DecompiledMemo struct {
	Data []byte
}

// Tag returns the text after prefix, if the memo starts with it.
func (m *DecompiledMemo) Tag(prefix string) (string, bool) {
	return strings.CutPrefix(string(m.Data), prefix)
}

func DecompileMemo(m solana.Message, index int) (*DecompiledMemo, error) {
	if index < 0 || index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	ix := m.Instructions[index]
	if !bytes.Equal(m.Accounts[ix.ProgramIndex], ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}
	if !utf8.Valid(ix.Data) {
		return nil, ErrInvalidUTF8
	}
	return &DecompiledMemo{Data: ix.Data}, nil
}
