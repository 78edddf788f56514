package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"slices"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

const (
	// MaxTransactionSize taken from: https://github.com/solana-labs/solana/blob/39b3ac6a8d29e14faa1de73d8b46d390ad41797b/sdk/src/packet.rs#L9-L13
	MaxTransactionSize = 1232
)

var (
	ErrTransactionTooLarge = errors.New("transaction exceeds max size")
)

type Signature [ed25519.SignatureSize]byte
type Blockhash [sha256.Size]byte

type Header struct {
	NumSignatures     byte
	NumReadonlySigned byte
	NumReadOnly       byte
}

// Message is a legacy transaction message. Versioned messages and address
// lookup tables are not supported.
type Message struct {
	Header          Header
	Accounts        []ed25519.PublicKey
	RecentBlockhash Blockhash
	Instructions    []CompiledInstruction
}

type Transaction struct {
	Signatures []Signature
	Message    Message
}

// NewTransaction compiles the instructions into an unsigned legacy transaction
// paid for by payer.
func NewTransaction(payer ed25519.PublicKey, instructions ...Instruction) Transaction {
	accounts := []AccountMeta{
		{
			PublicKey:  payer,
			IsSigner:   true,
			IsWritable: true,
			isPayer:    true,
		},
	}

	for _, i := range instructions {
		accounts = append(accounts, AccountMeta{
			PublicKey: i.Program,
			isProgram: true,
		})
		accounts = append(accounts, i.Accounts...)
	}

	accounts = mergeDuplicates(accounts)
	slices.SortFunc(accounts, compareAccountMeta)

	var m Message
	for _, account := range accounts {
		m.Accounts = append(m.Accounts, account.PublicKey)

		if account.IsSigner {
			m.Header.NumSignatures++

			if !account.IsWritable {
				m.Header.NumReadonlySigned++
			}
		} else if !account.IsWritable {
			m.Header.NumReadOnly++
		}
	}

	for _, i := range instructions {
		c := CompiledInstruction{
			ProgramIndex: byte(indexOf(m.Accounts, i.Program)),
			Data:         i.Data,
		}

		for _, a := range i.Accounts {
			c.Accounts = append(c.Accounts, byte(indexOf(m.Accounts, a.PublicKey)))
		}

		m.Instructions = append(m.Instructions, c)
	}

	for i := range m.Accounts {
		if len(m.Accounts[i]) == 0 {
			m.Accounts[i] = make([]byte, ed25519.PublicKeySize)
		}
	}

	return Transaction{
		Signatures: make([]Signature, m.Header.NumSignatures),
		Message:    m,
	}
}

func (t *Transaction) Signature() []byte {
	return t.Signatures[0][:]
}

func (t *Transaction) String() string {
	var sb strings.Builder
	sb.WriteString("Signatures:\n")
	for i, sig := range t.Signatures {
		fmt.Fprintf(&sb, "  %d: %s\n", i, base58.Encode(sig[:]))
	}

	h := t.Message.Header
	fmt.Fprintf(&sb, "Message:\n  Header: %d/%d/%d\n  Accounts:\n", h.NumSignatures, h.NumReadonlySigned, h.NumReadOnly)
	for i, account := range t.Message.Accounts {
		fmt.Fprintf(&sb, "    %d: %s\n", i, base58.Encode(account))
	}

	sb.WriteString("  Instructions:\n")
	for i, ix := range t.Message.Instructions {
		fmt.Fprintf(&sb, "    %d: program=%d accounts=%v data=%v\n", i, ix.ProgramIndex, ix.Accounts, ix.Data)
	}
	return sb.String()
}

func (t *Transaction) SetBlockhash(bh Blockhash) {
	t.Message.RecentBlockhash = bh
}

// Sign signs the message with each of the provided keys. Every key must
// belong to a signing account in the message.
func (t *Transaction) Sign(signers ...ed25519.PrivateKey) error {
	messageBytes := t.Message.Marshal()

	for _, s := range signers {
		pub := s.Public().(ed25519.PublicKey)
		index := indexOf(t.Message.Accounts, pub)
		if index < 0 {
			return errors.Errorf("signing account %s is not in the account list", base58.Encode(pub))
		}
		if index >= len(t.Signatures) {
			return errors.Errorf("signing account %s is not in the list of signers", base58.Encode(pub))
		}

		copy(t.Signatures[index][:], ed25519.Sign(s, messageBytes))
	}

	return nil
}

// IsFullySigned reports whether every required signature is present and valid.
func (t *Transaction) IsFullySigned() bool {
	messageBytes := t.Message.Marshal()
	for i, sig := range t.Signatures {
		if sig == (Signature{}) {
			return false
		}
		if !ed25519.Verify(t.Message.Accounts[i], messageBytes, sig[:]) {
			return false
		}
	}
	return true
}

// mergeDuplicates collapses repeated keys into their first occurrence with
// the union of their permissions.
func mergeDuplicates(accounts []AccountMeta) []AccountMeta {
	merged := make([]AccountMeta, 0, len(accounts))
	for _, account := range accounts {
		i := slices.IndexFunc(merged, func(m AccountMeta) bool {
			return bytes.Equal(m.PublicKey, account.PublicKey)
		})
		if i < 0 {
			merged = append(merged, account)
			continue
		}

		merged[i].IsSigner = merged[i].IsSigner || account.IsSigner
		merged[i].IsWritable = merged[i].IsWritable || account.IsWritable
		merged[i].isPayer = merged[i].isPayer || account.isPayer
	}
	return merged
}

func indexOf(keys []ed25519.PublicKey, key ed25519.PublicKey) int {
	return slices.IndexFunc(keys, func(k ed25519.PublicKey) bool {
		return bytes.Equal(k, key)
	})
}
