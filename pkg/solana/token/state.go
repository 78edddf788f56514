package token

import (
	"crypto/ed25519"

	"github.com/spacenexus/spacetoken-server/pkg/solana/binary"
)

type AccountState byte

const (
	AccountStateUninitialized AccountState = iota
	AccountStateInitialized
	AccountStateFrozen
)

// Reference: https://github.com/solana-labs/solana-program-library/blob/11b1e3eefdd4e523768d63f7c70a7aa391ea0d02/token/program/src/state.rs#L15
const MintSize = 82

// Reference: https://github.com/solana-labs/solana-program-library/blob/11b1e3eefdd4e523768d63f7c70a7aa391ea0d02/token/program/src/state.rs#L125
const AccountSize = 165

// Mint is the SPL mint layout.
type Mint struct {
	// Unset once the supply is fixed.
	MintAuthority   ed25519.PublicKey
	Supply          uint64
	Decimals        byte
	IsInitialized   bool
	FreezeAuthority ed25519.PublicKey
}

func (m *Mint) Marshal() []byte {
	b := make([]byte, MintSize)

	e := binary.NewEncoder(b)
	e.OptionalKey(m.MintAuthority)
	e.Uint64(m.Supply)
	e.Uint8(m.Decimals)
	e.Bool(m.IsInitialized)
	e.OptionalKey(m.FreezeAuthority)

	return b
}

func (m *Mint) Unmarshal(b []byte) bool {
	if len(b) != MintSize {
		return false
	}

	d := binary.NewDecoder(b)
	*m = Mint{
		MintAuthority:   d.OptionalKey(),
		Supply:          d.Uint64(),
		Decimals:        d.Uint8(),
		IsInitialized:   d.Bool(),
		FreezeAuthority: d.OptionalKey(),
	}
	return d.Err() == nil
}

// Account is the SPL token account layout.
type Account struct {
	Mint   ed25519.PublicKey
	Owner  ed25519.PublicKey
	Amount uint64

	// Delegate may move up to DelegatedAmount on behalf of Owner.
	Delegate ed25519.PublicKey
	State    AccountState

	// Set for wrapped SOL accounts, holding the rent exempt reserve.
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  ed25519.PublicKey
}

func (a *Account) Marshal() []byte {
	b := make([]byte, AccountSize)

	e := binary.NewEncoder(b)
	e.Key(a.Mint)
	e.Key(a.Owner)
	e.Uint64(a.Amount)
	e.OptionalKey(a.Delegate)
	e.Uint8(byte(a.State))
	e.OptionalUint64(a.IsNative)
	e.Uint64(a.DelegatedAmount)
	e.OptionalKey(a.CloseAuthority)

	return b
}

func (a *Account) Unmarshal(b []byte) bool {
	if len(b) != AccountSize {
		return false
	}

	d := binary.NewDecoder(b)
	*a = Account{
		Mint:            d.Key(),
		Owner:           d.Key(),
		Amount:          d.Uint64(),
		Delegate:        d.OptionalKey(),
		State:           AccountState(d.Uint8()),
		IsNative:        d.OptionalUint64(),
		DelegatedAmount: d.Uint64(),
		CloseAuthority:  d.OptionalKey(),
	}
	return d.Err() == nil
}
