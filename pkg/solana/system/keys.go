package system

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
)

var (
	// ProgramKey is the native system program, which owns new accounts.
	ProgramKey = mustPublicKey("11111111111111111111111111111111")

	// RentSysVar is read by programs that check rent exemption on init.
	//
	// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/sysvar/rent.rs#L11
	RentSysVar = mustPublicKey("SysvarRent111111111111111111111111111111111")
)

func mustPublicKey(encoded string) ed25519.PublicKey {
	decoded, err := base58.Decode(encoded)
	if err != nil || len(decoded) != ed25519.PublicKeySize {
		panic("system: invalid well-known key " + encoded)
	}
	return decoded
}
