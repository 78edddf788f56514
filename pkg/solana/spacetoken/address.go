package spacetoken

import (
	"crypto/ed25519"

	"github.com/spacenexus/spacetoken-server/pkg/solana"
)

var (
	SpaceTokenPrefix = []byte("space_token")
)

type GetSpaceTokenAddressArgs struct {
	Mint ed25519.PublicKey
}

// GetSpaceTokenAddress derives the default record address for a mint.
func GetSpaceTokenAddress(args *GetSpaceTokenAddressArgs) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		PROGRAM_ID,
		SpaceTokenPrefix,
		args.Mint,
	)
}
