package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"math"

	"github.com/jdgcs/ed25519/edwards25519"
	"github.com/pkg/errors"
)

const (
	maxSeeds      = 16
	maxSeedLength = 32

	programAddressMarker = "ProgramDerivedAddress"
)

var (
	ErrTooManySeeds          = errors.New("too many seeds")
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")
	ErrInvalidPublicKey      = errors.New("invalid public key")
	ErrNoViableBumpSeed      = errors.New("no viable bump seed")
)

// CreateProgramAddress derives sha256(seeds || program || marker). The result
// must not be a point on the ed25519 curve, so that no private key exists for
// it. ErrInvalidPublicKey is returned when it is.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L158
func CreateProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	if len(seeds) > maxSeeds {
		return nil, ErrTooManySeeds
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > maxSeedLength {
			return nil, ErrMaxSeedLengthExceeded
		}
		h.Write(seed)
	}
	h.Write(program)
	h.Write([]byte(programAddressMarker))

	var candidate [ed25519.PublicKeySize]byte
	copy(candidate[:], h.Sum(nil))
	if isOnCurve(&candidate) {
		return nil, ErrInvalidPublicKey
	}
	return candidate[:], nil
}

// isOnCurve reports whether b decompresses to a valid Edwards point. The
// standard library keeps its point type internal, hence edwards25519.
func isOnCurve(b *[ed25519.PublicKeySize]byte) bool {
	var point edwards25519.ExtendedGroupElement
	return point.FromBytes(b)
}

// FindProgramAddressAndBump searches bump seeds from 255 downwards and returns
// the first off-curve address along with its bump.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L234
func FindProgramAddressAndBump(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, uint8, error) {
	withBump := append(append(make([][]byte, 0, len(seeds)+1), seeds...), nil)
	for bump := math.MaxUint8; bump > 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}

		address, err := CreateProgramAddress(program, withBump...)
		switch err {
		case nil:
			return address, uint8(bump), nil
		case ErrInvalidPublicKey:
		default:
			return nil, 0, err
		}
	}
	return nil, 0, ErrNoViableBumpSeed
}

func FindProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	address, _, err := FindProgramAddressAndBump(program, seeds...)
	return address, err
}
