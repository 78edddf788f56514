package spacetoken

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"unicode/utf8"

	"github.com/mr-tron/base58"

	"github.com/spacenexus/spacetoken-server/pkg/solana/binary"
)

const (
	// SpaceTokenAccountSize is the space allocated for every record. The
	// encoded record must never exceed it.
	SpaceTokenAccountSize = (8 + // discriminator
		32 + // authority
		4 + // string length prefix
		200) // metadata strings, decimals and supply

	minSpaceTokenAccountSize = (8 + // discriminator
		3*4 + // name, symbol, uri length prefixes
		1 + // decimals
		32 + // authority
		8) // supply

	// MaxSpaceTokenAccountMetadataLength is the combined byte length available
	// to name, symbol and uri.
	MaxSpaceTokenAccountMetadataLength = SpaceTokenAccountSize - minSpaceTokenAccountSize
)

var SpaceTokenAccountDiscriminator = accountDiscriminator("SpaceToken")

type SpaceTokenAccount struct {
	Name      string
	Symbol    string
	Uri       string
	Decimals  uint8
	Authority ed25519.PublicKey
	Supply    uint64
}

// Size returns the encoded size of the record.
func (obj *SpaceTokenAccount) Size() int {
	return minSpaceTokenAccountSize + len(obj.Name) + len(obj.Symbol) + len(obj.Uri)
}

// Marshal encodes the record into a buffer of exactly SpaceTokenAccountSize
// bytes, zero padded. ErrAccountDataTooLarge is returned when the record does
// not fit, and ErrInvalidStringEncoding when a string is not valid UTF-8.
func (obj *SpaceTokenAccount) Marshal() ([]byte, error) {
	for _, value := range []string{obj.Name, obj.Symbol, obj.Uri} {
		if !utf8.ValidString(value) {
			return nil, ErrInvalidStringEncoding
		}
	}
	if obj.Size() > SpaceTokenAccountSize {
		return nil, ErrAccountDataTooLarge
	}
	if len(obj.Authority) != ed25519.PublicKeySize {
		return nil, ErrInvalidAccountData
	}

	data := make([]byte, SpaceTokenAccountSize)

	e := binary.NewEncoder(data)
	e.Bytes(SpaceTokenAccountDiscriminator)
	e.String(obj.Name)
	e.String(obj.Symbol)
	e.String(obj.Uri)
	e.Uint8(obj.Decimals)
	e.Key(obj.Authority)
	e.Uint64(obj.Supply)

	return data, nil
}

// Unmarshal decodes a record. Trailing zero padding is ignored.
func (obj *SpaceTokenAccount) Unmarshal(data []byte) error {
	if len(data) < minSpaceTokenAccountSize || len(data) > SpaceTokenAccountSize {
		return ErrInvalidAccountData
	}

	d := binary.NewDecoder(data)
	if !bytes.Equal(d.Bytes(len(SpaceTokenAccountDiscriminator)), SpaceTokenAccountDiscriminator) {
		return ErrInvalidAccountData
	}

	decoded := SpaceTokenAccount{
		Name:      d.String(),
		Symbol:    d.String(),
		Uri:       d.String(),
		Decimals:  d.Uint8(),
		Authority: d.Key(),
		Supply:    d.Uint64(),
	}
	switch d.Err() {
	case nil:
		*obj = decoded
		return nil
	case binary.ErrInvalidUTF8:
		return ErrInvalidStringEncoding
	default:
		return ErrInvalidAccountData
	}
}

func (obj *SpaceTokenAccount) String() string {
	return fmt.Sprintf(
		"SpaceToken{name=%s,symbol=%s,uri=%s,decimals=%d,authority=%s,supply=%d}",
		obj.Name,
		obj.Symbol,
		obj.Uri,
		obj.Decimals,
		base58.Encode(obj.Authority),
		obj.Supply,
	)
}
