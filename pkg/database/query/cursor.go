package query

import (
	"encoding/binary"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

const cursorSize = 8

// ErrInvalidCursor is returned when an externally supplied cursor can't be
// decoded into a record id.
var ErrInvalidCursor = errors.New("cursor is invalid")

// Cursor is the big endian encoding of a record id that paging resumes after.
type Cursor []byte

func ToCursor(id uint64) Cursor {
	var b [cursorSize]byte
	binary.BigEndian.PutUint64(b[:], id)
	return b[:]
}

// ParseCursor decodes the base58 form produced by Cursor.ToBase58.
func ParseCursor(value string) (Cursor, error) {
	decoded, err := base58.Decode(value)
	if err != nil || len(decoded) != cursorSize {
		return nil, ErrInvalidCursor
	}
	return decoded, nil
}

func (c Cursor) ToUint64() uint64 {
	if len(c) != cursorSize {
		return 0
	}
	return binary.BigEndian.Uint64(c)
}

func (c Cursor) ToBase58() string {
	return base58.Encode(c)
}
