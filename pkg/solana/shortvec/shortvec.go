// Package shortvec implements the compact-u16 length prefix used throughout
// the Solana wire format: little endian groups of 7 bits, with the high bit
// set on every byte except the last.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

const maxEncodedLen = 3

var (
	ErrLengthTooLarge  = errors.Errorf("shortvec: length exceeds %d", math.MaxUint16)
	ErrInvalidEncoding = errors.New("shortvec: invalid encoding")
)

// EncodeLen writes length to w and returns the number of bytes written.
func EncodeLen(w io.Writer, length int) (int, error) {
	if length < 0 || length > math.MaxUint16 {
		return 0, ErrLengthTooLarge
	}

	var buf [maxEncodedLen]byte
	n := 0
	for {
		buf[n] = byte(length & 0x7f)
		length >>= 7
		if length == 0 {
			n++
			break
		}
		buf[n] |= 0x80
		n++
	}
	return w.Write(buf[:n])
}

// DecodeLen reads a length written by EncodeLen.
func DecodeLen(r io.Reader) (int, error) {
	var (
		length int
		b      [1]byte
	)
	for i := 0; i < maxEncodedLen; i++ {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		length |= int(b[0]&0x7f) << (7 * i)
		if b[0]&0x80 == 0 {
			if length > math.MaxUint16 {
				return 0, ErrInvalidEncoding
			}
			return length, nil
		}
	}
	return 0, ErrInvalidEncoding
}
