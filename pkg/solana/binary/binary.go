// Package binary encodes the little endian account layouts used by on-chain
// programs. Optional fields use the SPL COption form: a u32 tag followed by
// the value, with the value zeroed when absent.
package binary

import (
	"crypto/ed25519"
	"encoding/binary"
	"unicode/utf8"

	"github.com/pkg/errors"
)

const optionTagSize = 4

var (
	ErrShortBuffer = errors.New("buffer too short")
	ErrInvalidUTF8 = errors.New("string is not valid utf-8")
)

// Encoder writes fields sequentially into a buffer the caller has sized.
// Writing past the end panics.
type Encoder struct {
	buf []byte
	off int
}

func NewEncoder(buf []byte) *Encoder {
	return &Encoder{buf: buf}
}

// Offset is the number of bytes written so far.
func (e *Encoder) Offset() int {
	return e.off
}

func (e *Encoder) next(n int) []byte {
	b := e.buf[e.off : e.off+n]
	e.off += n
	return b
}

func (e *Encoder) Bytes(v []byte) {
	copy(e.next(len(v)), v)
}

// Key writes a 32 byte key. A nil key is written as zeros.
func (e *Encoder) Key(v ed25519.PublicKey) {
	copy(e.next(ed25519.PublicKeySize), v)
}

func (e *Encoder) Uint8(v uint8) {
	e.next(1)[0] = v
}

func (e *Encoder) Bool(v bool) {
	if v {
		e.Uint8(1)
	} else {
		e.Uint8(0)
	}
}

func (e *Encoder) Uint32(v uint32) {
	binary.LittleEndian.PutUint32(e.next(4), v)
}

func (e *Encoder) Uint64(v uint64) {
	binary.LittleEndian.PutUint64(e.next(8), v)
}

// String writes a u32 length prefix followed by the raw bytes.
func (e *Encoder) String(v string) {
	e.Uint32(uint32(len(v)))
	copy(e.next(len(v)), v)
}

func (e *Encoder) OptionalKey(v ed25519.PublicKey) {
	e.tag(len(v) > 0)
	e.Key(v)
}

func (e *Encoder) OptionalUint64(v *uint64) {
	e.tag(v != nil)
	if v != nil {
		e.Uint64(*v)
	} else {
		e.Uint64(0)
	}
}

func (e *Encoder) tag(present bool) {
	if present {
		e.Uint32(1)
	} else {
		e.Uint32(0)
	}
}

// Decoder reads fields sequentially. The first failure is sticky: later reads
// return zero values and Err reports it.
type Decoder struct {
	buf []byte
	off int
	err error
}

func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

func (d *Decoder) Err() error {
	return d.err
}

// Remaining is the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.off
}

func (d *Decoder) next(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || n > d.Remaining() {
		d.err = ErrShortBuffer
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

// Bytes returns a copy of the next n bytes.
func (d *Decoder) Bytes(n int) []byte {
	b := d.next(n)
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func (d *Decoder) Key() ed25519.PublicKey {
	return ed25519.PublicKey(d.Bytes(ed25519.PublicKeySize))
}

func (d *Decoder) Uint8() uint8 {
	if b := d.next(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *Decoder) Bool() bool {
	return d.Uint8() == 1
}

func (d *Decoder) Uint32() uint32 {
	if b := d.next(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *Decoder) Uint64() uint64 {
	if b := d.next(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

// String reads a u32 length prefixed utf-8 string.
func (d *Decoder) String() string {
	b := d.next(int(d.Uint32()))
	if b == nil {
		return ""
	}
	if !utf8.Valid(b) {
		d.err = ErrInvalidUTF8
		return ""
	}
	return string(b)
}

// OptionalKey returns nil when the option tag is unset.
func (d *Decoder) OptionalKey() ed25519.PublicKey {
	present := d.Uint32() == 1
	key := d.Key()
	if !present {
		return nil
	}
	return key
}

func (d *Decoder) OptionalUint64() *uint64 {
	present := d.Uint32() == 1
	v := d.Uint64()
	if !present || d.err != nil {
		return nil
	}
	return &v
}
