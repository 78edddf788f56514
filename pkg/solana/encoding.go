package solana

import (
	"bytes"
	"crypto/ed25519"
	"io"

	"github.com/pkg/errors"

	"github.com/spacenexus/spacetoken-server/pkg/solana/shortvec"
)

// versionPrefixMask is set on the first byte of a versioned (v0+) message.
const versionPrefixMask = 0x80

func (t Transaction) Marshal() []byte {
	var buf bytes.Buffer
	writeLen(&buf, len(t.Signatures))
	for _, sig := range t.Signatures {
		buf.Write(sig[:])
	}
	buf.Write(t.Message.Marshal())
	return buf.Bytes()
}

func (t *Transaction) Unmarshal(b []byte) error {
	d := decoder{r: bytes.NewReader(b)}

	n := d.len("signature count")
	t.Signatures = make([]Signature, n)
	for i := range t.Signatures {
		d.fill(t.Signatures[i][:], "signature")
	}
	if d.err != nil {
		return d.err
	}

	rest := make([]byte, d.r.Len())
	d.fill(rest, "message")
	if d.err != nil {
		return d.err
	}
	return t.Message.Unmarshal(rest)
}

func (m Message) Marshal() []byte {
	var buf bytes.Buffer
	buf.Write([]byte{m.Header.NumSignatures, m.Header.NumReadonlySigned, m.Header.NumReadOnly})

	writeLen(&buf, len(m.Accounts))
	for _, account := range m.Accounts {
		buf.Write(account)
	}
	buf.Write(m.RecentBlockhash[:])

	writeLen(&buf, len(m.Instructions))
	for _, ix := range m.Instructions {
		buf.WriteByte(ix.ProgramIndex)
		writeLen(&buf, len(ix.Accounts))
		buf.Write(ix.Accounts)
		writeLen(&buf, len(ix.Data))
		buf.Write(ix.Data)
	}
	return buf.Bytes()
}

func (m *Message) Unmarshal(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty message")
	}
	if b[0]&versionPrefixMask != 0 {
		return errors.New("versioned messages not supported")
	}

	d := decoder{r: bytes.NewReader(b)}

	m.Header = Header{
		NumSignatures:     d.byte("num signatures"),
		NumReadonlySigned: d.byte("num readonly signed"),
		NumReadOnly:       d.byte("num readonly"),
	}

	m.Accounts = make([]ed25519.PublicKey, d.len("account count"))
	for i := range m.Accounts {
		m.Accounts[i] = d.bytes(ed25519.PublicKeySize, "account")
	}
	d.fill(m.RecentBlockhash[:], "recent blockhash")

	m.Instructions = make([]CompiledInstruction, d.len("instruction count"))
	for i := range m.Instructions {
		ix := &m.Instructions[i]
		ix.ProgramIndex = d.byte("program index")
		ix.Accounts = d.bytes(d.len("instruction account count"), "instruction accounts")
		ix.Data = d.bytes(d.len("instruction data length"), "instruction data")
		if d.err != nil {
			return errors.Wrapf(d.err, "instruction %d", i)
		}

		if int(ix.ProgramIndex) >= len(m.Accounts) {
			return errors.Errorf("instruction %d: program index out of range: %d", i, ix.ProgramIndex)
		}
		for _, index := range ix.Accounts {
			if int(index) >= len(m.Accounts) {
				return errors.Errorf("instruction %d: account index out of range: %d", i, index)
			}
		}
	}
	return d.err
}

func writeLen(buf *bytes.Buffer, n int) {
	// Writes to a bytes.Buffer only fail on lengths above MaxUint16, which
	// can't fit in a transaction anyway.
	_, _ = shortvec.EncodeLen(buf, n)
}

// decoder reads sequential fields, remembering the first failure so callers
// can check once at the end.
type decoder struct {
	r   *bytes.Reader
	err error
}

func (d *decoder) fail(err error, field string) {
	if d.err == nil {
		d.err = errors.Wrapf(err, "failed to read %s", field)
	}
}

func (d *decoder) byte(field string) byte {
	if d.err != nil {
		return 0
	}
	b, err := d.r.ReadByte()
	if err != nil {
		d.fail(err, field)
	}
	return b
}

func (d *decoder) len(field string) int {
	if d.err != nil {
		return 0
	}
	n, err := shortvec.DecodeLen(d.r)
	if err != nil {
		d.fail(err, field)
		return 0
	}
	if n > d.r.Len() {
		d.fail(io.ErrUnexpectedEOF, field)
		return 0
	}
	return n
}

func (d *decoder) fill(dst []byte, field string) {
	if d.err != nil {
		return
	}
	if _, err := io.ReadFull(d.r, dst); err != nil {
		d.fail(err, field)
	}
}

func (d *decoder) bytes(n int, field string) []byte {
	out := make([]byte, n)
	d.fill(out, field)
	return out
}
