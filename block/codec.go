package block

import (
	"encoding/binary"
	"fmt"
	"math"

	chainerrors "github.com/mezonai/powchain/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// RecordVersion tags every serialized block record.
const RecordVersion byte = 0x01

// Record field numbers. Fields are always written, in this order.
const (
	fieldTimestamp  protowire.Number = 1
	fieldPayload    protowire.Number = 2
	fieldPrevHash   protowire.Number = 3
	fieldHash       protowire.Number = 4
	fieldHeight     protowire.Number = 5
	fieldNonce      protowire.Number = 6
	fieldDifficulty protowire.Number = 7
)

const timestampWidth = 16

// Encode serializes a block into its versioned record form. A nil and an
// empty payload encode identically.
func Encode(b *Block) []byte {
	var ts [timestampWidth]byte
	binary.BigEndian.PutUint64(ts[8:], b.Timestamp)

	buf := make([]byte, 0, 1+32+len(b.Payload)+len(b.PrevHash)+len(b.Hash)+32)
	buf = append(buf, RecordVersion)
	buf = protowire.AppendTag(buf, fieldTimestamp, protowire.BytesType)
	buf = protowire.AppendBytes(buf, ts[:])
	buf = protowire.AppendTag(buf, fieldPayload, protowire.BytesType)
	buf = protowire.AppendBytes(buf, b.Payload)
	buf = protowire.AppendTag(buf, fieldPrevHash, protowire.BytesType)
	buf = protowire.AppendString(buf, b.PrevHash)
	buf = protowire.AppendTag(buf, fieldHash, protowire.BytesType)
	buf = protowire.AppendString(buf, b.Hash)
	buf = protowire.AppendTag(buf, fieldHeight, protowire.VarintType)
	buf = protowire.AppendVarint(buf, b.Height)
	buf = protowire.AppendTag(buf, fieldNonce, protowire.VarintType)
	buf = protowire.AppendVarint(buf, protowire.EncodeZigZag(b.Nonce))
	buf = protowire.AppendTag(buf, fieldDifficulty, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(b.Difficulty))
	return buf
}

// Decode parses a record produced by Encode. Decoding is strict: fields must
// appear exactly once, in order, with minimal varints and no trailing bytes,
// so that Encode(Decode(data)) reproduces data byte for byte. An empty payload
// always decodes as nil, matching the blocks the miner produces.
func Decode(data []byte) (*Block, error) {
	if len(data) == 0 {
		return nil, serializationErr("empty record")
	}
	if data[0] != RecordVersion {
		return nil, serializationErr(fmt.Sprintf("unsupported record version %d", data[0]))
	}
	d := &decoder{buf: data[1:]}

	ts := d.bytes(fieldTimestamp)
	payload := d.bytes(fieldPayload)
	prevHash := d.bytes(fieldPrevHash)
	hash := d.bytes(fieldHash)
	height := d.varint(fieldHeight)
	nonce := d.varint(fieldNonce)
	difficulty := d.varint(fieldDifficulty)
	if d.err != nil {
		return nil, d.err
	}
	if len(d.buf) != 0 {
		return nil, serializationErr(fmt.Sprintf("%d trailing bytes", len(d.buf)))
	}
	if len(ts) != timestampWidth {
		return nil, serializationErr(fmt.Sprintf("timestamp width %d, want %d", len(ts), timestampWidth))
	}
	if binary.BigEndian.Uint64(ts[:8]) != 0 {
		return nil, serializationErr("timestamp overflows 64 bits")
	}
	if difficulty > math.MaxUint32 {
		return nil, serializationErr(fmt.Sprintf("difficulty %d out of range", difficulty))
	}

	b := &Block{
		Timestamp:  binary.BigEndian.Uint64(ts[8:]),
		PrevHash:   string(prevHash),
		Hash:       string(hash),
		Height:     height,
		Nonce:      protowire.DecodeZigZag(nonce),
		Difficulty: uint32(difficulty),
	}
	if len(payload) > 0 {
		b.Payload = append([]byte(nil), payload...)
	}
	return b, nil
}

type decoder struct {
	buf []byte
	err error
}

func (d *decoder) tag(num protowire.Number, typ protowire.Type) bool {
	if d.err != nil {
		return false
	}
	gotNum, gotTyp, n := protowire.ConsumeTag(d.buf)
	if n < 0 {
		d.err = serializationErr(fmt.Sprintf("field %d: %v", num, protowire.ParseError(n)))
		return false
	}
	if gotNum != num || gotTyp != typ {
		d.err = serializationErr(fmt.Sprintf("expected field %d type %d, got field %d type %d", num, typ, gotNum, gotTyp))
		return false
	}
	if n != protowire.SizeTag(num) {
		d.err = serializationErr(fmt.Sprintf("field %d: non-minimal tag", num))
		return false
	}
	d.buf = d.buf[n:]
	return true
}

func (d *decoder) bytes(num protowire.Number) []byte {
	if !d.tag(num, protowire.BytesType) {
		return nil
	}
	v, n := protowire.ConsumeBytes(d.buf)
	if n < 0 {
		d.err = serializationErr(fmt.Sprintf("field %d: %v", num, protowire.ParseError(n)))
		return nil
	}
	if n != protowire.SizeBytes(len(v)) {
		d.err = serializationErr(fmt.Sprintf("field %d: non-minimal length", num))
		return nil
	}
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) varint(num protowire.Number) uint64 {
	if !d.tag(num, protowire.VarintType) {
		return 0
	}
	v, n := protowire.ConsumeVarint(d.buf)
	if n < 0 {
		d.err = serializationErr(fmt.Sprintf("field %d: %v", num, protowire.ParseError(n)))
		return 0
	}
	if n != protowire.SizeVarint(v) {
		d.err = serializationErr(fmt.Sprintf("field %d: non-minimal varint", num))
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func serializationErr(msg string) error {
	return chainerrors.NewError(chainerrors.ErrCodeSerialization, msg)
}
