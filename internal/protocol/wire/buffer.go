package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

// MaxVarIntLen is the longest encoding of a 32-bit varint.
const MaxVarIntLen = 5

var (
	ErrShortBuffer    = errors.New("wire: short buffer")
	ErrStringTooLong  = errors.New("wire: string too long")
	ErrInvalidUTF8    = errors.New("wire: invalid utf-8 string")
	ErrVarIntTooLong  = errors.New("wire: varint too long")
	ErrNegativeVarInt = errors.New("wire: negative varint")
	ErrInvalidBool    = errors.New("wire: invalid bool value")
)

// Buffer is a growable byte buffer with independent read and write positions.
// Written bytes are appended at the end; reads consume from the front.
type Buffer struct {
	buf []byte
	off int
}

// NewBuffer returns an empty buffer with at least capacity bytes reserved.
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{buf: make([]byte, 0, capacity)}
}

// Wrap returns a buffer that reads data. The slice is not copied.
func Wrap(data []byte) *Buffer {
	return &Buffer{buf: data}
}

// Len is the number of unread bytes.
func (b *Buffer) Len() int { return len(b.buf) - b.off }

// Size is the total number of bytes written so far.
func (b *Buffer) Size() int { return len(b.buf) }

// WriterIndex is the position the next write lands on.
func (b *Buffer) WriterIndex() int { return len(b.buf) }

// ReaderIndex is the position the next read starts from.
func (b *Buffer) ReaderIndex() int { return b.off }

func (b *Buffer) Cap() int { return cap(b.buf) }

// Bytes returns the unread portion. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte { return b.buf[b.off:] }

// Reset drops all content but keeps the allocation.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
	b.off = 0
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *Buffer) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

func (b *Buffer) WriteBool(v bool) {
	if v {
		b.buf = append(b.buf, 1)
		return
	}
	b.buf = append(b.buf, 0)
}

func (b *Buffer) WriteUint16(v uint16) { b.buf = binary.BigEndian.AppendUint16(b.buf, v) }
func (b *Buffer) WriteUint32(v uint32) { b.buf = binary.BigEndian.AppendUint32(b.buf, v) }
func (b *Buffer) WriteUint64(v uint64) { b.buf = binary.BigEndian.AppendUint64(b.buf, v) }
func (b *Buffer) WriteInt64(v int64)   { b.WriteUint64(uint64(v)) }

// WriteVarInt appends v as an unsigned LEB128 varint.
func (b *Buffer) WriteVarInt(v int32) error {
	if v < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeVarInt, v)
	}
	b.buf = binary.AppendUvarint(b.buf, uint64(v))
	return nil
}

// WriteString appends a uint16 length prefix followed by the UTF-8 bytes of s.
func (b *Buffer) WriteString(s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(s))
	}
	if !utf8.ValidString(s) {
		return ErrInvalidUTF8
	}
	b.WriteUint16(uint16(len(s)))
	b.buf = append(b.buf, s...)
	return nil
}

// WriteBlob appends a varint length prefix followed by p.
func (b *Buffer) WriteBlob(p []byte) error {
	if len(p) > math.MaxInt32 {
		return fmt.Errorf("wire: blob too long: %d bytes", len(p))
	}
	if err := b.WriteVarInt(int32(len(p))); err != nil {
		return err
	}
	b.buf = append(b.buf, p...)
	return nil
}

func (b *Buffer) ReadByte() (byte, error) {
	if b.Len() < 1 {
		return 0, ErrShortBuffer
	}
	c := b.buf[b.off]
	b.off++
	return c, nil
}

func (b *Buffer) ReadBool() (bool, error) {
	c, err := b.ReadByte()
	if err != nil {
		return false, err
	}
	switch c {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrInvalidBool
	}
}

func (b *Buffer) ReadUint16() (uint16, error) {
	p, err := b.next(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(p), nil
}

func (b *Buffer) ReadUint32() (uint32, error) {
	p, err := b.next(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(p), nil
}

func (b *Buffer) ReadUint64() (uint64, error) {
	p, err := b.next(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(p), nil
}

func (b *Buffer) ReadInt64() (int64, error) {
	v, err := b.ReadUint64()
	return int64(v), err
}

// ReadVarInt consumes an unsigned LEB128 varint of at most MaxVarIntLen bytes.
func (b *Buffer) ReadVarInt() (int32, error) {
	var v uint64
	var shift uint
	for i := 0; i < MaxVarIntLen; i++ {
		c, err := b.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			if v > math.MaxInt32 {
				return 0, fmt.Errorf("%w: value %d overflows int32", ErrVarIntTooLong, v)
			}
			return int32(v), nil
		}
		shift += 7
	}
	return 0, ErrVarIntTooLong
}

func (b *Buffer) ReadString() (string, error) {
	n, err := b.ReadUint16()
	if err != nil {
		return "", err
	}
	p, err := b.next(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(p) {
		return "", ErrInvalidUTF8
	}
	return string(p), nil
}

// ReadBlob consumes a varint length prefix and returns a copy of the bytes.
func (b *Buffer) ReadBlob() ([]byte, error) {
	n, err := b.ReadVarInt()
	if err != nil {
		return nil, err
	}
	return b.ReadBytes(int(n))
}

// ReadBytes returns a copy of the next n bytes.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	p, err := b.next(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, p)
	return out, nil
}

// ReadRemaining returns a copy of every unread byte and leaves the buffer drained.
func (b *Buffer) ReadRemaining() []byte {
	out := make([]byte, b.Len())
	copy(out, b.buf[b.off:])
	b.off = len(b.buf)
	return out
}

func (b *Buffer) next(n int) ([]byte, error) {
	if n < 0 || b.Len() < n {
		return nil, fmt.Errorf("%w: need %d have %d", ErrShortBuffer, n, b.Len())
	}
	p := b.buf[b.off : b.off+n]
	b.off += n
	return p, nil
}
