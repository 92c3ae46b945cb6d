package wire

import (
	"github.com/jackc/pgio"
)

// Builder assembles a single frontend message frame: a 1-byte tag (absent
// for StartupMessage/CancelRequest/SSLRequest), a 4-byte big-endian length
// patched in after the body is known, and the body itself.
type Builder struct {
	buf      []byte
	lenIndex int
}

// BeginUntagged starts a frame with no leading tag byte (StartupMessage and
// friends), reserving space for the length prefix.
func BeginUntagged(dst []byte) *Builder {
	b := &Builder{buf: dst}
	b.lenIndex = len(b.buf)
	b.buf = pgio.AppendInt32(b.buf, -1) // placeholder, patched in Finish
	return b
}

// Begin starts a frame tagged with the given message type byte, reserving
// space for the length prefix.
func Begin(dst []byte, tag byte) *Builder {
	b := &Builder{buf: append(dst, tag)}
	b.lenIndex = len(b.buf)
	b.buf = pgio.AppendInt32(b.buf, -1)
	return b
}

func (b *Builder) Int16(n int16) *Builder {
	b.buf = pgio.AppendInt16(b.buf, n)
	return b
}

func (b *Builder) Int32(n int32) *Builder {
	b.buf = pgio.AppendInt32(b.buf, n)
	return b
}

func (b *Builder) Uint32(n uint32) *Builder {
	b.buf = pgio.AppendUint32(b.buf, n)
	return b
}

func (b *Builder) Byte(c byte) *Builder {
	b.buf = append(b.buf, c)
	return b
}

func (b *Builder) Bytes(p []byte) *Builder {
	b.buf = append(b.buf, p...)
	return b
}

// CString appends s followed by a NUL terminator.
func (b *Builder) CString(s string) *Builder {
	b.buf = append(b.buf, s...)
	b.buf = append(b.buf, 0)
	return b
}

// LenPrefixed appends a 4-byte length followed by p, or -1 for a nil p
// (the SQL NULL convention used throughout the binary protocol).
func (b *Builder) LenPrefixed(p []byte) *Builder {
	if p == nil {
		b.buf = pgio.AppendInt32(b.buf, -1)
		return b
	}
	b.buf = pgio.AppendInt32(b.buf, int32(len(p)))
	b.buf = append(b.buf, p...)
	return b
}

// Finish back-patches the length prefix (counted from the prefix itself,
// inclusive) and returns the completed buffer.
func (b *Builder) Finish() []byte {
	pgio.SetInt32(b.buf[b.lenIndex:], int32(len(b.buf)-b.lenIndex))
	return b.buf
}
