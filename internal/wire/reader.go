// Package wire implements the length-prefixed frame codec that underlies
// the PostgreSQL frontend/backend protocol: reading complete message
// frames off a stream and writing length-patched frontend messages.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jackc/chunkreader/v2"
)

// MinReadBufferLen is the smallest chunk chunkreader will request from the
// underlying reader at once.
const MinReadBufferLen = 4096

// Reader incrementally reassembles complete protocol frames from a byte
// stream. After any successful call, the underlying buffer holds zero or
// more complete frames followed by, at most, one partial frame: callers
// never see a short read.
type Reader struct {
	cr *chunkreader.ChunkReader

	partial bool
	tag     byte
	bodyLen int
}

// NewReader wraps r for frame-oriented reads.
func NewReader(r io.Reader) *Reader {
	return &Reader{cr: chunkreader.NewWithConfig(r, chunkreader.Config{MinBufLen: MinReadBufferLen})}
}

// Next blocks until the next complete backend message frame is available
// and returns its tag and payload. The returned slice is only valid until
// the next call to Next.
func (r *Reader) Next() (tag byte, payload []byte, err error) {
	if !r.partial {
		header, err := r.cr.Next(5)
		if err != nil {
			return 0, nil, translateEOF(err)
		}

		r.tag = header[0]
		msgLen := int(binary.BigEndian.Uint32(header[1:]))
		if msgLen < 4 {
			return 0, nil, fmt.Errorf("wire: invalid message length %d for tag %q", msgLen, rune(header[0]))
		}
		r.bodyLen = msgLen - 4
		r.partial = true
	}

	body, err := r.cr.Next(r.bodyLen)
	if err != nil {
		return 0, nil, translateEOF(err)
	}
	r.partial = false

	return r.tag, body, nil
}

// NextStartupFrame reads a single startup-phase frame: a 4-byte length
// (including itself) followed by the payload, with no leading type byte.
// Used for the very first message on a connection (StartupMessage,
// SSLRequest, GSSENCRequest) before either side has negotiated anything.
func NextStartupFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, translateEOF(err)
	}
	msgLen := binary.BigEndian.Uint32(hdr[:])
	if msgLen < 4 {
		return nil, fmt.Errorf("wire: invalid startup message length %d", msgLen)
	}
	buf := make([]byte, msgLen)
	copy(buf, hdr[:])
	if _, err := io.ReadFull(r, buf[4:]); err != nil {
		return nil, translateEOF(err)
	}
	return buf, nil
}

func translateEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// GetInt16 reads an int16, big-endian, advancing buf.
func GetInt16(buf []byte) (int16, []byte) {
	return int16(binary.BigEndian.Uint16(buf)), buf[2:]
}

// GetInt32 reads an int32, big-endian, advancing buf.
func GetInt32(buf []byte) (int32, []byte) {
	return int32(binary.BigEndian.Uint32(buf)), buf[4:]
}

// GetUint32 reads a uint32, big-endian, advancing buf.
func GetUint32(buf []byte) (uint32, []byte) {
	return binary.BigEndian.Uint32(buf), buf[4:]
}

// GetCString reads a NUL-terminated string, advancing buf past the NUL.
func GetCString(buf []byte) (string, []byte, error) {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i]), buf[i+1:], nil
		}
	}
	return "", nil, fmt.Errorf("wire: unterminated string")
}

// GetByteN reads n raw bytes, advancing buf.
func GetByteN(buf []byte, n int) ([]byte, []byte, error) {
	if len(buf) < n {
		return nil, nil, fmt.Errorf("wire: short read: need %d bytes, have %d", n, len(buf))
	}
	return buf[:n], buf[n:], nil
}
