package message

import (
	"sort"

	"github.com/mickamy/pgwire/internal/wire"
)

const protocolVersion3 = 196608 // 3 << 16 | 0

// StartupMessage is the very first message on a new connection. It has no
// type byte and no SSL/GSS negotiation — callers send SSLRequest first if
// they want TLS.
type StartupMessage struct {
	// Parameters holds user, database, application_name, client_encoding,
	// and any other runtime parameter the server accepts at startup.
	// Iteration order is sorted for determinism on the wire.
	Parameters map[string]string
}

func (m *StartupMessage) Encode(dst []byte) []byte {
	b := wire.BeginUntagged(dst)
	b.Int32(protocolVersion3)

	keys := make([]string, 0, len(m.Parameters))
	for k := range m.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.CString(k).CString(m.Parameters[k])
	}
	b.Byte(0)
	return b.Finish()
}

// sslRequestCode and gssEncRequestCode are the magic codes that replace the
// protocol version field to request TLS / GSS encryption before startup.
const (
	sslRequestCode    = 80877103
	gssEncRequestCode = 80877104
)

// SSLRequest asks the server whether it is willing to negotiate TLS. The
// server replies with a single byte: 'S' to proceed, 'N' to decline.
type SSLRequest struct{}

func (SSLRequest) Encode(dst []byte) []byte {
	b := wire.BeginUntagged(dst)
	b.Int32(sslRequestCode)
	return b.Finish()
}

// GSSEncRequest asks the server whether it is willing to negotiate GSSAPI
// encryption. Unsupported by this module beyond declining it; included so
// the startup state machine can recognize and reject a server that somehow
// sends it back.
type GSSEncRequest struct{}

func (GSSEncRequest) Encode(dst []byte) []byte {
	b := wire.BeginUntagged(dst)
	b.Int32(gssEncRequestCode)
	return b.Finish()
}

// CancelRequest is sent on a brand new, otherwise un-negotiated connection
// to ask the server to cancel the query in flight on the connection
// identified by (ProcessID, SecretKey). It is a fixed 16-byte packet with
// no length-prefix convention of its own (its "length" is just part of the
// fixed layout, like StartupMessage's).
type CancelRequest struct {
	ProcessID uint32
	SecretKey uint32
}

const cancelRequestCode = 80877102

func (m *CancelRequest) Encode(dst []byte) []byte {
	b := wire.BeginUntagged(dst)
	b.Int32(cancelRequestCode)
	b.Uint32(m.ProcessID)
	b.Uint32(m.SecretKey)
	return b.Finish()
}

// PasswordMessage carries a cleartext or MD5-hashed password response to an
// AuthenticationCleartextPassword / AuthenticationMD5Password challenge.
type PasswordMessage struct {
	Password string
}

func (m *PasswordMessage) Encode(dst []byte) []byte {
	return wire.Begin(dst, 'p').CString(m.Password).Finish()
}

// SASLInitialResponse begins a SASL (SCRAM-SHA-256) exchange.
type SASLInitialResponse struct {
	Mechanism string
	Data      []byte
}

func (m *SASLInitialResponse) Encode(dst []byte) []byte {
	return wire.Begin(dst, 'p').CString(m.Mechanism).LenPrefixed(m.Data).Finish()
}

// SASLResponse carries a subsequent message in a SASL exchange.
type SASLResponse struct {
	Data []byte
}

func (m *SASLResponse) Encode(dst []byte) []byte {
	return wire.Begin(dst, 'p').Bytes(m.Data).Finish()
}

// Query issues the simple query protocol: the server runs sql (which may
// contain multiple ';'-separated statements) using text result format and
// ends the exchange itself, without a Sync.
type Query struct {
	SQL string
}

func (m *Query) Encode(dst []byte) []byte {
	return wire.Begin(dst, 'Q').CString(m.SQL).Finish()
}

// Parse creates a (possibly unnamed) prepared statement from sql, with an
// explicit parameter type OID list (0 entries, or 0 OIDs within the list,
// let the server infer).
type Parse struct {
	Name      string
	SQL       string
	ParamOIDs []uint32
}

func (m *Parse) Encode(dst []byte) []byte {
	b := wire.Begin(dst, 'P').CString(m.Name).CString(m.SQL).Int16(int16(len(m.ParamOIDs)))
	for _, oid := range m.ParamOIDs {
		b.Uint32(oid)
	}
	return b.Finish()
}

// FormatCode is the per-value wire representation: text or binary.
type FormatCode int16

const (
	FormatText   FormatCode = 0
	FormatBinary FormatCode = 1
)

// Bind creates a portal from a prepared statement, supplying parameter
// values and requesting a result format per column.
type Bind struct {
	DestinationPortal string
	PreparedStatement string
	ParamFormats      []FormatCode
	ParamValues       [][]byte // nil entry encodes SQL NULL
	ResultFormats     []FormatCode
}

func (m *Bind) Encode(dst []byte) []byte {
	b := wire.Begin(dst, 'B').CString(m.DestinationPortal).CString(m.PreparedStatement)

	b.Int16(int16(len(m.ParamFormats)))
	for _, f := range m.ParamFormats {
		b.Int16(int16(f))
	}

	b.Int16(int16(len(m.ParamValues)))
	for _, v := range m.ParamValues {
		b.LenPrefixed(v)
	}

	b.Int16(int16(len(m.ResultFormats)))
	for _, f := range m.ResultFormats {
		b.Int16(int16(f))
	}

	return b.Finish()
}

// DescribeTarget selects whether Describe reports on a prepared statement
// or a portal.
type DescribeTarget byte

const (
	DescribeStatement DescribeTarget = 'S'
	DescribePortal    DescribeTarget = 'P'
)

// Describe asks the server to return ParameterDescription (statements
// only) and RowDescription/NoData for the named statement or portal.
type Describe struct {
	ObjectType DescribeTarget
	Name       string
}

func (m *Describe) Encode(dst []byte) []byte {
	return wire.Begin(dst, 'D').Byte(byte(m.ObjectType)).CString(m.Name).Finish()
}

// Execute runs a bound portal, returning at most MaxRows rows (0 = no
// limit). If the portal suspends, a PortalSuspended message is returned
// instead of CommandComplete and the caller may Execute again.
type Execute struct {
	Portal  string
	MaxRows uint32
}

func (m *Execute) Encode(dst []byte) []byte {
	return wire.Begin(dst, 'E').CString(m.Portal).Uint32(m.MaxRows).Finish()
}

// Sync closes out an extended-query exchange: the server always responds
// with exactly one ReadyForQuery, even after an error, which is the barrier
// this whole protocol's error-recovery discipline is built on.
type Sync struct{}

func (Sync) Encode(dst []byte) []byte {
	return wire.Begin(dst, 'S').Finish()
}

// Flush asks the server to deliver any pending results without an implicit
// Sync — used when pipelining without wanting to break the transaction's
// error-recovery unit.
type Flush struct{}

func (Flush) Encode(dst []byte) []byte {
	return wire.Begin(dst, 'H').Finish()
}

// CloseTarget selects whether Close targets a prepared statement or portal.
type CloseTarget byte

const (
	CloseStatement CloseTarget = 'S'
	ClosePortal    CloseTarget = 'P'
)

// Close releases a prepared statement or portal on the server.
type Close struct {
	ObjectType CloseTarget
	Name       string
}

func (m *Close) Encode(dst []byte) []byte {
	return wire.Begin(dst, 'C').Byte(byte(m.ObjectType)).CString(m.Name).Finish()
}

// CopyData carries a chunk of COPY data in either direction.
type CopyData struct {
	Data []byte
}

func (m *CopyData) Encode(dst []byte) []byte {
	return wire.Begin(dst, 'd').Bytes(m.Data).Finish()
}

// CopyDone signals the end of a successful COPY IN (client to server).
type CopyDone struct{}

func (CopyDone) Encode(dst []byte) []byte {
	return wire.Begin(dst, 'c').Finish()
}

// CopyFail aborts a COPY IN in progress, with a human-readable reason
// reported back to the client via the resulting ErrorResponse.
type CopyFail struct {
	Message string
}

func (m *CopyFail) Encode(dst []byte) []byte {
	return wire.Begin(dst, 'f').CString(m.Message).Finish()
}

// Terminate gracefully ends the session; no response is expected.
type Terminate struct{}

func (Terminate) Encode(dst []byte) []byte {
	return wire.Begin(dst, 'X').Finish()
}
