package message

import (
	"fmt"

	"github.com/mickamy/pgwire/internal/wire"
)

// Authentication* message subtypes, carried in the first int32 of an
// AuthenticationXxx ('R') message body.
const (
	AuthTypeOk                = 0
	AuthTypeCleartextPassword = 3
	AuthTypeMD5Password       = 5
	AuthTypeGSS               = 7
	AuthTypeGSSContinue       = 8
	AuthTypeSASL              = 10
	AuthTypeSASLContinue      = 11
	AuthTypeSASLFinal         = 12
)

// AuthenticationOk signals that authentication succeeded.
type AuthenticationOk struct{}

func (m *AuthenticationOk) Decode(body []byte) error { return nil }

// AuthenticationCleartextPassword requests a PasswordMessage with the
// cleartext password.
type AuthenticationCleartextPassword struct{}

func (m *AuthenticationCleartextPassword) Decode(body []byte) error { return nil }

// AuthenticationMD5Password requests a PasswordMessage with the password
// hashed per PostgreSQL's md5(md5(password+user)+salt) convention.
type AuthenticationMD5Password struct {
	Salt [4]byte
}

func (m *AuthenticationMD5Password) Decode(body []byte) error {
	if len(body) < 4 {
		return fmt.Errorf("message: AuthenticationMD5Password: short body")
	}
	copy(m.Salt[:], body[:4])
	return nil
}

// AuthenticationSASL lists the SASL mechanisms the server supports.
type AuthenticationSASL struct {
	Mechanisms []string
}

func (m *AuthenticationSASL) Decode(body []byte) error {
	m.Mechanisms = nil
	for len(body) > 0 && body[0] != 0 {
		s, rest, err := wire.GetCString(body)
		if err != nil {
			return fmt.Errorf("message: AuthenticationSASL: %w", err)
		}
		m.Mechanisms = append(m.Mechanisms, s)
		body = rest
	}
	return nil
}

// AuthenticationSASLContinue carries the next server challenge.
type AuthenticationSASLContinue struct {
	Data []byte
}

func (m *AuthenticationSASLContinue) Decode(body []byte) error {
	m.Data = append([]byte(nil), body...)
	return nil
}

// AuthenticationSASLFinal carries the server's final SASL verification.
type AuthenticationSASLFinal struct {
	Data []byte
}

func (m *AuthenticationSASLFinal) Decode(body []byte) error {
	m.Data = append([]byte(nil), body...)
	return nil
}

// BackendKeyData carries the CancellationKey used for out-of-band cancel.
type BackendKeyData struct {
	ProcessID uint32
	SecretKey uint32
}

func (m *BackendKeyData) Decode(body []byte) error {
	if len(body) < 8 {
		return fmt.Errorf("message: BackendKeyData: short body")
	}
	m.ProcessID, body = wire.GetUint32(body)
	m.SecretKey, _ = wire.GetUint32(body)
	return nil
}

// ParameterStatus reports a runtime server parameter (e.g. TimeZone,
// server_version) whenever it changes, including once for every parameter
// during startup.
type ParameterStatus struct {
	Name  string
	Value string
}

func (m *ParameterStatus) Decode(body []byte) error {
	name, rest, err := wire.GetCString(body)
	if err != nil {
		return fmt.Errorf("message: ParameterStatus: name: %w", err)
	}
	value, _, err := wire.GetCString(rest)
	if err != nil {
		return fmt.Errorf("message: ParameterStatus: value: %w", err)
	}
	m.Name, m.Value = name, value
	return nil
}

// TxStatus is the transaction_status byte of ReadyForQuery.
type TxStatus byte

const (
	TxIdle     TxStatus = 'I'
	TxInBlock  TxStatus = 'T'
	TxFailed   TxStatus = 'E'
)

// ReadyForQuery is the Sync barrier: exactly one is sent per Sync (or per
// simple Query), marking the point the connection becomes idle again.
type ReadyForQuery struct {
	TxStatus TxStatus
}

func (m *ReadyForQuery) Decode(body []byte) error {
	if len(body) < 1 {
		return fmt.Errorf("message: ReadyForQuery: empty body")
	}
	m.TxStatus = TxStatus(body[0])
	return nil
}

// FieldDescriptor describes one column of a RowDescription.
type FieldDescriptor struct {
	Name             string
	TableOID         uint32
	ColumnAttrNum    int16
	DataTypeOID      uint32
	DataTypeSize     int16
	TypeModifier     int32
	FormatCode       FormatCode
}

// RowDescription describes the columns of the rows that follow.
type RowDescription struct {
	Fields []FieldDescriptor
}

func (m *RowDescription) Decode(body []byte) error {
	if len(body) < 2 {
		return fmt.Errorf("message: RowDescription: short body")
	}
	n, body := wire.GetInt16(body)
	fields := make([]FieldDescriptor, n)
	for i := range fields {
		name, rest, err := wire.GetCString(body)
		if err != nil {
			return fmt.Errorf("message: RowDescription: field %d name: %w", i, err)
		}
		body = rest
		if len(body) < 18 {
			return fmt.Errorf("message: RowDescription: field %d: short body", i)
		}
		var f FieldDescriptor
		f.Name = name
		f.TableOID, body = wire.GetUint32(body)
		f.ColumnAttrNum, body = wire.GetInt16(body)
		f.DataTypeOID, body = wire.GetUint32(body)
		f.DataTypeSize, body = wire.GetInt16(body)
		f.TypeModifier, body = wire.GetInt32(body)
		var fc int16
		fc, body = wire.GetInt16(body)
		f.FormatCode = FormatCode(fc)
		fields[i] = f
	}
	m.Fields = fields
	return nil
}

// DataRow is one row of query results; Values[i] is nil for SQL NULL.
type DataRow struct {
	Values [][]byte
}

func (m *DataRow) Decode(body []byte) error {
	if len(body) < 2 {
		return fmt.Errorf("message: DataRow: short body")
	}
	n, body := wire.GetInt16(body)
	values := make([][]byte, n)
	for i := range values {
		l, rest, err := readInt32Checked(body)
		if err != nil {
			return fmt.Errorf("message: DataRow: value %d: %w", i, err)
		}
		body = rest
		if l < 0 {
			values[i] = nil
			continue
		}
		v, rest2, err := wire.GetByteN(body, int(l))
		if err != nil {
			return fmt.Errorf("message: DataRow: value %d: %w", i, err)
		}
		values[i] = append([]byte(nil), v...)
		body = rest2
	}
	m.Values = values
	return nil
}

func readInt32Checked(body []byte) (int32, []byte, error) {
	if len(body) < 4 {
		return 0, nil, fmt.Errorf("short read")
	}
	v, rest := wire.GetInt32(body)
	return v, rest, nil
}

// CommandComplete carries the command tag (e.g. "SELECT 3", "INSERT 0 1").
type CommandComplete struct {
	CommandTag string
}

func (m *CommandComplete) Decode(body []byte) error {
	s, _, err := wire.GetCString(append(body, 0))
	if err != nil {
		return fmt.Errorf("message: CommandComplete: %w", err)
	}
	m.CommandTag = s
	return nil
}

// EmptyQueryResponse is returned instead of CommandComplete when a Query
// message's SQL text was empty.
type EmptyQueryResponse struct{}

func (m *EmptyQueryResponse) Decode(body []byte) error { return nil }

// ErrorResponse is a fatal-to-the-operation server error.
type ErrorResponse struct {
	Fields
}

func (m *ErrorResponse) Decode(body []byte) error {
	f, err := decodeFields(body)
	if err != nil {
		return fmt.Errorf("message: ErrorResponse: %w", err)
	}
	m.Fields = f
	return nil
}

// NoticeResponse is an advisory, non-fatal server message.
type NoticeResponse struct {
	Fields
}

func (m *NoticeResponse) Decode(body []byte) error {
	f, err := decodeFields(body)
	if err != nil {
		return fmt.Errorf("message: NoticeResponse: %w", err)
	}
	m.Fields = f
	return nil
}

// NotificationResponse carries a payload delivered via LISTEN/NOTIFY.
type NotificationResponse struct {
	PID     uint32
	Channel string
	Payload string
}

func (m *NotificationResponse) Decode(body []byte) error {
	if len(body) < 4 {
		return fmt.Errorf("message: NotificationResponse: short body")
	}
	m.PID, body = wire.GetUint32(body)
	channel, rest, err := wire.GetCString(body)
	if err != nil {
		return fmt.Errorf("message: NotificationResponse: channel: %w", err)
	}
	payload, _, err := wire.GetCString(rest)
	if err != nil {
		return fmt.Errorf("message: NotificationResponse: payload: %w", err)
	}
	m.Channel, m.Payload = channel, payload
	return nil
}

// ParameterDescription lists the inferred/declared type OIDs of a
// prepared statement's parameters, in order.
type ParameterDescription struct {
	ParamOIDs []uint32
}

func (m *ParameterDescription) Decode(body []byte) error {
	if len(body) < 2 {
		return fmt.Errorf("message: ParameterDescription: short body")
	}
	n, body := wire.GetInt16(body)
	oids := make([]uint32, n)
	for i := range oids {
		if len(body) < 4 {
			return fmt.Errorf("message: ParameterDescription: short body")
		}
		oids[i], body = wire.GetUint32(body)
	}
	m.ParamOIDs = oids
	return nil
}

// ParseComplete acknowledges a successful Parse.
type ParseComplete struct{}

func (m *ParseComplete) Decode(body []byte) error { return nil }

// BindComplete acknowledges a successful Bind.
type BindComplete struct{}

func (m *BindComplete) Decode(body []byte) error { return nil }

// CloseComplete acknowledges a successful Close.
type CloseComplete struct{}

func (m *CloseComplete) Decode(body []byte) error { return nil }

// NoData means Describe was run against a statement with no result set.
type NoData struct{}

func (m *NoData) Decode(body []byte) error { return nil }

// PortalSuspended means Execute's row limit was hit before the command
// finished; the caller may Execute the same portal again.
type PortalSuspended struct{}

func (m *PortalSuspended) Decode(body []byte) error { return nil }

// CopyFormat describes the format of a COPY stream's rows and, for COPY
// BINARY, the format of each column.
type CopyFormat struct {
	OverallFormat   FormatCode
	ColumnFormats   []FormatCode
}

func decodeCopyFormat(body []byte) (CopyFormat, error) {
	var cf CopyFormat
	if len(body) < 3 {
		return cf, fmt.Errorf("short body")
	}
	var overall int8
	overall = int8(body[0])
	body = body[1:]
	cf.OverallFormat = FormatCode(overall)
	n, body := wire.GetInt16(body)
	formats := make([]FormatCode, n)
	for i := range formats {
		if len(body) < 2 {
			return cf, fmt.Errorf("short body")
		}
		var fc int16
		fc, body = wire.GetInt16(body)
		formats[i] = FormatCode(fc)
	}
	cf.ColumnFormats = formats
	return cf, nil
}

// CopyInResponse announces the start of a COPY FROM STDIN stream.
type CopyInResponse struct{ CopyFormat }

func (m *CopyInResponse) Decode(body []byte) error {
	cf, err := decodeCopyFormat(body)
	if err != nil {
		return fmt.Errorf("message: CopyInResponse: %w", err)
	}
	m.CopyFormat = cf
	return nil
}

// CopyOutResponse announces the start of a COPY TO STDOUT stream.
type CopyOutResponse struct{ CopyFormat }

func (m *CopyOutResponse) Decode(body []byte) error {
	cf, err := decodeCopyFormat(body)
	if err != nil {
		return fmt.Errorf("message: CopyOutResponse: %w", err)
	}
	m.CopyFormat = cf
	return nil
}

// CopyBothResponse announces a bidirectional COPY stream (logical
// replication).
type CopyBothResponse struct{ CopyFormat }

func (m *CopyBothResponse) Decode(body []byte) error {
	cf, err := decodeCopyFormat(body)
	if err != nil {
		return fmt.Errorf("message: CopyBothResponse: %w", err)
	}
	m.CopyFormat = cf
	return nil
}

// BackendCopyData carries a chunk of COPY data from the server. Distinct
// Go type from the frontend CopyData so the two directions can't be
// confused at the type level even though the wire tag ('d') is shared.
type BackendCopyData struct {
	Data []byte
}

func (m *BackendCopyData) Decode(body []byte) error {
	m.Data = append([]byte(nil), body...)
	return nil
}

// BackendCopyDone signals the end of a COPY OUT stream.
type BackendCopyDone struct{}

func (m *BackendCopyDone) Decode(body []byte) error { return nil }
