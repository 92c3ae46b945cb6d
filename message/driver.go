package message

import (
	"fmt"
	"io"

	"github.com/mickamy/pgwire/internal/wire"
)

// Frontend is the client side of the wire protocol: it sends
// FrontendMessages to the server and decodes BackendMessages from it. One
// Frontend drives exactly one net.Conn.
//
// Modeled on pgproto3.Frontend (reference corpus,
// github.com/jackc/pgproto3/frontend.go): messages are buffered by Send and
// written in one Flush, and Receive reuses a flyweight struct per backend
// message type to avoid an allocation on every row.
type Frontend struct {
	r *wire.Reader
	w io.Writer

	wbuf []byte

	// Flyweights, reused across calls to Receive.
	authOk             AuthenticationOk
	authCleartext      AuthenticationCleartextPassword
	authMD5            AuthenticationMD5Password
	authSASL           AuthenticationSASL
	authSASLContinue   AuthenticationSASLContinue
	authSASLFinal      AuthenticationSASLFinal
	backendKeyData     BackendKeyData
	parameterStatus    ParameterStatus
	readyForQuery      ReadyForQuery
	rowDescription     RowDescription
	dataRow            DataRow
	commandComplete    CommandComplete
	emptyQueryResponse EmptyQueryResponse
	errorResponse      ErrorResponse
	noticeResponse     NoticeResponse
	notification       NotificationResponse
	paramDescription   ParameterDescription
	parseComplete      ParseComplete
	bindComplete       BindComplete
	closeComplete      CloseComplete
	noData             NoData
	portalSuspended    PortalSuspended
	copyInResponse     CopyInResponse
	copyOutResponse    CopyOutResponse
	copyBothResponse   CopyBothResponse
	copyData           BackendCopyData
	copyDone           BackendCopyDone

	authType uint32
}

// NewFrontend wraps r/w as the client side of a connection. The
// untagged pre-startup exchange (SSLRequest and its one-byte reply) is
// not handled here; callers perform it on the raw connection first.
func NewFrontend(r io.Reader, w io.Writer) *Frontend {
	return &Frontend{r: wire.NewReader(r), w: w}
}

// Send buffers msg for the next Flush.
func (f *Frontend) Send(msg FrontendMessage) {
	f.wbuf = msg.Encode(f.wbuf)
}

// Flush writes any buffered messages to the server.
func (f *Frontend) Flush() error {
	if len(f.wbuf) == 0 {
		return nil
	}
	_, err := f.w.Write(f.wbuf)

	const maxRetained = 4096
	if len(f.wbuf) > maxRetained {
		f.wbuf = make([]byte, 0, maxRetained)
	} else {
		f.wbuf = f.wbuf[:0]
	}

	if err != nil {
		return fmt.Errorf("message: flush: %w", err)
	}
	return nil
}

// Receive blocks for the next backend message and decodes it into the
// matching flyweight. The returned message is only valid until the next
// call to Receive.
func (f *Frontend) Receive() (BackendMessage, error) {
	tag, body, err := f.r.Next()
	if err != nil {
		return nil, fmt.Errorf("message: receive: %w", err)
	}

	var msg BackendMessage
	switch tag {
	case '1':
		msg = &f.parseComplete
	case '2':
		msg = &f.bindComplete
	case '3':
		msg = &f.closeComplete
	case 'A':
		msg = &f.notification
	case 'c':
		msg = &f.copyDone
	case 'C':
		msg = &f.commandComplete
	case 'd':
		msg = &f.copyData
	case 'D':
		msg = &f.dataRow
	case 'E':
		msg = &f.errorResponse
	case 'G':
		msg = &f.copyInResponse
	case 'H':
		msg = &f.copyOutResponse
	case 'I':
		msg = &f.emptyQueryResponse
	case 'K':
		msg = &f.backendKeyData
	case 'n':
		msg = &f.noData
	case 'N':
		msg = &f.noticeResponse
	case 'R':
		msg, err = f.authenticationMessage(body)
		if err != nil {
			return nil, err
		}
	case 's':
		msg = &f.portalSuspended
	case 'S':
		msg = &f.parameterStatus
	case 't':
		msg = &f.paramDescription
	case 'T':
		msg = &f.rowDescription
	case 'W':
		msg = &f.copyBothResponse
	case 'Z':
		msg = &f.readyForQuery
	default:
		return nil, fmt.Errorf("message: unknown backend message type %q", rune(tag))
	}

	if err := msg.Decode(body); err != nil {
		return nil, err
	}
	return msg, nil
}

func (f *Frontend) authenticationMessage(body []byte) (BackendMessage, error) {
	if len(body) < 4 {
		return nil, fmt.Errorf("message: authentication message too short")
	}
	authType, _ := wire.GetUint32(body)
	f.authType = authType

	switch authType {
	case AuthTypeOk:
		return &f.authOk, nil
	case AuthTypeCleartextPassword:
		return &f.authCleartext, nil
	case AuthTypeMD5Password:
		return &f.authMD5, nil
	case AuthTypeSASL:
		return &f.authSASL, nil
	case AuthTypeSASLContinue:
		return &f.authSASLContinue, nil
	case AuthTypeSASLFinal:
		return &f.authSASLFinal, nil
	default:
		return nil, fmt.Errorf("message: unsupported authentication type %d", authType)
	}
}

// AuthType returns the authentication subtype of the most recently
// received Authentication* message.
func (f *Frontend) AuthType() uint32 { return f.authType }
