// Package pgconn implements the single-connection protocol engine (C6):
// socket ownership, the startup/authentication state machine, and the
// simple and extended query sub-protocols built on top of message (C1)
// and pgtype (C2).
//
// The startup/SSL-negotiation raw-byte handling is grounded on
// proxy/postgres/conn.go's relayStartup in the teacher repository, which
// has to speak the same pre-TLS handshake bytes from the server side;
// here we drive it from the client side instead of relaying it.
package pgconn

import (
	"context"
	"crypto/md5"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mickamy/pgwire/message"
	"github.com/mickamy/pgwire/pgdsn"
	"github.com/mickamy/pgwire/pgerr"
	"github.com/mickamy/pgwire/pgtype"
	"github.com/mickamy/pgwire/scram"
	"github.com/mickamy/pgwire/stmtcache"
)

// Config describes how to open and authenticate one connection. Callers
// typically build this from pgdsn.Parse rather than by hand.
type Config struct {
	Host     string
	Port     uint16
	Database string
	User     string
	Password string

	SSLMode       pgdsn.SSLMode
	TLSConfig     *tls.Config // used when SSLMode requires TLS; a default is built if nil
	RuntimeParams map[string]string

	ConnectTimeout      time.Duration
	StatementCacheSize  int
	Registry            *pgtype.Registry // cloned per-connection; a fresh one is built if nil
	Logger              *slog.Logger
}

// Conn drives exactly one PostgreSQL connection. It is not safe for
// concurrent use: one request may be in flight at a time (§5), enforced
// by the busy flag rather than a mutex so contending callers fail fast
// with an InterfaceError instead of queueing silently.
type Conn struct {
	netConn net.Conn
	fe      *message.Frontend

	cfg      Config
	registry *pgtype.Registry
	stmts    *stmtcache.Cache
	logger   *slog.Logger

	backendPID    uint32
	backendSecret uint32
	params        map[string]string
	txStatus      message.TxStatus

	busy   atomic.Bool
	mu     sync.Mutex // guards closed and notification/notice handlers
	closed bool

	notificationHandler func(pid uint32, channel, payload string)
	noticeHandler       func(*pgerr.PostgresError)
	pendingNotices      []*pgerr.PostgresError // buffered until a handler is registered (Open Question c)

	unknownOIDResolver func(ctx context.Context, oids []uint32) error
}

// Connect dials cfg.Host:cfg.Port, negotiates TLS if required, and drives
// the startup and authentication state machine through to the first
// ReadyForQuery.
func Connect(ctx context.Context, cfg Config) (*Conn, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RuntimeParams == nil {
		cfg.RuntimeParams = map[string]string{}
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	var d net.Dialer
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	netConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &pgerr.ConnectionError{Op: "dial", Err: err}
	}

	netConn, err = negotiateTLS(netConn, cfg)
	if err != nil {
		netConn.Close()
		return nil, &pgerr.ConnectionError{Op: "tls", Err: err}
	}

	registry := cfg.Registry
	if registry == nil {
		registry = pgtype.NewRegistry()
	} else {
		registry = registry.Clone()
	}

	c := &Conn{
		netConn:  netConn,
		fe:       message.NewFrontend(netConn, netConn),
		cfg:      cfg,
		registry: registry,
		stmts:    stmtcache.New(cfg.StatementCacheSize),
		logger:   cfg.Logger,
		params:   make(map[string]string),
	}

	if dl, ok := ctx.Deadline(); ok {
		netConn.SetDeadline(dl)
		defer netConn.SetDeadline(time.Time{})
	}

	if err := c.startup(); err != nil {
		netConn.Close()
		return nil, err
	}

	c.logger.Debug("pgwire: connection established", "host", cfg.Host, "port", cfg.Port, "pid", c.backendPID)
	return c, nil
}

// negotiateTLS handles the pre-startup SSLRequest exchange. The server's
// reply is a single un-length-prefixed byte ('S' or 'N'), which is why
// this reads directly off the raw connection rather than through
// message.Frontend/internal/wire — the same reason proxy/postgres/conn.go
// treats this phase as raw bytes instead of decoding it with pgproto3.
func negotiateTLS(conn net.Conn, cfg Config) (net.Conn, error) {
	if cfg.SSLMode == pgdsn.SSLModeDisable {
		return conn, nil
	}

	req := (&message.SSLRequest{}).Encode(nil)
	if _, err := conn.Write(req); err != nil {
		return nil, fmt.Errorf("pgconn: send SSLRequest: %w", err)
	}

	var resp [1]byte
	if _, err := io.ReadFull(conn, resp[:]); err != nil {
		return nil, fmt.Errorf("pgconn: read SSLRequest reply: %w", err)
	}

	switch resp[0] {
	case 'S':
		tlsCfg := cfg.TLSConfig
		if tlsCfg == nil {
			tlsCfg = &tls.Config{ServerName: cfg.Host}
		}
		return tls.Client(conn, tlsCfg), nil
	case 'N':
		if cfg.SSLMode == pgdsn.SSLModeRequire || cfg.SSLMode == pgdsn.SSLModeVerifyCA || cfg.SSLMode == pgdsn.SSLModeVerifyFull {
			return nil, fmt.Errorf("pgconn: server declined TLS but sslmode=%s requires it", cfg.SSLMode)
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("pgconn: unexpected SSLRequest reply byte %q", resp[0])
	}
}

func (c *Conn) startup() error {
	params := make(map[string]string, len(c.cfg.RuntimeParams)+4)
	params["client_encoding"] = "utf-8"
	params["application_name"] = "pgwire"
	for k, v := range c.cfg.RuntimeParams {
		params[k] = v
	}
	params["user"] = c.cfg.User
	if c.cfg.Database != "" {
		params["database"] = c.cfg.Database
	}

	buf := (&message.StartupMessage{Parameters: params}).Encode(nil)
	if _, err := c.netConn.Write(buf); err != nil {
		return &pgerr.ConnectionError{Op: "send startup", Err: err}
	}

	if err := c.authenticate(); err != nil {
		return err
	}

	for {
		msg, err := c.fe.Receive()
		if err != nil {
			return &pgerr.ConnectionError{Op: "startup: receive", Err: err}
		}
		switch m := msg.(type) {
		case *message.BackendKeyData:
			c.backendPID, c.backendSecret = m.ProcessID, m.SecretKey
		case *message.ParameterStatus:
			c.params[m.Name] = m.Value
		case *message.ReadyForQuery:
			c.txStatus = m.TxStatus
			return nil
		case *message.NoticeResponse:
			c.bufferNotice(&pgerr.PostgresError{Fields: m.Fields})
		case *message.ErrorResponse:
			return &pgerr.AuthenticationError{Op: "startup", Err: pgerr.FromErrorResponse(m)}
		default:
			return &pgerr.ConnectionError{Op: "startup", Err: fmt.Errorf("unexpected message %T before ReadyForQuery", m)}
		}
	}
}

func (c *Conn) authenticate() error {
	msg, err := c.fe.Receive()
	if err != nil {
		return &pgerr.AuthenticationError{Op: "receive challenge", Err: err}
	}

	switch m := msg.(type) {
	case *message.AuthenticationOk:
		return nil
	case *message.AuthenticationCleartextPassword:
		return c.sendPasswordAndAwaitOk((&message.PasswordMessage{Password: c.cfg.Password}).Encode(nil))
	case *message.AuthenticationMD5Password:
		hashed := hashMD5Password(c.cfg.User, c.cfg.Password, m.Salt)
		return c.sendPasswordAndAwaitOk((&message.PasswordMessage{Password: hashed}).Encode(nil))
	case *message.AuthenticationSASL:
		return c.authenticateSASL(m)
	default:
		return &pgerr.AuthenticationError{Op: "authenticate", Err: fmt.Errorf("unsupported challenge %T", m)}
	}
}

func (c *Conn) sendPasswordAndAwaitOk(encoded []byte) error {
	if _, err := c.netConn.Write(encoded); err != nil {
		return &pgerr.AuthenticationError{Op: "send password", Err: err}
	}
	msg, err := c.fe.Receive()
	if err != nil {
		return &pgerr.AuthenticationError{Op: "await result", Err: err}
	}
	switch m := msg.(type) {
	case *message.AuthenticationOk:
		return nil
	case *message.ErrorResponse:
		return &pgerr.AuthenticationError{Op: "authenticate", Err: pgerr.FromErrorResponse(m)}
	default:
		return &pgerr.AuthenticationError{Op: "authenticate", Err: fmt.Errorf("unexpected message %T", m)}
	}
}

func (c *Conn) authenticateSASL(offer *message.AuthenticationSASL) error {
	supported := false
	for _, mech := range offer.Mechanisms {
		if mech == scram.Mechanism {
			supported = true
			break
		}
	}
	if !supported {
		return &pgerr.AuthenticationError{Op: "authenticate", Err: fmt.Errorf("server does not offer %s", scram.Mechanism)}
	}

	client, err := scram.NewClient(c.cfg.User, c.cfg.Password)
	if err != nil {
		return &pgerr.AuthenticationError{Op: "scram init", Err: err}
	}

	initial := client.InitialResponse()
	buf := (&message.SASLInitialResponse{Mechanism: scram.Mechanism, Data: initial}).Encode(nil)
	if _, err := c.netConn.Write(buf); err != nil {
		return &pgerr.AuthenticationError{Op: "send SASL initial response", Err: err}
	}

	msg, err := c.fe.Receive()
	if err != nil {
		return &pgerr.AuthenticationError{Op: "await SASL continue", Err: err}
	}
	cont, ok := msg.(*message.AuthenticationSASLContinue)
	if !ok {
		if errResp, ok := msg.(*message.ErrorResponse); ok {
			return &pgerr.AuthenticationError{Op: "authenticate", Err: pgerr.FromErrorResponse(errResp)}
		}
		return &pgerr.AuthenticationError{Op: "authenticate", Err: fmt.Errorf("expected SASLContinue, got %T", msg)}
	}

	final, err := client.ContinueResponse(cont.Data)
	if err != nil {
		return &pgerr.AuthenticationError{Op: "scram continue", Err: err}
	}

	buf = (&message.SASLResponse{Data: final}).Encode(nil)
	if _, err := c.netConn.Write(buf); err != nil {
		return &pgerr.AuthenticationError{Op: "send SASL response", Err: err}
	}

	msg, err = c.fe.Receive()
	if err != nil {
		return &pgerr.AuthenticationError{Op: "await SASL final", Err: err}
	}
	finalMsg, ok := msg.(*message.AuthenticationSASLFinal)
	if !ok {
		if errResp, ok := msg.(*message.ErrorResponse); ok {
			return &pgerr.AuthenticationError{Op: "authenticate", Err: pgerr.FromErrorResponse(errResp)}
		}
		return &pgerr.AuthenticationError{Op: "authenticate", Err: fmt.Errorf("expected SASLFinal, got %T", msg)}
	}
	if err := client.Finish(finalMsg.Data); err != nil {
		return &pgerr.AuthenticationError{Op: "scram finish", Err: err}
	}

	msg, err = c.fe.Receive()
	if err != nil {
		return &pgerr.AuthenticationError{Op: "await ok", Err: err}
	}
	if _, ok := msg.(*message.AuthenticationOk); !ok {
		return &pgerr.AuthenticationError{Op: "authenticate", Err: fmt.Errorf("expected AuthenticationOk, got %T", msg)}
	}
	return nil
}

func (c *Conn) bufferNotice(n *pgerr.PostgresError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.noticeHandler != nil {
		c.noticeHandler(n)
		return
	}
	c.pendingNotices = append(c.pendingNotices, n)
}

// OnNotice registers the handler that receives future NoticeResponse
// messages, first flushing anything buffered before registration (Open
// Question c: notices arriving during auth, before any handler exists,
// are buffered rather than dropped).
func (c *Conn) OnNotice(handler func(*pgerr.PostgresError)) {
	c.mu.Lock()
	c.noticeHandler = handler
	pending := c.pendingNotices
	c.pendingNotices = nil
	c.mu.Unlock()

	for _, n := range pending {
		handler(n)
	}
}

// OnNotification registers the handler invoked for each NotificationResponse
// delivered by LISTEN/NOTIFY.
func (c *Conn) OnNotification(handler func(pid uint32, channel, payload string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notificationHandler = handler
}

// SetUnknownOIDResolver installs the callback Query/Execute use to fetch
// codecs for OIDs the Registry has none for, before encoding parameters
// or decoding a result set. catalog.Install wires this to a Loader over
// the same connection; a nil resolver (the default) leaves unknown-OID
// errors to surface from Registry.EncodeValue/DecodeValue directly.
func (c *Conn) SetUnknownOIDResolver(resolver func(ctx context.Context, oids []uint32) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unknownOIDResolver = resolver
}

// Parameter returns the last reported value of a server runtime
// parameter (e.g. "server_version", "TimeZone"), and whether it has ever
// been reported.
func (c *Conn) Parameter(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.params[name]
	return v, ok
}

// BackendPID returns the server process ID, usable for pg_stat_activity
// correlation and as half of the cancellation key.
func (c *Conn) BackendPID() uint32 { return c.backendPID }

// TxStatus reports the connection's transaction state as of the last
// ReadyForQuery.
func (c *Conn) TxStatus() message.TxStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txStatus
}

// Registry returns this connection's type codec registry, usable with
// SetTypeCodec to install per-connection overrides.
func (c *Conn) Registry() *pgtype.Registry { return c.registry }

// SetTypeCodec installs a per-connection override for oid, implementing
// the spec's set_type_codec.
func (c *Conn) SetTypeCodec(oid uint32, codec pgtype.Codec) {
	c.registry.SetOverride(oid, codec)
}

// acquireBusy marks the connection busy for the duration of one request,
// returning an InterfaceError if a request is already in flight —
// pgconn never queues concurrent callers onto the same socket.
func (c *Conn) acquireBusy() error {
	if !c.busy.CompareAndSwap(false, true) {
		return &pgerr.InterfaceError{Msg: "connection is already executing a request"}
	}
	return nil
}

func (c *Conn) releaseBusy() { c.busy.Store(false) }

// setDeadline applies ctx's deadline, if any, to the underlying socket
// for the duration of the in-flight request; clearDeadline (called once
// the request's Rows is fully drained, or immediately on an early error
// return) restores it to none. Mirrors WaitForNotification's use of
// SetReadDeadline in listen.go, but covers both directions since a
// query's blocking calls are a Flush followed by one or more Receives.
func (c *Conn) setDeadline(ctx context.Context) {
	if dl, ok := ctx.Deadline(); ok {
		c.netConn.SetDeadline(dl)
	}
}

func (c *Conn) clearDeadline() { c.netConn.SetDeadline(noDeadline) }

// wrapIOErr classifies a socket error from op: a deadline exceeded by
// ctx surfaces as pgerr.TimeoutError (§7: "acquire timeout exceeded"
// applies equally to a command's own deadline), anything else as a
// plain pgerr.ConnectionError.
func wrapIOErr(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &pgerr.TimeoutError{Op: op, Err: err}
	}
	return &pgerr.ConnectionError{Op: op, Err: err}
}

// Close sends Terminate and closes the socket. It is safe to call more
// than once.
func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	buf := (&message.Terminate{}).Encode(nil)
	_, writeErr := c.netConn.Write(buf)
	closeErr := c.netConn.Close()
	if writeErr != nil {
		return &pgerr.ConnectionError{Op: "close: send terminate", Err: writeErr}
	}
	if closeErr != nil {
		return &pgerr.ConnectionError{Op: "close", Err: closeErr}
	}
	return nil
}

// Terminate forcibly closes the socket without the graceful Terminate
// handshake, for use after a ConnectionError has already made the
// connection unusable.
func (c *Conn) Terminate() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.netConn.Close()
}

// IsClosed reports whether Close or Terminate has run.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// hashMD5Password implements PostgreSQL's md5(md5(password+user)+salt)
// challenge response.
func hashMD5Password(user, password string, salt [4]byte) string {
	inner := md5Hex([]byte(password + user))
	outer := md5Hex(append([]byte(inner), salt[:]...))
	return "md5" + outer
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
