package pgconn

import (
	"context"
	"net"
	"strconv"

	"github.com/mickamy/pgwire/message"
	"github.com/mickamy/pgwire/pgerr"
)

// CancelKey identifies a running connection for out-of-band query
// cancellation: the backend process ID plus the secret issued in that
// connection's BackendKeyData.
type CancelKey struct {
	ProcessID uint32
	SecretKey uint32
}

// CancelKey returns this connection's cancellation key, to be stashed
// alongside the connection so Cancel can be called from another
// goroutine without touching the busy connection itself.
func (c *Conn) CancelKey() CancelKey {
	return CancelKey{ProcessID: c.backendPID, SecretKey: c.backendSecret}
}

// Cancel opens a brand new connection to host:port and sends a
// CancelRequest for key, per §4.4: cancellation is itself a tiny,
// separate, unauthenticated connection, not a message sent on the
// connection being cancelled (that connection is busy executing the
// query and isn't reading anything else).
func Cancel(ctx context.Context, host string, port uint16, key CancelKey) error {
	var d net.Dialer
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &pgerr.ConnectionError{Op: "cancel: dial", Err: err}
	}
	defer conn.Close()

	buf := (&message.CancelRequest{ProcessID: key.ProcessID, SecretKey: key.SecretKey}).Encode(nil)
	if _, err := conn.Write(buf); err != nil {
		return &pgerr.ConnectionError{Op: "cancel: send", Err: err}
	}

	// The server closes the connection without any reply; a zero-length
	// read (EOF) is the expected, successful outcome.
	var discard [1]byte
	_, _ = conn.Read(discard[:])
	return nil
}
