package pgconn

import (
	"context"
	"fmt"
	"time"

	"github.com/mickamy/pgwire/message"
	"github.com/mickamy/pgwire/pgerr"
)

var noDeadline time.Time

// Listen subscribes the connection to channel. Notifications on it
// arrive via the handler registered with OnNotification (or are
// otherwise reported only through WaitForNotification).
func (c *Conn) Listen(ctx context.Context, channel string) error {
	_, err := c.Execute(ctx, fmt.Sprintf("LISTEN %s", quoteIdent(channel)))
	return err
}

// Unlisten cancels a prior Listen.
func (c *Conn) Unlisten(ctx context.Context, channel string) error {
	_, err := c.Execute(ctx, fmt.Sprintf("UNLISTEN %s", quoteIdent(channel)))
	return err
}

// UnlistenAll cancels every active Listen on the connection.
func (c *Conn) UnlistenAll(ctx context.Context) error {
	_, err := c.Execute(ctx, "UNLISTEN *")
	return err
}

// Notification is one payload delivered by NOTIFY on a channel this
// connection is listening to.
type Notification struct {
	PID     uint32
	Channel string
	Payload string
}

// WaitForNotification blocks on the idle connection for the next
// NotificationResponse, or until ctx is done. The connection must not be
// used for anything else concurrently — same single-request-in-flight
// rule as every other operation (§5) — which is why this acquires the
// busy flag for its duration just like Query does.
func (c *Conn) WaitForNotification(ctx context.Context) (*Notification, error) {
	if err := c.acquireBusy(); err != nil {
		return nil, err
	}
	defer c.releaseBusy()

	if dl, ok := ctx.Deadline(); ok {
		c.netConn.SetReadDeadline(dl)
		defer c.netConn.SetReadDeadline(noDeadline)
	}

	for {
		msg, err := c.fe.Receive()
		if err != nil {
			return nil, &pgerr.ConnectionError{Op: "wait for notification", Err: err}
		}
		switch m := msg.(type) {
		case *message.NotificationResponse:
			return &Notification{PID: m.PID, Channel: m.Channel, Payload: m.Payload}, nil
		case *message.ParameterStatus:
			c.mu.Lock()
			c.params[m.Name] = m.Value
			c.mu.Unlock()
		case *message.NoticeResponse:
			c.bufferNotice(&pgerr.PostgresError{Fields: m.Fields})
		default:
			return nil, &pgerr.ConnectionError{Op: "wait for notification", Err: fmt.Errorf("unexpected message %T while idle", m)}
		}
	}
}
