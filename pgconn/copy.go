package pgconn

import (
	"context"
	"fmt"
	"io"

	"github.com/mickamy/pgwire/message"
	"github.com/mickamy/pgwire/pgerr"
)

// CopyFrom streams src (already in a format compatible with sql, usually
// "COPY ... FROM STDIN" for CSV or text format) to the server, and
// reports rows copied on success. Equivalent to the spec's "copy_in".
func (c *Conn) CopyFrom(ctx context.Context, sql string, src io.Reader) (int64, error) {
	if err := c.acquireBusy(); err != nil {
		return 0, err
	}
	defer c.releaseBusy()
	c.setDeadline(ctx)
	defer c.clearDeadline()

	c.fe.Send(&message.Query{SQL: sql})
	if err := c.fe.Flush(); err != nil {
		return 0, wrapIOErr("copy in: flush", err)
	}

	msg, err := c.fe.Receive()
	if err != nil {
		return 0, wrapIOErr("copy in: receive", err)
	}
	if _, ok := msg.(*message.CopyInResponse); !ok {
		if errResp, ok := msg.(*message.ErrorResponse); ok {
			drainReadyForQuery(c)
			return 0, pgerr.FromErrorResponse(errResp)
		}
		return 0, &pgerr.ConnectionError{Op: "copy in", Err: fmt.Errorf("expected CopyInResponse, got %T", msg)}
	}

	buf := make([]byte, 64*1024)
	var copyErr error
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			c.fe.Send(&message.CopyData{Data: buf[:n]})
			if err := c.fe.Flush(); err != nil {
				copyErr = wrapIOErr("copy in: send", err)
				break
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			copyErr = readErr
			break
		}
	}

	if copyErr != nil {
		c.fe.Send(&message.CopyFail{Message: copyErr.Error()})
	} else {
		c.fe.Send(&message.CopyDone{})
	}
	if err := c.fe.Flush(); err != nil {
		return 0, wrapIOErr("copy in: finish", err)
	}

	var rowsAffected int64
	var finalErr error
	for {
		msg, err := c.fe.Receive()
		if err != nil {
			return 0, wrapIOErr("copy in: await completion", err)
		}
		switch m := msg.(type) {
		case *message.CommandComplete:
			rowsAffected = CommandTag(m.CommandTag).RowsAffected()
		case *message.ErrorResponse:
			finalErr = pgerr.FromErrorResponse(m)
		case *message.ReadyForQuery:
			c.mu.Lock()
			c.txStatus = m.TxStatus
			c.mu.Unlock()
			if finalErr != nil {
				return 0, finalErr
			}
			if copyErr != nil {
				return 0, &pgerr.ConnectionError{Op: "copy in", Err: copyErr}
			}
			return rowsAffected, nil
		}
	}
}

// CopyTo streams the results of sql (a "COPY ... TO STDOUT" statement)
// to dst. Equivalent to the spec's "copy_out".
func (c *Conn) CopyTo(ctx context.Context, sql string, dst io.Writer) (int64, error) {
	if err := c.acquireBusy(); err != nil {
		return 0, err
	}
	defer c.releaseBusy()
	c.setDeadline(ctx)
	defer c.clearDeadline()

	c.fe.Send(&message.Query{SQL: sql})
	if err := c.fe.Flush(); err != nil {
		return 0, wrapIOErr("copy out: flush", err)
	}

	msg, err := c.fe.Receive()
	if err != nil {
		return 0, wrapIOErr("copy out: receive", err)
	}
	if _, ok := msg.(*message.CopyOutResponse); !ok {
		if errResp, ok := msg.(*message.ErrorResponse); ok {
			drainReadyForQuery(c)
			return 0, pgerr.FromErrorResponse(errResp)
		}
		return 0, &pgerr.ConnectionError{Op: "copy out", Err: fmt.Errorf("expected CopyOutResponse, got %T", msg)}
	}

	var rowsAffected int64
	var finalErr error
	for {
		msg, err := c.fe.Receive()
		if err != nil {
			return 0, wrapIOErr("copy out: receive", err)
		}
		switch m := msg.(type) {
		case *message.BackendCopyData:
			if _, err := dst.Write(m.Data); err != nil {
				finalErr = err
			}
		case *message.BackendCopyDone:
		case *message.CommandComplete:
			rowsAffected = CommandTag(m.CommandTag).RowsAffected()
		case *message.ErrorResponse:
			finalErr = pgerr.FromErrorResponse(m)
		case *message.ReadyForQuery:
			c.mu.Lock()
			c.txStatus = m.TxStatus
			c.mu.Unlock()
			if finalErr != nil {
				return 0, finalErr
			}
			return rowsAffected, nil
		}
	}
}
