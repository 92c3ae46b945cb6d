package pgconn

import (
	"context"
	"fmt"

	"github.com/mickamy/pgwire/message"
	"github.com/mickamy/pgwire/pgerr"
)

// IsolationLevel names a BEGIN ISOLATION LEVEL clause.
type IsolationLevel string

const (
	ReadCommitted  IsolationLevel = "READ COMMITTED"
	RepeatableRead IsolationLevel = "REPEATABLE READ"
	Serializable   IsolationLevel = "SERIALIZABLE"
)

// AccessMode names a BEGIN READ WRITE / READ ONLY clause.
type AccessMode string

const (
	ReadWrite AccessMode = "READ WRITE"
	ReadOnly  AccessMode = "READ ONLY"
)

// TxOptions configures a transaction started with Begin.
type TxOptions struct {
	Isolation  IsolationLevel
	AccessMode AccessMode
	// Deferrable appends DEFERRABLE to BEGIN. PostgreSQL itself only
	// honors it when Isolation is Serializable and AccessMode is
	// ReadOnly; combined with anything else it is accepted and ignored.
	Deferrable bool
}

// Tx represents one open transaction (or nested savepoint) on a Conn. It
// is not safe for concurrent use, consistent with the owning Conn.
type Tx struct {
	conn       *Conn
	savepoints []string
	closed     bool
}

// Begin starts a transaction. Nesting is handled by the caller issuing a
// Savepoint on the returned Tx rather than a second Begin, since
// PostgreSQL itself has no nested BEGIN.
func (c *Conn) Begin(ctx context.Context, opts TxOptions) (*Tx, error) {
	sql := "BEGIN"
	if opts.Isolation != "" {
		sql += " ISOLATION LEVEL " + string(opts.Isolation)
	}
	if opts.AccessMode != "" {
		sql += " " + string(opts.AccessMode)
	}
	if opts.Deferrable {
		sql += " DEFERRABLE"
	}
	if _, err := c.Execute(ctx, sql); err != nil {
		return nil, err
	}
	return &Tx{conn: c}, nil
}

// Commit commits the transaction (or, if savepoints are open, releases
// them and commits).
func (t *Tx) Commit(ctx context.Context) error {
	if t.closed {
		return &pgerr.InterfaceError{Msg: "transaction already closed"}
	}
	t.closed = true
	_, err := t.conn.Execute(ctx, "COMMIT")
	return err
}

// Rollback aborts the transaction. Calling it after Commit or Rollback
// already ran returns an InterfaceError without sending anything to the
// server.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.closed {
		return &pgerr.InterfaceError{Msg: "transaction already closed"}
	}
	t.closed = true
	_, err := t.conn.Execute(ctx, "ROLLBACK")
	return err
}

// Savepoint establishes a named savepoint nested inside this
// transaction, returning a handle whose Rollback/Release target only
// that savepoint.
func (t *Tx) Savepoint(ctx context.Context, name string) (*Savepoint, error) {
	if t.closed {
		return nil, &pgerr.InterfaceError{Msg: "transaction already closed"}
	}
	if _, err := t.conn.Execute(ctx, fmt.Sprintf("SAVEPOINT %s", quoteIdent(name))); err != nil {
		return nil, err
	}
	t.savepoints = append(t.savepoints, name)
	return &Savepoint{tx: t, name: name}, nil
}

// Savepoint is a handle to one nested SAVEPOINT within a Tx.
type Savepoint struct {
	tx     *Tx
	name   string
	closed bool
}

// Release discards the savepoint, keeping its effects as part of the
// enclosing transaction.
func (s *Savepoint) Release(ctx context.Context) error {
	if s.closed {
		return &pgerr.InterfaceError{Msg: "savepoint already closed"}
	}
	s.closed = true
	_, err := s.tx.conn.Execute(ctx, fmt.Sprintf("RELEASE SAVEPOINT %s", quoteIdent(s.name)))
	return err
}

// Rollback rolls the transaction back to this savepoint, undoing
// everything since it was established without aborting the enclosing
// transaction.
func (s *Savepoint) Rollback(ctx context.Context) error {
	if s.closed {
		return &pgerr.InterfaceError{Msg: "savepoint already closed"}
	}
	s.closed = true
	_, err := s.tx.conn.Execute(ctx, fmt.Sprintf("ROLLBACK TO SAVEPOINT %s", quoteIdent(s.name)))
	return err
}

// quoteIdent double-quotes an identifier, doubling embedded quotes, for
// the small set of places (savepoint and LISTEN channel names) that must be interpolated
// into SQL text rather than bound as a parameter.
func quoteIdent(ident string) string {
	out := make([]byte, 0, len(ident)+2)
	out = append(out, '"')
	for i := 0; i < len(ident); i++ {
		if ident[i] == '"' {
			out = append(out, '"', '"')
			continue
		}
		out = append(out, ident[i])
	}
	out = append(out, '"')
	return string(out)
}

// InTransaction reports whether the connection is currently inside a
// transaction block (open or failed), based on the last ReadyForQuery.
func (c *Conn) InTransaction() bool {
	status := c.TxStatus()
	return status == message.TxInBlock || status == message.TxFailed
}
