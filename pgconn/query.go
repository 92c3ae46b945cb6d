package pgconn

import (
	"context"
	"fmt"

	"github.com/mickamy/pgwire/message"
	"github.com/mickamy/pgwire/pgerr"
	"github.com/mickamy/pgwire/stmtcache"
)

// Row is one decoded result row, addressable by column index or name.
type Row struct {
	fields []message.FieldDescriptor
	values []any
}

// Len returns the number of columns.
func (r *Row) Len() int { return len(r.values) }

// Value returns the decoded value of column i, or nil for SQL NULL.
func (r *Row) Value(i int) any { return r.values[i] }

// Get returns the decoded value of the first column named name, or false
// if no column has that name.
func (r *Row) Get(name string) (any, bool) {
	for i, f := range r.fields {
		if f.Name == name {
			return r.values[i], true
		}
	}
	return nil, false
}

// Rows iterates the results of a query executed through the extended
// query protocol, yielding one Row per call to Next.
type Rows struct {
	conn   *Conn
	fields []message.FieldDescriptor
	cur    *Row
	err    error
	done   bool

	stmt       *stmtcache.Statement
	portalName string
	commandTag CommandTag
}

// FieldDescriptions returns the columns of the result set.
func (rs *Rows) FieldDescriptions() []message.FieldDescriptor { return rs.fields }

// Next advances to the next row, returning false at the end of the
// result set or on error (check Err after Next returns false).
func (rs *Rows) Next() bool {
	if rs.done {
		return false
	}
	msg, err := rs.conn.fe.Receive()
	if err != nil {
		rs.err = wrapIOErr("rows: receive", err)
		rs.done = true
		return false
	}

	switch m := msg.(type) {
	case *message.DataRow:
		row, err := rs.conn.decodeRow(rs.fields, m)
		if err != nil {
			rs.err = err
			rs.done = true
			return false
		}
		rs.cur = row
		return true
	case *message.CommandComplete:
		rs.commandTag = CommandTag(m.CommandTag)
		rs.done = true
		return rs.finish()
	case *message.EmptyQueryResponse:
		rs.done = true
		return rs.finish()
	case *message.PortalSuspended:
		rs.done = true
		return rs.finish()
	case *message.ErrorResponse:
		rs.err = pgerr.FromErrorResponse(m)
		rs.done = true
		return rs.finish()
	case *message.NoticeResponse:
		rs.conn.bufferNotice(&pgerr.PostgresError{Fields: m.Fields})
		return rs.Next()
	case *message.NotificationResponse:
		rs.conn.deliverNotification(m)
		return rs.Next()
	default:
		rs.err = &pgerr.ConnectionError{Op: "rows: receive", Err: fmt.Errorf("unexpected message %T mid-result", m)}
		rs.done = true
		return false
	}
}

// finish drains through the trailing ReadyForQuery so the connection is
// idle again before returning control to the caller.
func (rs *Rows) finish() bool {
	for {
		msg, err := rs.conn.fe.Receive()
		if err != nil {
			if rs.err == nil {
				rs.err = wrapIOErr("rows: drain", err)
			}
			return false
		}
		switch m := msg.(type) {
		case *message.ReadyForQuery:
			rs.conn.mu.Lock()
			rs.conn.txStatus = m.TxStatus
			rs.conn.mu.Unlock()
			rs.conn.releaseBusy()
			rs.conn.clearDeadline()
			if rs.stmt != nil {
				rs.conn.stmts.Release(rs.stmt)
			}
			return false
		case *message.ErrorResponse:
			if rs.err == nil {
				rs.err = pgerr.FromErrorResponse(m)
			}
		case *message.NoticeResponse:
			rs.conn.bufferNotice(&pgerr.PostgresError{Fields: m.Fields})
		case *message.NotificationResponse:
			rs.conn.deliverNotification(m)
		case *message.CommandComplete, *message.DataRow, *message.EmptyQueryResponse, *message.PortalSuspended:
			// already-terminal messages seen again only in pipelined use; ignore
		default:
			if rs.err == nil {
				rs.err = &pgerr.ConnectionError{Op: "rows: drain", Err: fmt.Errorf("unexpected message %T", m)}
			}
		}
	}
}

// Row returns the most recently read row. Valid only after Next returns true.
func (rs *Rows) Row() *Row { return rs.cur }

// Err returns the error, if any, that stopped iteration early.
func (rs *Rows) Err() error { return rs.err }

func (c *Conn) decodeRow(fields []message.FieldDescriptor, m *message.DataRow) (*Row, error) {
	if len(m.Values) != len(fields) {
		return nil, &pgerr.ConnectionError{Op: "decode row", Err: fmt.Errorf("server sent %d values for %d described fields", len(m.Values), len(fields))}
	}
	values := make([]any, len(fields))
	for i, raw := range m.Values {
		v, err := c.registry.DecodeValue(fields[i].DataTypeOID, raw)
		if err != nil {
			return nil, &pgerr.DataError{OID: fields[i].DataTypeOID, Op: "decode", Err: err}
		}
		values[i] = v
	}
	return &Row{fields: fields, values: values}, nil
}

func (c *Conn) deliverNotification(m *message.NotificationResponse) {
	c.mu.Lock()
	handler := c.notificationHandler
	c.mu.Unlock()
	if handler != nil {
		handler(m.PID, m.Channel, m.Payload)
	}
}

// Query runs sql via the extended query protocol, preparing (or reusing a
// cached preparation of) sql, binding args in binary format, and
// streaming results back through Rows. Equivalent to the spec's "fetch".
//
// If the server's Describe response reports a different column count
// than the cached PreparedStatement recorded when it was first prepared
// (the underlying schema changed under a stale cache entry), the
// statement is invalidated and re-prepared once before giving up.
func (c *Conn) Query(ctx context.Context, sql string, args ...any) (*Rows, error) {
	if err := c.acquireBusy(); err != nil {
		return nil, err
	}
	c.setDeadline(ctx)

	// releaseBusy (and clearDeadline, alongside it) is normally the
	// responsibility of Rows.finish, once the caller has drained the
	// result set through ReadyForQuery; they are only called directly
	// here on a path that returns before Rows exists.
	for attempt := 0; attempt < 2; attempt++ {
		stmt, err := c.prepare(sql)
		if err != nil {
			c.releaseBusy()
			c.clearDeadline()
			return nil, err
		}

		rows, mismatch, err := c.bindAndExecute(ctx, stmt, args)
		if err != nil {
			c.stmts.Release(stmt)
			c.releaseBusy()
			c.clearDeadline()
			return nil, err
		}
		if !mismatch {
			return rows, nil
		}
		c.stmts.Release(stmt)
		c.stmts.Invalidate(sql)
	}
	c.releaseBusy()
	c.clearDeadline()
	return nil, &pgerr.ConnectionError{Op: "query", Err: fmt.Errorf("result shape kept changing across retry for %q", sql)}
}

// bindAndExecute runs Bind/Describe/Execute/Sync against an already
// prepared statement. The mismatch return reports a described field
// count that disagrees with what Parse+Describe originally recorded,
// signaling the caller should invalidate and retry rather than trust
// this result.
func (c *Conn) bindAndExecute(ctx context.Context, stmt *stmtcache.Statement, args []any) (*Rows, bool, error) {
	portal := ""
	if err := c.ensureOIDsKnown(ctx, stmt.ParamOIDs); err != nil {
		return nil, false, err
	}
	paramFormats, paramValues, err := c.encodeParams(stmt.ParamOIDs, args)
	if err != nil {
		return nil, false, err
	}

	c.fe.Send(&message.Bind{
		DestinationPortal: portal,
		PreparedStatement: stmt.Name,
		ParamFormats:      paramFormats,
		ParamValues:       paramValues,
		ResultFormats:     []message.FormatCode{message.FormatBinary},
	})
	c.fe.Send(&message.Describe{ObjectType: message.DescribePortal, Name: portal})
	c.fe.Send(&message.Execute{Portal: portal, MaxRows: 0})
	c.fe.Send(&message.Sync{})

	if err := c.fe.Flush(); err != nil {
		return nil, false, wrapIOErr("query: flush", err)
	}

	if err := c.awaitBindComplete(); err != nil {
		return nil, false, err
	}

	fields, err := c.awaitRowDescription()
	if err != nil {
		return nil, false, err
	}
	if err := c.ensureOIDsKnown(ctx, fieldOIDs(fields)); err != nil {
		return nil, false, err
	}

	if len(fields) != stmt.FieldCount {
		drainResultSet(c)
		return nil, true, nil
	}

	return &Rows{conn: c, fields: fields, stmt: stmt, portalName: portal}, false, nil
}

// drainResultSet discards one Bind/Describe/Execute/Sync exchange's
// remaining messages through ReadyForQuery, used when bindAndExecute
// detects a stale-cache mismatch and must resynchronize before retrying.
func drainResultSet(c *Conn) {
	for {
		msg, err := c.fe.Receive()
		if err != nil {
			return
		}
		switch m := msg.(type) {
		case *message.ReadyForQuery:
			c.mu.Lock()
			c.txStatus = m.TxStatus
			c.mu.Unlock()
			return
		case *message.NoticeResponse:
			c.bufferNotice(&pgerr.PostgresError{Fields: m.Fields})
		case *message.NotificationResponse:
			c.deliverNotification(m)
		}
	}
}

// QueryRow runs sql and returns at most one row. If the query returns no
// rows, Scan-style consumption should check Rows.Next itself; QueryRow
// exists for the common case of expecting exactly one.
func (c *Conn) QueryRow(ctx context.Context, sql string, args ...any) (*Row, error) {
	rows, err := c.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, &pgerr.DataError{Op: "query row", Err: fmt.Errorf("no rows returned")}
	}
	row := rows.Row()
	for rows.Next() {
		// drain to completion so the connection returns to idle
	}
	return row, rows.Err()
}

// QueryValue runs sql and returns the first column of the first row.
func (c *Conn) QueryValue(ctx context.Context, sql string, args ...any) (any, error) {
	row, err := c.QueryRow(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	if row.Len() == 0 {
		return nil, &pgerr.DataError{Op: "query value", Err: fmt.Errorf("result has no columns")}
	}
	return row.Value(0), nil
}

// CommandTag is the server's report of what a non-SELECT command did
// (e.g. "INSERT 0 1", "UPDATE 3").
type CommandTag string

// RowsAffected parses the numeric suffix of the command tag, or 0 if the
// tag has none (e.g. "BEGIN", "CREATE TABLE").
func (t CommandTag) RowsAffected() int64 {
	end := len(t)
	start := end
	for start > 0 && t[start-1] >= '0' && t[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0
	}
	var n int64
	for i := start; i < end; i++ {
		n = n*10 + int64(t[i]-'0')
	}
	return n
}

// Execute runs sql for effect, returning the server's command tag.
// Equivalent to the spec's "execute".
func (c *Conn) Execute(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	rows, err := c.Query(ctx, sql, args...)
	if err != nil {
		return "", err
	}
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return rows.commandTag, nil
}

func (c *Conn) prepare(sql string) (*stmtcache.Statement, error) {
	if stmt, ok := c.stmts.Get(sql); ok {
		return stmt, nil
	}

	name := c.stmts.NextName()
	c.fe.Send(&message.Parse{Name: name, SQL: sql})
	c.fe.Send(&message.Describe{ObjectType: message.DescribeStatement, Name: name})
	c.fe.Send(&message.Sync{})
	if err := c.fe.Flush(); err != nil {
		return nil, wrapIOErr("prepare: flush", err)
	}

	var paramOIDs []uint32
	var fieldCount int
	for {
		msg, err := c.fe.Receive()
		if err != nil {
			return nil, wrapIOErr("prepare: receive", err)
		}
		switch m := msg.(type) {
		case *message.ParseComplete:
		case *message.ParameterDescription:
			paramOIDs = append([]uint32(nil), m.ParamOIDs...)
		case *message.RowDescription:
			fieldCount = len(m.Fields)
		case *message.NoData:
			fieldCount = 0
		case *message.ErrorResponse:
			drainReadyForQuery(c)
			return nil, pgerr.FromErrorResponse(m)
		case *message.NoticeResponse:
			c.bufferNotice(&pgerr.PostgresError{Fields: m.Fields})
		case *message.ReadyForQuery:
			c.mu.Lock()
			c.txStatus = m.TxStatus
			c.mu.Unlock()
			stmt := &stmtcache.Statement{Name: name, SQL: sql, ParamOIDs: paramOIDs, FieldCount: fieldCount}
			if evicted := c.stmts.Put(stmt); evicted != "" {
				c.closeStatement(evicted)
			}
			if got, ok := c.stmts.Get(sql); ok {
				return got, nil
			}
			return stmt, nil
		}
	}
}

func (c *Conn) closeStatement(name string) {
	c.fe.Send(&message.Close{ObjectType: message.CloseStatement, Name: name})
	c.fe.Send(&message.Sync{})
	if err := c.fe.Flush(); err != nil {
		return
	}
	for {
		msg, err := c.fe.Receive()
		if err != nil {
			return
		}
		if _, ok := msg.(*message.ReadyForQuery); ok {
			return
		}
	}
}

func drainReadyForQuery(c *Conn) {
	for {
		msg, err := c.fe.Receive()
		if err != nil {
			return
		}
		if rfq, ok := msg.(*message.ReadyForQuery); ok {
			c.mu.Lock()
			c.txStatus = rfq.TxStatus
			c.mu.Unlock()
			return
		}
	}
}

func fieldOIDs(fields []message.FieldDescriptor) []uint32 {
	oids := make([]uint32, len(fields))
	for i, f := range fields {
		oids[i] = f.DataTypeOID
	}
	return oids
}

// ensureOIDsKnown resolves any OID in oids the registry has no codec for,
// via the unknown-OID resolver installed by catalog.Install (§4.2: lookup
// is lazy, triggered the first time an unrecognized OID is about to be
// encoded or decoded). A nil resolver leaves the gap for EncodeValue /
// DecodeValue to report on their own.
func (c *Conn) ensureOIDsKnown(ctx context.Context, oids []uint32) error {
	c.mu.Lock()
	resolver := c.unknownOIDResolver
	c.mu.Unlock()
	if resolver == nil {
		return nil
	}

	var missing []uint32
	seen := make(map[uint32]bool, len(oids))
	for _, oid := range oids {
		if oid == 0 || seen[oid] {
			continue
		}
		seen[oid] = true
		if _, ok := c.registry.Lookup(oid); !ok {
			missing = append(missing, oid)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return resolver(ctx, missing)
}

func (c *Conn) encodeParams(paramOIDs []uint32, args []any) ([]message.FormatCode, [][]byte, error) {
	formats := make([]message.FormatCode, len(args))
	values := make([][]byte, len(args))
	for i, arg := range args {
		formats[i] = message.FormatBinary
		if arg == nil {
			values[i] = nil
			continue
		}
		var oid uint32
		if i < len(paramOIDs) {
			oid = paramOIDs[i]
		}
		if oid == 0 {
			oid = inferOID(arg)
		}
		buf, err := c.registry.EncodeValue(oid, arg, nil)
		if err != nil {
			return nil, nil, &pgerr.DataError{OID: oid, Op: "encode param", Err: err}
		}
		values[i] = buf
	}
	return formats, values, nil
}

func (c *Conn) awaitBindComplete() error {
	for {
		msg, err := c.fe.Receive()
		if err != nil {
			return wrapIOErr("bind: receive", err)
		}
		switch m := msg.(type) {
		case *message.BindComplete:
			return nil
		case *message.ErrorResponse:
			drainReadyForQuery(c)
			return pgerr.FromErrorResponse(m)
		case *message.NoticeResponse:
			c.bufferNotice(&pgerr.PostgresError{Fields: m.Fields})
		default:
			return &pgerr.ConnectionError{Op: "bind", Err: fmt.Errorf("unexpected message %T", m)}
		}
	}
}

func (c *Conn) awaitRowDescription() ([]message.FieldDescriptor, error) {
	msg, err := c.fe.Receive()
	if err != nil {
		return nil, wrapIOErr("describe: receive", err)
	}
	switch m := msg.(type) {
	case *message.RowDescription:
		return append([]message.FieldDescriptor(nil), m.Fields...), nil
	case *message.NoData:
		return nil, nil
	case *message.ErrorResponse:
		drainReadyForQuery(c)
		return nil, pgerr.FromErrorResponse(m)
	default:
		return nil, &pgerr.ConnectionError{Op: "describe", Err: fmt.Errorf("unexpected message %T", m)}
	}
}
